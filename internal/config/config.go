package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL         string
	DBMaxConns          int32
	DBMinConns          int32
	DBMaxConnLifetime   time.Duration
	DBMaxConnIdleTime   time.Duration
	DBHealthCheckPeriod time.Duration

	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTAccessTTL       time.Duration
	JWTRefreshTTL      time.Duration
	TokenPruneInterval time.Duration
	TokenPruneAfter    time.Duration

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
	FixedWindowLimit int
	FixedWindowSize  time.Duration

	GoongAPIKey         string
	GoongBaseURL        string
	GeocodeTimeout      time.Duration
	GeocodeToleranceDeg float64
	GeocodeCacheTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL      string
	RabbitMQExchange string

	SeedAdminEmail    string
	SeedAdminPassword string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),

		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:          int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:          int32(getInt("DB_MIN_CONNS", 1)),
		DBMaxConnLifetime:   getDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		DBMaxConnIdleTime:   getDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
		DBHealthCheckPeriod: getDuration("DB_HEALTH_CHECK_PERIOD", 30*time.Second),

		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:          getEnv("JWT_ISSUER", "parking-directory"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "parking-directory-clients"),
		JWTAccessTTL:       time.Duration(getInt("JWT_ACCESS_TTL_MINUTES", 15)) * time.Minute,
		JWTRefreshTTL:      time.Duration(getInt("JWT_REFRESH_TTL_DAYS", 7)) * 24 * time.Hour,
		TokenPruneInterval: getDuration("TOKEN_PRUNE_INTERVAL", time.Hour),
		TokenPruneAfter:    getDuration("TOKEN_PRUNE_AFTER", 30*24*time.Hour),

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),
		FixedWindowLimit: getInt("FIXED_WINDOW_LIMIT", 5),
		FixedWindowSize:  getDuration("FIXED_WINDOW_SIZE", time.Second),

		GoongAPIKey:         strings.TrimSpace(os.Getenv("GOONG_API_KEY")),
		GoongBaseURL:        getEnv("GOONG_BASE_URL", "https://rsapi.goong.io/"),
		GeocodeTimeout:      getDuration("GEOCODE_TIMEOUT", 10*time.Second),
		GeocodeToleranceDeg: getFloat("GEOCODE_TOLERANCE_DEG", 0.1),
		GeocodeCacheTTL:     getDuration("GEOCODE_CACHE_TTL", 24*time.Hour),

		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		RabbitMQURL:      strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "parking.events"),

		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@example.com"),
		SeedAdminPassword: strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if strings.TrimSpace(c.JWTIssuer) == "" || strings.TrimSpace(c.JWTAudience) == "" {
		return fmt.Errorf("JWT_ISSUER and JWT_AUDIENCE cannot be empty")
	}

	if c.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL_MINUTES must be positive")
	}

	if c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TTL_DAYS must be positive")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are inconsistent")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.GeocodeToleranceDeg <= 0 {
		return fmt.Errorf("GEOCODE_TOLERANCE_DEG must be positive")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
