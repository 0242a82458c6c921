package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"go-parking-directory/docs"
	"go-parking-directory/internal/config"
	"go-parking-directory/internal/database"
	"go-parking-directory/internal/event"
	"go-parking-directory/internal/geocoding"
	"go-parking-directory/internal/handler"
	"go-parking-directory/internal/messaging"
	"go-parking-directory/internal/middleware"
	"go-parking-directory/internal/repository"
	"go-parking-directory/internal/router"
	"go-parking-directory/internal/service"
	"go-parking-directory/internal/websocket"
)

const (
	shutdownTimeout  = 10 * time.Second
	redisPingTimeout = 5 * time.Second
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	var cleanups []func()
	fail := func(err error) (*App, error) {
		runCleanups(cleanups)
		return nil, err
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanups = append(cleanups, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return fail(fmt.Errorf("failed to ensure database schema: %w", err))
	}

	pool := db.Pool
	lotRepo := repository.NewLotRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	credentials := repository.NewCredentialStore(userRepo, repository.DefaultBcryptCost)
	slog.Info("database ready")

	var (
		redisClient *redis.Client
		counter     middleware.WindowCounter = middleware.NewMemoryCounter()
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cleanups = append(cleanups, func() { _ = redisClient.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fail(fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err))
		}
		counter = middleware.NewRedisCounter(redisClient)
		slog.Info("redis ready", "addr", cfg.RedisAddr)
	}

	goong, err := geocoding.NewClient(cfg.GoongBaseURL, cfg.GoongAPIKey, cfg.GeocodeTimeout)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize geocoding client: %w", err))
	}
	if cfg.GoongAPIKey == "" {
		slog.Warn("GOONG_API_KEY is empty; geocoding requests will be rejected by the provider")
	}
	var geocoder service.GeocodingProvider = goong
	if redisClient != nil {
		geocoder = geocoding.NewCachedProvider(goong, redisClient, cfg.GeocodeCacheTTL)
	}

	bus := event.NewBus()

	issuer := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, tokenRepo)
	tokenService := service.NewTokenService(userRepo, credentials, issuer, tokenRepo, bus)
	authService := service.NewAuthService(userRepo, credentials, credentials, tokenService, bus)
	lotService := service.NewParkingLotService(lotRepo, geocoder, bus, cfg.GeocodeToleranceDeg)

	if cfg.SeedAdminPassword != "" {
		if err := authService.SeedAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return fail(fmt.Errorf("failed to seed admin account: %w", err))
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	cleanups = append(cleanups, bgCancel)

	hub := websocket.NewHub(bus)
	go hub.Run(bgCtx)
	go service.RunTokenPruner(bgCtx, tokenService, cfg.TokenPruneInterval, cfg.TokenPruneAfter)

	if cfg.RabbitMQURL != "" {
		forwarder, err := messaging.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, bus)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to rabbitmq: %w", err))
		}
		cleanups = append(cleanups, func() { _ = forwarder.Close() })
		go forwarder.Run(bgCtx)
		slog.Info("forwarding events to rabbitmq", "exchange", cfg.RabbitMQExchange)
	}

	authMiddleware := middleware.NewAuthMiddleware(issuer)
	appRouter := router.New(cfg, authMiddleware, counter, router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		User:       handler.NewUserHandler(authService),
		ParkingLot: handler.NewParkingLotHandler(lotService),
		Geocode:    handler.NewGeocodeHandler(geocoder),
		Directions: handler.NewDirectionsHandler(goong),
		Health:     handler.NewHealthHandler(db),
		Docs:       handler.NewDocsHandler(docs.OpenAPI),
		LotFeed:    websocket.NewHandler(hub, cfg.CORSOrigins),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server, cleanupFuncs: cleanups}, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		runCleanups(a.cleanupFuncs)
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	runCleanups(a.cleanupFuncs)
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

// runCleanups releases resources in reverse acquisition order.
func runCleanups(funcs []func()) {
	for i := len(funcs) - 1; i >= 0; i-- {
		funcs[i]()
	}
}
