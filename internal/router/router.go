package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-parking-directory/internal/config"
	"go-parking-directory/internal/handler"
	"go-parking-directory/internal/middleware"
	"go-parking-directory/internal/model"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	User       *handler.UserHandler
	ParkingLot *handler.ParkingLotHandler
	Geocode    *handler.GeocodeHandler
	Directions *handler.DirectionsHandler
	Health     *handler.HealthHandler
	Docs       *handler.DocsHandler
	LotFeed    http.Handler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, counter middleware.WindowCounter, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	requireAuth := authMiddleware.RequireAuth
	requireAdmin := authMiddleware.RequireRoles(model.RoleAdmin)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/swagger", h.Docs.SwaggerUI)

	// The websocket feed hijacks the connection, so it stays outside the
	// timeout handler.
	if h.LotFeed != nil {
		r.Method(http.MethodGet, "/ws/lots", h.LotFeed)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(middleware.FixedWindow(counter, cfg.FixedWindowLimit, cfg.FixedWindowSize))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.With(authMiddleware.OptionalAuth).Post("/register", h.Auth.Register)
			auth.Post("/refresh-token", h.Auth.Refresh)
			auth.With(requireAuth).Post("/revoke-token", h.Auth.RevokeToken)
			auth.With(requireAuth).Post("/logout", h.Auth.Logout)
			auth.With(requireAuth).Get("/me", h.Auth.Me)
			auth.With(requireAuth).Put("/profile", h.User.UpdateProfile)
			auth.With(requireAuth).Post("/change-password", h.User.ChangePassword)
			auth.With(requireAuth, requireAdmin).Post("/users/{userId}/toggle-status", h.User.ToggleStatus)
		})

		api.Route("/parkinglots", func(lots chi.Router) {
			lots.Get("/", h.ParkingLot.List)
			lots.With(requireAuth).Get("/nearby", h.ParkingLot.Nearby)
			lots.With(requireAuth).Get("/{id}", h.ParkingLot.Get)
			lots.With(requireAuth, requireAdmin).Post("/", h.ParkingLot.Create)
			lots.With(requireAuth, requireAdmin).Put("/{id}", h.ParkingLot.Update)
			lots.With(requireAuth, requireAdmin).Delete("/{id}", h.ParkingLot.Delete)
		})

		api.Get("/geocode", h.Geocode.Forward)
		api.Get("/geocode/reverse", h.Geocode.Reverse)
		api.Get("/directions", h.Directions.Get)
	})

	return r
}
