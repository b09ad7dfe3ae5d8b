package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/cfaccess/app"
	"github.com/upb/cfaccess/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware, only for explicitly listed origins
	if origins := deps.Config.Server.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			_ = utils.WriteNotFound(w)
		})

		// Validates regardless of the configured contexts
		r.With(deps.AccessMiddleware.Require(http.HandlerFunc(deps.SessionHandler.HandleUnauthenticated))).
			Get("/session", deps.SessionHandler.HandleSession)
	})

	// Everything else is site content
	r.Group(func(r chi.Router) {
		r.Use(deps.AccessMiddleware.Protect(deps.Config.Access.SiteContext))
		r.Handle("/*", deps.SiteHandler)
	})

	return r
}
