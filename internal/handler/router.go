package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tinote/tinote/internal/middleware"
)

// RouterConfig collects the handlers and middleware settings for NewRouter.
type RouterConfig struct {
	Logger   *slog.Logger
	Health   *HealthHandler
	Metrics  *MetricsHandler
	Accounts *AccountHandler
	Notes    *NoteHandler
	Admin    *AdminHandler

	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimitConfig
	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig
	// MaxRequestBodySize bounds JSON bodies. Uploads are bounded by the note handler.
	MaxRequestBodySize int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))

	// Health and metrics (no auth required)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/metrics", cfg.Metrics.Metrics)

	jsonBody := chi.Chain(middleware.MaxBodySize(cfg.MaxRequestBodySize), middleware.RequireJSON)

	r.Route("/api/v1", func(r chi.Router) {
		// Login is the only unauthenticated API route; it is limited per IP.
		r.With(middleware.RateLimitLogin(cfg.RateLimit)).
			With(jsonBody...).
			Post("/login", cfg.Accounts.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Auth))
			r.Use(middleware.RateLimitKey(cfg.RateLimit))

			r.Get("/users/me", cfg.Accounts.Me)

			r.Route("/notes", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", cfg.Notes.List)
				r.With(middleware.RequireRead()).Get("/{id}", cfg.Notes.Get)
				r.With(middleware.RequireWrite()).Delete("/{id}", cfg.Notes.Delete)

				r.With(middleware.RequireWrite(), middleware.RequireMultipart).
					Post("/from-media", cfg.Notes.CreateFromMedia)
				r.With(middleware.RequireWrite(), middleware.RequireMultipart).
					Post("/from-document", cfg.Notes.CreateFromDocument)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				r.With(jsonBody...).Post("/reset-credits", cfg.Admin.ResetCredits)
				r.With(jsonBody...).Post("/users", cfg.Admin.CreateUser)
				r.Get("/users", cfg.Admin.ListUsers)
				r.Delete("/users/{id}", cfg.Admin.DeleteUser)
				r.Post("/users/{id}/revoke-keys", cfg.Admin.RevokeKeys)
			})
		})
	})

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
