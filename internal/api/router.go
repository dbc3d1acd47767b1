package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/meridianlaw/caseflow/internal/api/handlers"
	"github.com/meridianlaw/caseflow/internal/api/middleware"
	"github.com/meridianlaw/caseflow/internal/auth"
	"github.com/meridianlaw/caseflow/internal/cases"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	AuthService    *auth.Service
	CaseService    *cases.Service
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	CookieTTLSecs  int      // Session cookie max age
	SecureCookies  bool     // Set the Secure flag on session cookies
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CSRF covers mutations authenticated by the session cookie
	r.Use(middleware.CSRF(middleware.NewCSRFStore()))

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Logger, cfg.CookieTTLSecs, cfg.SecureCookies)
	caseHandler := handlers.NewCaseHandler(cfg.CaseService, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/forgotpassword", authHandler.ForgotPassword)
		r.Patch("/auth/resetpassword/{token}", authHandler.ResetPassword)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.AuthService))

			// Staff registration is admin only
			r.With(middleware.RequireRole(models.RoleAdmin)).
				Post("/auth/register-staff", authHandler.RegisterStaff)

			// Account endpoints
			r.Get("/auth/me", authHandler.Me)
			r.Patch("/auth/updateme", authHandler.UpdateMe)
			r.Patch("/auth/updatepassword", authHandler.UpdatePassword)

			// Case endpoints. Fixed paths are registered before the
			// {id} wildcard so "stats" is never parsed as a case ID.
			r.Route("/cases", func(r chi.Router) {
				r.With(middleware.RequireRole(models.RoleAdmin, models.RoleAttorney)).
					Get("/stats", caseHandler.Stats)
				r.Get("/due", caseHandler.Due)
				r.Get("/search", caseHandler.Search)

				r.Get("/", caseHandler.List)
				r.With(middleware.RequireRole(models.RoleAdmin, models.RoleAttorney)).
					Post("/", caseHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", caseHandler.Get)
					r.Patch("/", caseHandler.Update)
					r.With(middleware.RequireRole(models.RoleAdmin)).
						Delete("/", caseHandler.Delete)

					r.Post("/documents", caseHandler.AddDocument)
					r.Post("/notes", caseHandler.AddNote)
					r.With(middleware.RequireRole(models.RoleAdmin)).
						Patch("/assign", caseHandler.Assign)
					r.Get("/timeline", caseHandler.Timeline)
				})
			})
		})
	})

	return &Router{r}
}
