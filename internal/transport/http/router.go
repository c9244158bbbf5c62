package httpapi

import (
	"net/http"

	"github.com/go-account-api/internal/application/auth"
	"github.com/go-account-api/internal/application/session"
	"github.com/go-account-api/internal/application/user"
	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/domain"
	jwtinfra "github.com/go-account-api/internal/infrastructure/jwt"
	"github.com/go-account-api/internal/transport/http/handler"
	"github.com/go-account-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires all routes. Sensitive endpoints sit behind the per-IP rate
// limiter; everything under the authenticated group requires a live session.
func NewRouter(
	cfg *config.Config,
	codec *jwtinfra.Codec,
	sessions session.Service,
	userSvc user.Service,
	authSvc auth.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	users := handler.NewUserHandler(userSvc)
	authH := handler.NewAuthHandler(authSvc)
	authn := middleware.Authenticator(codec, sessions)
	limiter := middleware.NewRateLimiter(1, 5)

	r.Get("/health", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Post("/users", users.Register)
			r.Post("/auth/login", authH.Login)
			r.Post("/auth/login/2fa", authH.LoginTwoFactor)
			r.Post("/auth/forgot-password", authH.ForgotPassword)
		})

		r.Post("/users/activate", users.Activate)
		r.Post("/auth/refresh", authH.Refresh)
		r.Post("/auth/reset-password", authH.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Post("/auth/logout", authH.Logout)
			r.Get("/users/me", users.GetMe)
			r.Put("/users/me", users.UpdateMe)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))
				r.Get("/users", users.List)
			})
		})
	})

	return r
}
