package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-verse-auth/internal/config"
	"go-verse-auth/internal/handler"
	"go-verse-auth/internal/middleware"
)

type Handlers struct {
	Auth          *handler.AuthHandler
	OAuth         *handler.OAuthHandler
	PasswordReset *handler.PasswordResetHandler
	Health        *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", h.Health.Health)

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Post("/register", h.Auth.Register)
		api.Post("/token", h.Auth.Token)
		api.With(authMiddleware.RequireAuth).Get("/users/me", h.Auth.Me)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/google", h.OAuth.Google)
			auth.Get("/google/config", h.OAuth.GoogleConfig)
			auth.Post("/facebook", h.OAuth.Facebook)
			auth.Get("/facebook/config", h.OAuth.FacebookConfig)
		})

		api.Route("/reset-password", func(reset chi.Router) {
			reset.Post("/", h.PasswordReset.Request)
			reset.Post("/confirm", h.PasswordReset.Confirm)
		})
	})

	return r
}
