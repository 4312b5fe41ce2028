package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/Keyhaven-io/keyhaven/internal/auth"
	"github.com/Keyhaven-io/keyhaven/internal/config"
	"github.com/Keyhaven-io/keyhaven/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Api struct {
	Config          config.Config
	Router          *chi.Mux
	auth            *auth.Service
	registerLimiter *ratelimit.Limiter
	resetLimiter    *ratelimit.Limiter
}

func NewApi(cfg config.Config, svc *auth.Service, registerLimiter, resetLimiter *ratelimit.Limiter) (*Api, error) {
	if cfg.APIPort == 0 {
		return nil, fmt.Errorf("Must have at least a port to start API")
	}

	api := &Api{
		Config:          cfg,
		Router:          chi.NewRouter(),
		auth:            svc,
		registerLimiter: registerLimiter,
		resetLimiter:    resetLimiter,
	}

	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*", "https://*.keyhaven.io"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/heartbeat"))

	r.Route("/auth", func(r chi.Router) {
		// Public routes
		r.With(RateLimitMiddleware(api.registerLimiter, "register")).
			Post("/register", api.RegisterHandler)
		r.Post("/login", api.LoginHandler)
		r.Post("/refresh", api.RefreshHandler)
		r.Post("/verify", api.VerifyTokenHandler)
		r.With(RateLimitMiddleware(api.resetLimiter, "reset")).
			Post("/password/reset", api.PasswordResetRequestHandler)
		r.Post("/password/reset/confirm", api.PasswordResetConfirmHandler)
		r.Post("/email/verify", api.EmailVerifyHandler)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(TokenAuthMiddleware(api.auth.Tokens()))
			r.Get("/me", api.MeHandler)
			r.Post("/logout", api.LogoutHandler)
			r.Post("/password/change", api.PasswordChangeHandler)
			r.Post("/email/resend", api.ResendVerificationHandler)
		})
	})
}

func (api *Api) Serve() error {
	addr := fmt.Sprintf(":%d", api.Config.APIPort)
	log.Printf("API listening on %s", addr)
	return http.ListenAndServe(addr, api.Router)
}
