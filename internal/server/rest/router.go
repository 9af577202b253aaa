// Package rest exposes the authentication API over HTTP/JSON.
package rest

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/tflic/internal/logging"
	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"
)

// BasePath prefixes every API route.
const BasePath = "/api/v2"

type RouterConfig struct {
	Handler      *Handler
	Health       http.Handler
	Tokens       TokenValidator
	AuthRequired bool
	// RateLimit applies per client IP to authorize, refresh and register.
	RateLimit string
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Without it the limiter keys on the TCP peer.
	TrustProxy bool
	Logger     logging.Logger
}

func NewRouter(cfg RouterConfig) (http.Handler, error) {
	limit, err := NewIPRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", cfg.RateLimit, err)
	}

	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	if cfg.TrustProxy {
		r.Use(chimid.RealIP)
	}
	r.Use(requestLogger(cfg.Logger))
	r.Use(chimid.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(secure.New(SecureOptions()).Handler)

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}
	r.Handle("/metrics", promhttp.Handler())

	h := cfg.Handler
	r.Route(BasePath, func(r chi.Router) {
		r.Use(chimid.AllowContentType("application/json"))

		r.Get("/ping", h.Ping)

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/authorize", h.Authorize)
			r.Post("/refresh", h.Refresh)
			r.Post("/register", h.Register)
			r.Post("/try_authorize", h.TryAuthorize)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAccount(cfg.Tokens, cfg.AuthRequired))
			r.Get("/accounts/{ref}", h.GetAccount)
			r.Patch("/accounts/{id}", h.UpdateAccount)
		})
	})

	return r, nil
}
