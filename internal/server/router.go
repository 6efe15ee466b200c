// Package server assembles the HTTP pipeline.
package server

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ayush/registration-service/internal/middleware"
	"github.com/ayush/registration-service/internal/registration"
)

// Options controls the router.
type Options struct {
	Development    bool
	AllowedOrigins []string
	ForceHTTPS     bool
	HTTPSPort      int
	HSTSMaxAge     time.Duration
	StaticDir      string
	RateLimit      *middleware.RateLimiter
	Logger         *slog.Logger
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// friends. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// NewRouter wires the registration handler behind the platform middleware:
// recovery, request id and logging, HSTS outside development, HTTPS
// redirection, CORS, then routes. Forwarded-for headers replace the client
// address only when TrustProxyHeaders is set, so the per-IP rate limit keys
// on the socket peer by default.
func NewRouter(h *registration.Handler, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(opts.Logger))
	if !opts.Development {
		r.Use(middleware.HSTS(opts.HSTSMaxAge))
	}
	if opts.ForceHTTPS {
		r.Use(middleware.RedirectHTTPS(opts.HTTPSPort))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Registration routes (public)
	r.Route("/api/registration", func(r chi.Router) {
		if opts.RateLimit != nil {
			r.Use(opts.RateLimit.Handler)
		}
		r.Post("/register", h.Register)
	})

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
		}
	}

	return r
}
