package router

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cviz/relay/internal/config"
	"github.com/cviz/relay/internal/handlers"
	"github.com/cviz/relay/internal/middleware"
	"github.com/cviz/relay/internal/relay"
)

// New wires the HTTP surface: the websocket endpoint, the thin
// health/introspection API, Prometheus metrics and the static web frontend.
func New(cfg *config.Config, hub *relay.Hub) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.NewRealIPMiddleware(cfg.TrustedProxies).Handler)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Handlers
	wsHandler := handlers.NewWSHandler(hub)
	healthHandler := handlers.NewHealthHandler(hub)

	// Rate limiter for connection attempts
	connectLimiter := middleware.NewConnectLimiter(cfg.ConnectRatePerMinute)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/topics", healthHandler.Topics)
		r.Get("/topics/{topic}", healthHandler.TopicInfo)
	})

	r.With(connectLimiter.Middleware).Get("/ws", wsHandler.Serve)

	r.Handle("/metrics", promhttp.Handler())

	// Static web frontend, when present
	if cfg.WebDir != "" {
		if _, err := os.Stat(cfg.WebDir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(cfg.WebDir)))
		}
	}

	return r
}
