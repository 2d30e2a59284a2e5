package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/agenda-assistant/internal/dialogue"
	httpmiddleware "github.com/wolfman30/agenda-assistant/internal/http/middleware"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Dialogue           *dialogue.Handler
	MetricsHandler     http.Handler
	HealthChecks       map[string]HealthCheck
	CORSAllowedOrigins []string
	JWTSecret          string
	RateLimiter        *httpmiddleware.RateLimiter
}

// New creates the chi router serving the assistant API.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", health(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Dialogue != nil {
		r.Group(func(api chi.Router) {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			api.Use(httpmiddleware.BearerAuth(cfg.JWTSecret))
			api.Post("/generate", cfg.Dialogue.Generate)
			api.Post("/api/question", cfg.Dialogue.Question)
		})
	}

	return r
}

func health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var failing []string
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failing = append(failing, name)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if len(failing) > 0 {
			sort.Strings(failing)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "degraded", "failing": failing})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
