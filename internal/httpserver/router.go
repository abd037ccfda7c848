package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"narration-gateway/internal/handlers"
	"narration-gateway/internal/metrics"
	"narration-gateway/internal/middleware"
)

type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, narrationHandler *handlers.NarrationHandler, opts Options) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())                    // panic recovery
	r.Use(middleware.Timeout(opts.RequestTimeout))   // request timeout
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes)) // max body

	// routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/presentation", func(r chi.Router) {
			r.Post("/narrate", narrationHandler.Narrate)
			r.Post("/narration/resynthesize", narrationHandler.Resynthesize)
			r.Get("/live/{scope}", narrationHandler.LivePointer)
		})
		r.Get("/audio/{name}", narrationHandler.AudioObject)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
