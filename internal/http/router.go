package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	CORSOrigin     string
	RatePerMinute  int
	RateBurst      int
	// APIKeys maps key to actor id.
	APIKeys map[string]string
}

func NewRouter(handler *Handler, cfg RouterConfig, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	limiter := NewRateLimiter(cfg.RatePerMinute, cfg.RateBurst)
	auth := RequireAPIKey(cfg.APIKeys)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(Timeout(cfg.RequestTimeout))
	r.Use(CORS(cfg.CORSOrigin))

	r.Get("/healthz", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)

			r.Post("/forecasts/import/preview", handler.PreviewForecasts)
			r.Post("/sales/import/preview", handler.PreviewSales)

			r.With(auth).Post("/forecasts/import/commit", handler.CommitForecasts)
			r.With(auth).Post("/sales/import/commit", handler.CommitSales)
		})
	})

	return r
}
