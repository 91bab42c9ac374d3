package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router mounts every route. Health and metrics bypass rate limiting.
// X-Real-IP and X-Forwarded-For are honoured only with TrustProxyHeaders.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	if s.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(Correlation(s.logger), Metrics, Recover)
	if s.cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(s.cfg.MaxBodyBytes))
	}

	r.Get("/healthz", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	limiter := NewClientLimiter(s.cfg.RateLimitPerMinute, s.cfg.RateLimitBurst)
	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimit(limiter))
		r.Post("/totals", s.Totals)
		r.Post("/currency/convert", s.Convert)
		r.Get("/currency/rates", s.Rates)
		r.Post("/quotes/to-invoice", s.ToInvoice)
		r.Post("/export/{type}", s.Export)
		r.Post("/ai/generate", s.Generate)
	})
	return r
}
