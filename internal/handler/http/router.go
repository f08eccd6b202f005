package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caredirectory/reviews/internal/service"
	"github.com/caredirectory/reviews/pkg/health"
	"github.com/caredirectory/reviews/pkg/middleware"
)

// Roles allowed to read the moderation queue.
const (
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// RouterConfig carries the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	ServiceName string
	// JWTSecret enables bearer-token identity. Empty means gateway headers are trusted.
	JWTSecret string
	// RateLimiter throttles mutation routes. Nil disables throttling.
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(
	reviewService *service.ReviewService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS)
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Middleware(logger)
	}

	reviewHandler := NewReviewHandler(reviewService, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identify(cfg.JWTSecret, logger))
		r.Use(middleware.RequestLogger(logger))
		r.Use(ContentTypeJSON)

		r.Route("/api/v1/providers/{providerId}/reviews", func(r chi.Router) {
			r.Get("/", reviewHandler.ListReviews)
			r.With(limit).Post("/", reviewHandler.SubmitReview)
			r.Get("/summary", reviewHandler.GetSummary)
			r.With(middleware.RequireRole(RoleModerator, RoleAdmin)).Get("/reported", reviewHandler.ListReported)
		})

		r.Route("/api/v1/reviews/{reviewId}", func(r chi.Router) {
			r.Get("/", reviewHandler.GetReview)

			r.Group(func(r chi.Router) {
				r.Use(limit)

				r.Post("/helpful", reviewHandler.MarkHelpful)
				r.Post("/reports", reviewHandler.ReportReview)
				r.Post("/response", reviewHandler.RespondToReview)
			})
		})
	})

	return r
}
