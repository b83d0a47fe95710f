package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinhub/scheduling-engine/internal/ratelimit"
	"github.com/clinhub/scheduling-engine/internal/schedule"
)

type RouterConfig struct {
	Service *schedule.Service
	Limiter ratelimit.Limiter
	PgPool  *pgxpool.Pool
	Redis   *redis.Client // nil when the in-memory limiter is used
	Logger  zerolog.Logger

	APIKey     string
	RateLimit  int
	RateWindow time.Duration

	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints sit outside the trust boundary.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	limited := func(operation string) func(http.Handler) http.Handler {
		return RateLimitMiddleware(cfg.Limiter, operation, cfg.RateLimit, cfg.RateWindow)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyMiddleware(cfg.APIKey))

		r.With(limited("available-slots")).
			Get("/available-slots", availableSlotsHandler(cfg.Service))
		r.With(limited("professional-schedule")).
			Get("/professional-schedule", professionalScheduleHandler(cfg.Service))
		r.With(limited("patient-appointments")).
			Get("/patient-appointments", patientAppointmentsHandler(cfg.Service))
		r.With(limited("professionals")).
			Get("/professionals", professionalsHandler(cfg.Service))
		r.With(limited("cancel-appointment")).
			Delete("/appointments/{id}", cancelAppointmentHandler(cfg.Service))

		r.With(limited("blocks")).
			Get("/professionals/{id}/blocks", listBlocksHandler(cfg.Service))
		r.With(limited("blocks")).
			Post("/professionals/{id}/blocks", createBlockHandler(cfg.Service))
		r.With(limited("blocks")).
			Delete("/blocks/{id}", deleteBlockHandler(cfg.Service))
		r.With(limited("patient-summaries")).
			Get("/professionals/{id}/patients", patientSummariesHandler(cfg.Service))
	})

	return r
}
