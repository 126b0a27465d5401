package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JoeFilfli/schedule-wise-medical-sub000/internal/metrics"
	"github.com/JoeFilfli/schedule-wise-medical-sub000/internal/scheduling"
)

type RouterConfig struct {
	Service   *scheduling.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Log       *zap.Logger
	Collector *metrics.Collector
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log, cfg.Collector))

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler())

	// Doctor schedule endpoints
	r.Post("/doctors/{doctorID}/slots/generate", generateSlotsHandler(cfg.Service))
	r.Post("/doctors/{doctorID}/slots/copy-previous-week", copyPreviousWeekHandler(cfg.Service))
	r.Get("/doctors/{doctorID}/slots", listSlotsHandler(cfg.Service))
	r.Delete("/doctors/{doctorID}/slots", deleteSlotsForDayHandler(cfg.Service))
	r.Delete("/slots/{slotID}", deleteSlotHandler(cfg.Service))

	// Appointment endpoints
	r.Post("/appointments", bookHandler(cfg.Service))
	r.Get("/appointments", listPatientAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/reschedule", rescheduleHandler(cfg.Service))
	r.Post("/appointments/{id}/resolve", resolveAppointmentHandler(cfg.Service))

	return r
}
