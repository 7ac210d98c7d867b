package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service         *appointment.Service
	PgPool          *pgxpool.Pool
	Redis           *redis.Client
	Logger          zerolog.Logger
	Env             string
	Version         string
	DefaultPageSize int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service))
		r.Get("/", listAppointmentsHandler(cfg.Service, pageSize))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Patch("/{id}", patchAppointmentHandler(cfg.Service))
		r.Delete("/{id}", removeAppointmentHandler(cfg.Service))
		r.Post("/{id}/transition", transitionHandler(cfg.Service))
		r.Post("/{id}/reschedule", rescheduleHandler(cfg.Service))
		r.Post("/{id}/services", updateServicesHandler(cfg.Service))
	})

	r.Post("/slots/available", availableSlotsHandler(cfg.Service))

	return r
}
