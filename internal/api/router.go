package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/consultation"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/queue"
)

type RouterConfig struct {
	Appointments  *appointment.Service
	Queue         *queue.Service
	Consultations *consultation.Service
	Directory     directory.Repository

	Logger       zerolog.Logger
	Location     *time.Location
	Clock        func() time.Time
	Dependencies []Dependency
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/doctors", listDoctorsHandler(cfg.Directory))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Directory))
	r.Get("/doctors/{id}/slots", availableSlotsHandler(cfg.Appointments, cfg.Location))

	r.Post("/appointments", createAppointmentHandler(cfg.Appointments, cfg.Location))
	r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/complete", transitionHandler(cfg.Appointments.MarkCompleted))
	r.Post("/appointments/{id}/cancel", transitionHandler(cfg.Appointments.Cancel))

	r.Get("/queue/live", liveQueueHandler(cfg.Queue, cfg.Clock))
	r.Get("/queue/patients/{id}", patientStatusHandler(cfg.Queue, cfg.Clock))

	r.Post("/consultations", createConsultationHandler(cfg.Consultations))
	r.Get("/consultations", listConsultationsHandler(cfg.Consultations))
	r.Get("/consultations/{id}", getConsultationHandler(cfg.Consultations))
	r.Delete("/consultations/{id}", deleteConsultationHandler(cfg.Consultations))

	return r
}
