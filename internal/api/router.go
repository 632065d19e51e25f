package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/salon-scheduling/internal/realtime"
)

type RouterConfig struct {
	Service SchedulingService
	Health  *HealthHandler
	WS      *realtime.WSHandler
	Auth    *Authenticator
	Metrics http.Handler // defaults to the global prometheus registry
	Logger  *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Auth == nil {
		cfg.Auth = NewAuthenticator("")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	h := &handlers{svc: cfg.Service, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	r.Method(http.MethodGet, "/metrics", cfg.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware(cfg.Auth))

		// availability is public so customers can browse before signing in
		r.Get("/businesses/{businessID}/employees/{employeeID}/slots", h.getSlots)
		r.Get("/businesses/{businessID}/employees/{employeeID}/working-hours", h.getWorkingHours)

		r.Group(func(r chi.Router) {
			r.Use(RequireActor)

			if cfg.WS != nil {
				r.Get("/ws", serveWS(cfg.WS))
			}

			r.Put("/businesses/{businessID}/employees/{employeeID}/working-hours", h.putWorkingHours)
			r.Get("/businesses/{businessID}/busy-slots", h.listBusySlots)
			r.Post("/businesses/{businessID}/busy-slots", h.createBusySlot)
			r.Delete("/businesses/{businessID}/busy-slots/{id}", h.deleteBusySlot)

			r.Post("/appointments", h.createAppointment)
			r.Get("/appointments/{id}", h.getAppointment)
			r.Post("/appointments/{id}/status", h.updateAppointmentStatus)
			r.Post("/appointments/{id}/cancel", h.cancelAppointment)
			r.Post("/appointments/{id}/reschedule-requests", h.createRescheduleRequest)

			r.Get("/reschedule-requests/{id}", h.getRescheduleRequest)
			r.Post("/reschedule-requests/{id}/resolve", h.resolveRescheduleRequest)
			r.Post("/reschedule-requests/{id}/cancel", h.cancelRescheduleRequest)
		})
	})

	return otelhttp.NewHandler(r, "salon-api",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/metrics" && req.URL.Path != "/health/live"
		}),
	)
}
