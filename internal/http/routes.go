package httpx

import (
	"log/slog"
	"net/http"

	"github.com/gittidev/vibe-socket-test/internal/adapters/websocket"
	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Hub      *service.RelayHub
	Upgrader *websocket.Upgrader

	// Optional: alert rule API and the alert stream; nil leaves them unrouted.
	Alerts *service.AlertRuleService
	// Optional: roster served at /api/patients.
	Patients PatientLister

	// Optional: readiness probe target; nil makes /readyz mirror /healthz.
	Ready core.Pinger
	// Optional: exposition handler mounted at /metrics.
	Metrics http.Handler

	AllowedOrigins []string
	SubmitLimit    RateLimitConfig
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router with its middleware chain.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs}
	streamHandlers := &StreamHandlers{Hub: services.Hub, Upgrader: services.Upgrader, Logger: logger}

	registerJobRoutes(mux, jobHandlers, RateLimit(services.SubmitLimit))
	mux.HandleFunc("GET /ws", streamHandlers.ServeWS)
	if services.Alerts != nil {
		registerAlertRoutes(mux, &AlertHandlers{Svc: services.Alerts})
		mux.HandleFunc("GET /ws/alerts", streamHandlers.ServeAlertsWS)
	}
	if services.Patients != nil {
		mux.HandleFunc("GET /api/patients", (&PatientHandlers{Roster: services.Patients}).List)
	}
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Ready, logger))
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	var handler http.Handler = mux
	handler = CORS(services.AllowedOrigins)(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/process-patient/{patientId}", limit(http.HandlerFunc(h.Submit)))
	mux.HandleFunc("GET /api/process-patient/{patientId}", h.Status)
}

func registerAlertRoutes(mux *http.ServeMux, h *AlertHandlers) {
	mux.HandleFunc("GET /api/alert-rules", h.List)
	mux.HandleFunc("PUT /api/alert-rules/default", h.PutDefault)
	mux.HandleFunc("PUT /api/alert-rules/ward/{ward}", h.PutWard)
	mux.HandleFunc("DELETE /api/alert-rules/ward/{ward}", h.DeleteWard)
	mux.HandleFunc("PUT /api/alert-rules/patient/{patientId}", h.PutPatient)
	mux.HandleFunc("DELETE /api/alert-rules/patient/{patientId}", h.DeletePatient)
}
