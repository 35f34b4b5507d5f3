package api

import (
	"log/slog"
	"net/http"

	"github.com/shaiso/gateway-worker/internal/domain"
	"github.com/shaiso/gateway-worker/internal/telemetry"
)

// Config — зависимости служебного HTTP-интерфейса.
type Config struct {
	// Health — обработчик /healthz (service.Lifecycle.HealthHandler).
	Health http.Handler

	// Metrics — обработчик /metrics; nil — эндпоинт не регистрируется.
	Metrics http.Handler

	// Identity — описание сервиса для /routes.
	Identity domain.ServiceIdentity

	Logger *slog.Logger
}

// NewRouter создаёт http.Handler служебного интерфейса.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithTag(logger, telemetry.TagWorker)

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", cfg.Health)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	identity := cfg.Identity
	mux.HandleFunc("/routes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			MethodNotAllowed(w)
			return
		}
		Success(w, map[string]any{
			"service_id":      identity.ServiceID,
			"service_process": identity.MachineID,
			"routing_table":   identity.Routes,
		})
	})

	return Chain(Recovery(logger), Logging(logger))(mux)
}
