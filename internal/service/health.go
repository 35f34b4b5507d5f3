package service

import (
	"encoding/json"
	"net/http"
)

// HealthHandler отвечает 200, пока процесс зарегистрирован (active), иначе 503.
func (l *Lifecycle) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		state := l.State()

		status := http.StatusServiceUnavailable
		if state == StateActive {
			status = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"state": string(state)})
	})
}
