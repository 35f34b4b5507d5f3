package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/gateway-worker/internal/domain"
)

// EchoHandler — обработчик "echo".
//
// Возвращает work package как результат. Удобен для проверки связки
// gateway → очередь → сервис → reply-to.
type EchoHandler struct{}

// Handle возвращает pkg.
func (h *EchoHandler) Handle(_ context.Context, pkg domain.WorkPackage, _ domain.Session, _ *slog.Logger) (any, error) {
	if pkg == nil {
		pkg = domain.WorkPackage{}
	}
	return pkg, nil
}

// maxDelay — верхняя граница задержки DelayHandler.
const maxDelay = time.Hour

// DelayHandler — обработчик "delay".
//
// Ожидает указанное количество секунд. Поддерживает отмену через context.
//
// Параметры (из work package):
//   - duration_sec (number): длительность задержки в секундах (default: 1, max: 3600)
type DelayHandler struct{}

// Handle выполняет задержку.
func (h *DelayHandler) Handle(ctx context.Context, pkg domain.WorkPackage, _ domain.Session, logger *slog.Logger) (any, error) {
	durationSec := 1.0
	if val, ok := pkg["duration_sec"]; ok {
		switch v := val.(type) {
		case float64:
			durationSec = v
		case int:
			durationSec = float64(v)
		}
	}

	if durationSec <= 0 {
		durationSec = 1
	}

	// Сравнение до перевода в Duration: большие значения переполняют int64
	if durationSec > maxDelay.Seconds() {
		return nil, fmt.Errorf("%w: duration_sec %g exceeds %s", ErrInvalidParams, durationSec, maxDelay)
	}

	duration := time.Duration(durationSec * float64(time.Second))
	logger.Debug("delaying", "duration", duration)

	// Context-aware ожидание
	select {
	case <-time.After(duration):
		return map[string]any{"ok": true, "delayed_sec": durationSec}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
