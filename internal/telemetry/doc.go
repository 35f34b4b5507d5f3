// Package telemetry обеспечивает наблюдаемость сервиса.
//
// Включает:
//   - logging.go — structured logging через slog, теги категорий
//   - report.go  — пересылка логов в gateway (/service/report)
//   - metrics.go — Prometheus метрики
//
// Метрики экспортируются на /metrics, логи — в stdout
// и, опционально, в gateway.
package telemetry
