// Package api — служебный HTTP-интерфейс воркера: health, метрики и таблица маршрутов.
//
// Эндпоинты:
//
//	GET /healthz  — 200, пока сессия активна, иначе 503
//	GET /metrics  — Prometheus
//	GET /routes   — таблица маршрутов, отправленная при регистрации
package api
