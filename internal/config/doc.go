// Package config загружает конфигурацию сервиса из окружения
// и таблицу маршрутов из YAML-файла.
//
// Переменные окружения:
//
//	SERVICE_ID                  идентификатор сервиса (обязательно)
//	API_GATEWAY_SERVER          адрес gateway (обязательно)
//	API_GATEWAY_KEY             bearer-ключ gateway
//	SERVICE_ROUTES_FILE         таблица маршрутов (default: routes.yaml)
//	SERVICE_MESSAGE_TTL         x-message-ttl очереди, мс (0 — не задавать)
//	SERVICE_MESSAGE_AUTODELETE  auto-delete очереди (true/false)
//	SERVICE_PREFETCH            prefetch consumer'а (default: 10, 0 — без лимита)
//	SERVICE_REGISTER_BACKOFF    пауза между попытками регистрации (default: 10s)
//	SERVICE_RECONNECT_DELAY     пауза перед reconnect к брокеру (default: 10s)
//	SERVICE_BROKER_GRACE        задержка старта брокера после регистрации (default: 5s)
//	SERVICE_AMQP_HEARTBEAT      AMQP heartbeat (default: 60s)
//	SERVICE_HTTP_TIMEOUT        таймаут запросов к gateway (default: 30s)
//	SERVICE_DEREGISTER_TIMEOUT  таймаут дерегистрации при остановке (default: 5s)
//	WORKER_PORT                 порт /healthz и /metrics (default: 8082, 0 — выключить)
//	LOG_REPORT                  пересылать логи в gateway (default: true)
//	LOG_REPORT_LEVEL            минимальный уровень пересылки (default: WARN)
package config
