// Package gateway — HTTP-клиент control-plane gateway.
//
// Операции:
//   - Register   — POST   /services/register  → Session (token, AMQP, heartbeat)
//   - Heartbeat  — POST   /services/heartbeat → новый service token
//   - Deregister — DELETE /services/register  (best-effort, ошибки только логируются)
//
// Все ответы gateway завёрнуты в конверт {code, message, data}.
// Успех — HTTP 200 и code == 200; всё остальное превращается в APIError.
//
// Клиент не хранит состояния, кроме конфигурации: текущий токен
// принадлежит Session и передаётся в каждый вызов.
package gateway
