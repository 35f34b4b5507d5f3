// Package mq — работа сервиса с RabbitMQ.
//
// Структура:
//   - amqp.go     — узкие интерфейсы над amqp091 (Dialer, Connection, Channel)
//   - manager.go  — Manager: соединение + один канал, автоматический reconnect
//   - topology.go — объявление рабочей очереди (durable, auto-delete, TTL)
//   - worker.go   — Worker: обработка сообщения и публикация ответа (RPC reply)
//
// # Состояния Manager
//
//	Idle → Connecting → Connected → Closing → Idle
//	           ↑   ↓         ↓
//	           └ Faulted ←───┘
//
// Faulted — обнаружен сбой соединения, запланирована повторная попытка
// через ReconnectDelay. Повтор идёт с теми же параметрами, что передал
// последний Start, и прекращается после Stop.
//
// Ошибки канала только логируются: решение о reconnect принимает
// обработчик событий соединения, поэтому две ветки не гоняются друг с другом.
//
// # Протокол сообщений
//
// Входящее сообщение: тело — JSON work package, reply-to и correlation-id
// в свойствах доставки. Ответ — JSON результата обработчика, публикуется
// в reply-to через default exchange с тем же correlation-id.
// Ack выполняется только после успешного Publish.
package mq
