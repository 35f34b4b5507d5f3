package domain

import "time"

// Session — активная регистрация процесса в gateway.
//
// Существует не более одной Session одновременно. Её наличие —
// единственный признак того, что heartbeat и consumer должны работать.
// Session передаётся по значению: обработчики получают снимок только для чтения.
type Session struct {
	// Token — текущий service token. Меняется после каждого heartbeat.
	Token string

	// Broker — параметры подключения к RabbitMQ из ответа регистрации.
	Broker BrokerParams

	// HeartbeatInterval — интервал heartbeat, заданный gateway.
	HeartbeatInterval time.Duration

	// RegisteredAt — время успешной регистрации.
	RegisteredAt time.Time

	// CustomData — результат пользовательской инициализации (может быть nil).
	CustomData any
}

// WithToken возвращает копию сессии с новым токеном.
func (s Session) WithToken(token string) Session {
	s.Token = token
	return s
}

// BrokerParams — параметры подключения к брокеру.
type BrokerParams struct {
	// Host — AMQP URL без учётных данных, например "amqp://rabbit:5672/".
	Host string `json:"host"`

	User     string `json:"user"`
	Password string `json:"password"`

	// Queue — имя очереди, из которой сервис получает work packages.
	Queue string `json:"queue"`
}
