package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/gateway-worker/internal/domain"
)

// Dialer устанавливает соединение с брокером.
type Dialer interface {
	Dial(params domain.BrokerParams, keepalive time.Duration) (Connection, error)
}

// Connection — подмножество *amqp.Connection, которое использует Manager.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Channel — подмножество *amqp.Channel.
type Channel interface {
	Publisher
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Publisher публикует сообщения (используется Worker для ответов).
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDialer — Dialer поверх amqp091.
type AMQPDialer struct{}

// Dial подключается к params.Host.
//
// Учётные данные передаются через PLAIN auth, если заданы;
// иначе используются данные из URL.
func (AMQPDialer) Dial(params domain.BrokerParams, keepalive time.Duration) (Connection, error) {
	cfg := amqp.Config{
		Heartbeat: keepalive,
		Locale:    "en_US",
	}
	if params.User != "" {
		cfg.SASL = []amqp.Authentication{
			&amqp.PlainAuth{Username: params.User, Password: params.Password},
		}
	}

	conn, err := amqp.DialConfig(params.Host, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", params.Host, err)
	}
	return amqpConnection{conn}, nil
}

// amqpConnection адаптирует *amqp.Connection к Connection.
type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}
