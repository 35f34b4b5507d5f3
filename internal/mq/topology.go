package mq

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueOptions — параметры объявления рабочей очереди.
type QueueOptions struct {
	// AutoDelete — удалять очередь, когда уходит последний consumer.
	AutoDelete bool

	// MessageTTL — x-message-ttl; аргумент ставится только при TTL > 0.
	MessageTTL time.Duration
}

// Args возвращает аргументы очереди.
func (o QueueOptions) Args() amqp.Table {
	if o.MessageTTL <= 0 {
		return nil
	}
	return amqp.Table{"x-message-ttl": o.MessageTTL.Milliseconds()}
}

// declareQueue объявляет durable очередь сервиса.
func declareQueue(ch Channel, name string, opts QueueOptions) error {
	_, err := ch.QueueDeclare(
		name,            // name
		true,            // durable
		opts.AutoDelete, // delete when unused
		false,           // exclusive
		false,           // no-wait
		opts.Args(),     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}
