package mq

import "errors"

// Ошибки mq.
var (
	// ErrConnect — не удалось установить соединение с брокером.
	ErrConnect = errors.New("amqp connect failed")

	// ErrChannel — не удалось открыть или настроить канал.
	ErrChannel = errors.New("amqp channel setup failed")

	// ErrPublish — публикация ответа не удалась, сообщение не подтверждено.
	ErrPublish = errors.New("reply publish failed")

	// ErrNoReplyTo — у сообщения нет reply-to, отвечать некуда.
	ErrNoReplyTo = errors.New("message has no reply-to")

	// ErrInvalidPackage — тело сообщения не является JSON-объектом.
	ErrInvalidPackage = errors.New("invalid work package")

	// ErrHandlerPanic — обработчик запаниковал.
	ErrHandlerPanic = errors.New("work handler panicked")
)
