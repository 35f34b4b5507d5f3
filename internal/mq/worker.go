package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/gateway-worker/internal/domain"
	"github.com/shaiso/gateway-worker/internal/telemetry"
)

// Исходы обработки сообщения (label для метрик).
const (
	OutcomeOK           = "ok"
	OutcomeFailed       = "failed"
	OutcomePublishError = "publish_error"
	OutcomeRejected     = "rejected"
)

// Handler — подключаемая бизнес-логика сервиса.
//
// Получает распарсенный work package, снимок текущей сессии (только чтение)
// и логгер. Результат сериализуется в JSON и уходит ответом в reply-to.
type Handler interface {
	Handle(ctx context.Context, pkg domain.WorkPackage, session domain.Session, logger *slog.Logger) (any, error)
}

// SessionSource возвращает снимок текущей сессии; ok=false, если её нет.
type SessionSource func() (domain.Session, bool)

// WorkerConfig — конфигурация Worker.
type WorkerConfig struct {
	Handler  Handler
	Session  SessionSource
	Observer Observer
	Logger   *slog.Logger
}

// Worker обрабатывает входящие сообщения и публикует коррелированные ответы.
type Worker struct {
	handler  Handler
	session  SessionSource
	observer Observer
	logger   *slog.Logger
}

// NewWorker создаёт Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	session := cfg.Session
	if session == nil {
		session = func() (domain.Session, bool) { return domain.Session{}, false }
	}

	return &Worker{
		handler:  cfg.Handler,
		session:  session,
		observer: cfg.Observer,
		logger:   logger,
	}
}

// Process обрабатывает одну доставку.
//
//  1. Парсит тело как work package
//  2. Вызывает Handler (ошибка или паника → FailureResult)
//  3. Публикует JSON результата в reply-to с тем же correlation-id
//  4. Подтверждает доставку
//
// Ack выполняется тогда и только тогда, когда Publish прошёл.
// Если Publish упал, доставка возвращается брокеру (nack с requeue),
// а ошибка возвращается вызывающему как ошибка канала.
func (w *Worker) Process(ctx context.Context, pub Publisher, d amqp.Delivery) error {
	start := time.Now()
	logger := w.logger.With(
		"tag", telemetry.TagWorker,
		"correlation_id", d.CorrelationId,
		"delivery_tag", d.DeliveryTag,
	)

	if d.ReplyTo == "" {
		logger.Error("message rejected", "error", ErrNoReplyTo)
		if err := d.Reject(false); err != nil {
			logger.Warn("reject failed", "error", err)
		}
		w.observe(OutcomeRejected, start)
		return nil
	}

	result, outcome := w.invoke(ctx, d.Body, logger)

	body, err := json.Marshal(result)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		body, _ = json.Marshal(domain.NewFailureResult(fmt.Errorf("marshal result: %w", err)))
		outcome = OutcomeFailed
	}

	err = pub.PublishWithContext(
		ctx,
		"",        // default exchange
		d.ReplyTo, // routing key = reply queue
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: d.CorrelationId,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		// Ответ не ушёл — не подтверждаем, брокер доставит повторно
		if nackErr := d.Nack(false, true); nackErr != nil {
			logger.Warn("nack failed", "error", nackErr)
		}
		w.observe(OutcomePublishError, start)
		return fmt.Errorf("%w: reply to %s: %w", ErrPublish, d.ReplyTo, err)
	}

	if err := d.Ack(false); err != nil {
		logger.Warn("ack failed", "error", err)
	}

	logger.Debug("message processed", "outcome", outcome, "duration", time.Since(start))
	w.observe(outcome, start)
	return nil
}

// invoke парсит тело и вызывает Handler. Никогда не паникует.
func (w *Worker) invoke(ctx context.Context, body []byte, logger *slog.Logger) (result any, outcome string) {
	var pkg domain.WorkPackage
	if err := json.Unmarshal(body, &pkg); err != nil || pkg == nil {
		if err == nil {
			err = fmt.Errorf("body is not a JSON object")
		}
		logger.Error("failed to parse work package", "error", err, "body", string(body))
		return domain.NewFailureResult(fmt.Errorf("%w: %v", ErrInvalidPackage, err)), OutcomeFailed
	}

	session, _ := w.session()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic recovered",
				"error", r,
				"stack", string(debug.Stack()),
			)
			result = domain.NewFailureResult(fmt.Errorf("%w: %v", ErrHandlerPanic, r))
			outcome = OutcomeFailed
		}
	}()

	res, err := w.handler.Handle(ctx, pkg, session, logger)
	if err != nil {
		logger.Warn("work handler failed", "error", err)
		return domain.NewFailureResult(err), OutcomeFailed
	}

	return res, OutcomeOK
}

func (w *Worker) observe(outcome string, start time.Time) {
	if w.observer != nil {
		w.observer.MessageProcessed(outcome, time.Since(start))
	}
}
