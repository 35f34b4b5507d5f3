package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/gateway-worker/internal/domain"
	"github.com/shaiso/gateway-worker/internal/telemetry"
)

// Default configuration values.
const (
	defaultReconnectDelay = 10 * time.Second
	defaultKeepalive      = 60 * time.Second

	consumerPrefix = "gateway-worker-"
)

// State — состояние Manager.
type State string

// Состояния Manager.
const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosing    State = "closing"
	StateFaulted    State = "faulted"
)

// EventKind — тип события соединения.
type EventKind int

const (
	// EventError — соединение закрыто брокером или сетью с ошибкой.
	EventError EventKind = iota + 1

	// EventClosed — соединение закрыто штатно.
	EventClosed
)

// Event — событие соединения или канала.
type Event struct {
	Kind EventKind
	Err  error
}

// eventFrom переводит уведомление amqp091 в Event.
// Штатное закрытие приходит как закрытый канал или nil.
func eventFrom(err *amqp.Error, ok bool) Event {
	if ok && err != nil {
		return Event{Kind: EventError, Err: err}
	}
	return Event{Kind: EventClosed}
}

// DeliveryProcessor обрабатывает одну доставку (Worker).
type DeliveryProcessor interface {
	Process(ctx context.Context, pub Publisher, d amqp.Delivery) error
}

// Observer получает события для метрик. Может быть nil.
type Observer interface {
	BrokerState(state string)
	BrokerReconnect()
	MessageProcessed(outcome string, elapsed time.Duration)
}

// ManagerConfig — конфигурация Manager.
type ManagerConfig struct {
	// Dialer — опционально; по умолчанию AMQPDialer.
	Dialer Dialer

	// Processor — обработчик доставок.
	Processor DeliveryProcessor

	// ReconnectDelay — пауза перед повторным подключением (default: 10s).
	ReconnectDelay time.Duration

	// Keepalive — AMQP heartbeat (default: 60s).
	Keepalive time.Duration

	// Prefetch — максимум неподтверждённых доставок на consumer.
	// 0 — без ограничения: каждая доставка обрабатывается в своей горутине,
	// число одновременных обработчиков ничем не ограничено.
	Prefetch int

	// Queue — параметры объявления очереди.
	Queue QueueOptions

	Observer Observer
	Logger   *slog.Logger
}

// link — одно соединение с каналом и обслуживающие их горутины.
type link struct {
	gen    uint64
	conn   Connection
	ch     Channel
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager владеет соединением с брокером и одним каналом.
//
// Start/Stop безопасны для вызова из разных горутин. Каждое соединение
// получает номер поколения (gen): события и таймеры повтора от
// предыдущих поколений игнорируются, поэтому после reconnect не остаётся
// дублирующих обработчиков.
type Manager struct {
	dialer    Dialer
	processor DeliveryProcessor
	delay     time.Duration
	keepalive time.Duration
	prefetch  int
	queueOpts QueueOptions
	observer  Observer
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	active  bool
	gen     uint64
	params  domain.BrokerParams
	link    *link
	retry   *time.Timer
	lastErr error
}

// NewManager создаёт Manager в состоянии Idle.
func NewManager(cfg ManagerConfig) *Manager {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = AMQPDialer{}
	}

	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	keepalive := cfg.Keepalive
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}

	prefetch := cfg.Prefetch
	if prefetch < 0 {
		prefetch = 0
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		dialer:    dialer,
		processor: cfg.Processor,
		delay:     delay,
		keepalive: keepalive,
		prefetch:  prefetch,
		queueOpts: cfg.Queue,
		observer:  cfg.Observer,
		logger:    telemetry.WithTag(logger, telemetry.TagAMQP),
		state:     StateIdle,
	}
}

// Start подключается к брокеру с параметрами сессии.
//
// Если соединение уже есть, оно сначала закрывается (идемпотентный рестарт).
// Start не ждёт брокер: подключение идёт в отдельной горутине,
// Manager сразу находится в Connecting. Ошибка подключения не возвращается:
// Manager переходит в Faulted и повторяет попытку через ReconnectDelay,
// пока не будет вызван Stop. Stop во время dial не ждёт его завершения:
// устаревшее соединение закрывается по номеру поколения.
func (m *Manager) Start(params domain.BrokerParams) {
	m.mu.Lock()
	old := m.detachLocked()
	m.gen++
	gen := m.gen
	m.params = params
	m.active = true
	m.lastErr = nil
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	m.closeLink(old)

	if m.prefetch == 0 {
		m.logger.Warn("prefetch is unbounded, concurrent handlers are not limited", "queue", params.Queue)
	}

	go m.connect(gen)
}

// Stop закрывает канал и соединение и отменяет запланированные повторы.
// Безопасно вызывать в любом состоянии, в том числе без соединения.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.active = false
	m.gen++
	old := m.detachLocked()
	if old != nil {
		m.setStateLocked(StateClosing)
	}
	m.mu.Unlock()

	m.closeLink(old)

	m.mu.Lock()
	if !m.active {
		m.setStateLocked(StateIdle)
	}
	m.mu.Unlock()
}

// State возвращает текущее состояние.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError возвращает последнюю ошибку подключения (nil после успешного Start).
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// connect — одна попытка подключения поколения gen.
func (m *Manager) connect(gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return
	}
	params := m.params
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	conn, err := m.dialer.Dial(params, m.keepalive)
	if err != nil {
		m.fault(gen, fmt.Errorf("%w: %w", ErrConnect, err))
		return
	}

	ch, deliveries, err := m.setup(conn, params.Queue)
	if err != nil {
		conn.Close()
		m.fault(gen, err)
		return
	}

	connClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClose := ch.NotifyClose(make(chan *amqp.Error, 1))

	m.mu.Lock()
	if !m.currentLocked(gen) {
		// Пока подключались, вызвали Stop или новый Start
		m.mu.Unlock()
		ch.Close()
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &link{
		gen:    gen,
		conn:   conn,
		ch:     ch,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.link = l
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.watch(gen, connClose, chClose)
	}()
	go func() {
		defer wg.Done()
		m.consume(ctx, ch, deliveries)
	}()
	go func() {
		wg.Wait()
		close(l.done)
	}()

	m.logger.Info("connected", "host", params.Host)
	m.logger.Info("worker started", "queue", params.Queue, "prefetch", m.prefetch)
}

// setup открывает канал, объявляет очередь и начинает потребление
// с ручным подтверждением.
func (m *Manager) setup(conn Connection, queue string) (Channel, <-chan amqp.Delivery, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open channel: %w", ErrChannel, err)
	}

	if err := ch.Qos(m.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("%w: set qos: %w", ErrChannel, err)
	}

	if err := declareQueue(ch, queue, m.queueOpts); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("%w: %w", ErrChannel, err)
	}

	deliveries, err := ch.Consume(
		queue,                           // queue
		consumerPrefix+uuid.NewString(), // consumer tag
		false,                           // auto-ack (ack вручную после публикации ответа)
		false,                           // exclusive
		false,                           // no-local
		false,                           // no-wait
		nil,                             // args
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("%w: consume: %w", ErrChannel, err)
	}

	return ch, deliveries, nil
}

// fault фиксирует сбой и планирует повтор.
func (m *Manager) fault(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(gen) {
		return
	}

	m.lastErr = err
	m.logger.Error("connection attempt failed", "error", err, "retry_in", m.delay)
	m.setStateLocked(StateFaulted)
	m.scheduleRetryLocked(gen)
}

func (m *Manager) scheduleRetryLocked(gen uint64) {
	if m.retry != nil {
		m.retry.Stop()
	}
	m.retry = time.AfterFunc(m.delay, func() {
		m.connect(gen)
	})
}

// watch ждёт событий соединения и канала одного поколения.
func (m *Manager) watch(gen uint64, connClose, chClose chan *amqp.Error) {
	for {
		select {
		case err, ok := <-connClose:
			m.onConnectionEvent(gen, eventFrom(err, ok))
			return

		case err, ok := <-chClose:
			ev := eventFrom(err, ok)
			if ev.Kind == EventError {
				m.logger.Error("channel error", "error", ev.Err)
			} else {
				m.logger.Warn("channel closed")
			}
			// Канал закрывается один раз; дальше ждём только соединение
			chClose = nil
		}
	}
}

// onConnectionEvent — обработчик закрытия соединения.
//
// Если сессия жива (Manager активен) — переподключение через ReconnectDelay.
// События старых поколений означают, что закрытие инициировали мы сами.
func (m *Manager) onConnectionEvent(gen uint64, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}

	if m.link != nil && m.link.gen == gen {
		m.link.cancel()
		m.link = nil
	}

	if ev.Kind == EventError {
		m.lastErr = ev.Err
		m.logger.Warn("connection error", "error", ev.Err)
	}

	if !m.active {
		m.setStateLocked(StateIdle)
		return
	}

	m.logger.Warn("reconnection in progress", "retry_in", m.delay)
	if m.observer != nil {
		m.observer.BrokerReconnect()
	}
	m.setStateLocked(StateFaulted)
	m.scheduleRetryLocked(gen)
}

// consume раздаёт доставки обработчику. Каждая доставка обрабатывается
// в отдельной горутине; одновременность ограничивает prefetch.
func (m *Manager) consume(ctx context.Context, ch Channel, deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		go func(d amqp.Delivery) {
			if err := m.processor.Process(ctx, ch, d); err != nil {
				m.logger.Error("channel error", "error", err, "correlation_id", d.CorrelationId)
			}
		}(d)
	}
}

// detachLocked отвязывает текущее соединение и отменяет повтор.
// Закрывать результат нужно вне мьютекса через closeLink.
func (m *Manager) detachLocked() *link {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	l := m.link
	m.link = nil
	return l
}

// closeLink закрывает канал и соединение и ждёт горутины поколения.
func (m *Manager) closeLink(l *link) {
	if l == nil {
		return
	}

	l.cancel()

	if err := l.ch.Close(); err != nil {
		m.logger.Debug("close channel", "error", err)
	}
	if err := l.conn.Close(); err != nil {
		m.logger.Debug("close connection", "error", err)
	}

	<-l.done
	m.logger.Info("connection closed")
}

func (m *Manager) currentLocked(gen uint64) bool {
	return m.active && gen == m.gen
}

func (m *Manager) setStateLocked(s State) {
	m.state = s
	if m.observer != nil {
		m.observer.BrokerState(string(s))
	}
}
