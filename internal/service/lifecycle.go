package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/gateway-worker/internal/domain"
	"github.com/shaiso/gateway-worker/internal/telemetry"
)

// Default configuration values.
const (
	defaultRegisterBackoff   = 10 * time.Second
	defaultBrokerGrace       = 5 * time.Second
	defaultDeregisterTimeout = 5 * time.Second
)

// State — состояние жизненного цикла.
type State string

const (
	StateUnregistered State = "unregistered"
	StateRegistering  State = "registering"
	StateActive       State = "active"
	StateShuttingDown State = "shutting_down"
	StateTerminated   State = "terminated"
)

// Gateway — операции control plane.
type Gateway interface {
	Register(ctx context.Context, identity domain.ServiceIdentity) (domain.Session, error)
	Heartbeat(ctx context.Context, session domain.Session) (string, error)
	Deregister(ctx context.Context, session domain.Session, cause string) error
}

// Broker — сторона очереди (mq.Manager).
// Start не должен ждать подключения: он вызывается под brokerMu.
type Broker interface {
	Start(params domain.BrokerParams)
	Stop()
}

// Initializer — пользовательская инициализация после регистрации.
// Результат попадает в Session.CustomData.
type Initializer interface {
	Init(ctx context.Context, logger *slog.Logger) (any, error)
}

// InitFunc — адаптер функции к Initializer.
type InitFunc func(ctx context.Context, logger *slog.Logger) (any, error)

// Init реализует Initializer.
func (f InitFunc) Init(ctx context.Context, logger *slog.Logger) (any, error) {
	return f(ctx, logger)
}

// Observer получает события жизненного цикла (метрики). Может быть nil.
type Observer interface {
	Registration(ok bool)
	Heartbeat(ok bool)
	SessionActive(active bool)
}

// Config — конфигурация Lifecycle.
type Config struct {
	Gateway  Gateway
	Broker   Broker
	Identity domain.ServiceIdentity

	// Initializer — опционально.
	Initializer Initializer

	RegisterBackoff   time.Duration // пауза после неудачной регистрации (default: 10s)
	BrokerGrace       time.Duration // задержка старта брокера (default: 5s)
	DeregisterTimeout time.Duration // таймаут дерегистрации (default: 5s)

	Observer Observer
	Logger   *slog.Logger
}

// Lifecycle владеет сессией и управляет регистрацией, heartbeat и брокером.
type Lifecycle struct {
	gateway     Gateway
	broker      Broker
	identity    domain.ServiceIdentity
	initializer Initializer

	registerBackoff   time.Duration
	brokerGrace       time.Duration
	deregisterTimeout time.Duration

	observer Observer
	logger   *slog.Logger

	// Сессия и состояние; единственный писатель — горутина Run,
	// после её остановки — Shutdown.
	mu      sync.RWMutex
	session *domain.Session
	state   State
	cancel  context.CancelFunc
	done    chan struct{}

	// Отложенный старт брокера
	brokerMu   sync.Mutex
	brokerGen  uint64
	graceTimer *time.Timer

	shuttingDown atomic.Bool
	shutdownDone chan struct{}
}

// New создаёт Lifecycle.
func New(cfg Config) *Lifecycle {
	registerBackoff := cfg.RegisterBackoff
	if registerBackoff <= 0 {
		registerBackoff = defaultRegisterBackoff
	}

	brokerGrace := cfg.BrokerGrace
	if brokerGrace < 0 {
		brokerGrace = defaultBrokerGrace
	}

	deregisterTimeout := cfg.DeregisterTimeout
	if deregisterTimeout <= 0 {
		deregisterTimeout = defaultDeregisterTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Lifecycle{
		gateway:           cfg.Gateway,
		broker:            cfg.Broker,
		identity:          cfg.Identity,
		initializer:       cfg.Initializer,
		registerBackoff:   registerBackoff,
		brokerGrace:       brokerGrace,
		deregisterTimeout: deregisterTimeout,
		observer:          cfg.Observer,
		logger:            logger,
		state:             StateUnregistered,
		shutdownDone:      make(chan struct{}),
	}
}

// Session возвращает снимок текущей сессии.
// Подходит как mq.SessionSource.
func (l *Lifecycle) Session() (domain.Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.session == nil {
		return domain.Session{}, false
	}
	return *l.session, true
}

// State возвращает текущее состояние.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Run выполняет цикл регистрация → heartbeat → (сбой) → регистрация
// до отмены ctx или вызова Shutdown. Сетевые ошибки не возвращаются:
// они логируются и обрабатываются повтором.
//
// При отмене сессия сохраняется, чтобы Shutdown мог дерегистрироваться.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.shuttingDown.Load() {
		l.mu.Unlock()
		return ErrShutdown
	}
	if l.done != nil {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.mu.Unlock()

	defer close(done)
	defer cancel()

	for {
		session, ok := l.register(ctx)
		if !ok {
			return nil
		}

		l.activate(ctx, session)

		if err := l.heartbeatLoop(ctx, session.HeartbeatInterval); err == nil || ctx.Err() != nil {
			return nil
		}

		l.teardown()

		l.logger.Info("restart in progress",
			"tag", telemetry.TagStartService,
			"backoff", l.registerBackoff,
		)
		if !sleep(ctx, l.registerBackoff) {
			return nil
		}
	}
}

// register повторяет регистрацию до успеха; false — ctx отменён.
func (l *Lifecycle) register(ctx context.Context) (domain.Session, bool) {
	log := telemetry.WithTag(l.logger, telemetry.TagStartService)

	for attempt := 1; ; attempt++ {
		l.setState(StateRegistering)
		log.Info("try to start service", "attempt", attempt)

		session, err := l.gateway.Register(ctx, l.identity)
		if err == nil {
			l.notifyRegistration(true)
			log.Info("registered",
				"queue", session.Broker.Queue,
				"heartbeat", session.HeartbeatInterval,
			)
			return session, true
		}

		if ctx.Err() != nil {
			return domain.Session{}, false
		}

		l.notifyRegistration(false)
		l.setState(StateUnregistered)
		log.Error("service registration failed",
			"error", err,
			"attempt", attempt,
			"backoff", l.registerBackoff,
		)

		if !sleep(ctx, l.registerBackoff) {
			return domain.Session{}, false
		}
	}
}

// activate устанавливает сессию, выполняет пользовательскую инициализацию
// и планирует старт брокера.
func (l *Lifecycle) activate(ctx context.Context, session domain.Session) {
	if l.initializer != nil {
		data, err := l.initializer.Init(ctx, l.logger)
		if err != nil {
			l.logger.Error("service custom init failed",
				"tag", telemetry.TagStartService,
				"error", err,
			)
		}
		session.CustomData = data
	}

	l.mu.Lock()
	l.session = &session
	l.mu.Unlock()
	l.setState(StateActive)

	if l.observer != nil {
		l.observer.SessionActive(true)
	}

	params := session.Broker

	l.brokerMu.Lock()
	l.brokerGen++
	gen := l.brokerGen
	l.graceTimer = time.AfterFunc(l.brokerGrace, func() {
		l.startBroker(gen, params)
	})
	l.brokerMu.Unlock()
}

func (l *Lifecycle) startBroker(gen uint64, params domain.BrokerParams) {
	l.brokerMu.Lock()
	defer l.brokerMu.Unlock()

	// Сессия, для которой планировался старт, уже снята
	if gen != l.brokerGen {
		return
	}
	l.graceTimer = nil
	l.broker.Start(params)
}

// stopBroker отменяет отложенный старт и закрывает соединение.
// После возврата брокер не запустится для уже снятой сессии.
func (l *Lifecycle) stopBroker() {
	l.brokerMu.Lock()
	defer l.brokerMu.Unlock()

	l.brokerGen++
	if l.graceTimer != nil {
		l.graceTimer.Stop()
		l.graceTimer = nil
	}
	l.broker.Stop()
}

// heartbeatLoop шлёт heartbeat, пока они успешны.
// Таймер перезапускается только после ответа, поэтому вызовы не пересекаются.
func (l *Lifecycle) heartbeatLoop(ctx context.Context, interval time.Duration) error {
	log := telemetry.WithTag(l.logger, telemetry.TagServiceHeartbeat)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		current, ok := l.Session()
		if !ok {
			return ErrShutdown
		}

		token, err := l.gateway.Heartbeat(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.observer != nil {
				l.observer.Heartbeat(false)
			}
			log.Error("failed", "error", err)
			return err
		}

		l.mu.Lock()
		if l.session != nil {
			rotated := l.session.WithToken(token)
			l.session = &rotated
		}
		l.mu.Unlock()

		if l.observer != nil {
			l.observer.Heartbeat(true)
		}
		log.Debug("token rotated")

		timer.Reset(interval)
	}
}

// teardown останавливает брокер и снимает сессию.
func (l *Lifecycle) teardown() {
	l.stopBroker()

	l.mu.Lock()
	l.session = nil
	l.mu.Unlock()
	l.setState(StateUnregistered)

	if l.observer != nil {
		l.observer.SessionActive(false)
	}
}

// Shutdown останавливает цикл, дерегистрирует сессию (если она есть)
// и закрывает брокер. Повторные и параллельные вызовы ничего не делают
// и только ждут завершения первого (или отмены ctx).
//
// Ошибка дерегистрации возвращается, но процесс должен завершиться в любом случае.
func (l *Lifecycle) Shutdown(ctx context.Context, cause string) error {
	if !l.shuttingDown.CompareAndSwap(false, true) {
		select {
		case <-l.shutdownDone:
		case <-ctx.Done():
		}
		return nil
	}
	defer close(l.shutdownDone)

	log := telemetry.WithTag(l.logger, telemetry.TagServiceShutdown)
	log.Info("shutting down", "cause", cause)

	l.mu.Lock()
	l.state = StateShuttingDown
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	// Сначала останавливаем heartbeat
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			log.Warn("run loop did not stop in time", "error", ctx.Err())
		}
	}

	l.mu.Lock()
	session := l.session
	l.session = nil
	l.mu.Unlock()

	var err error
	if session != nil {
		dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), l.deregisterTimeout)
		err = l.gateway.Deregister(dctx, *session, cause)
		dcancel()
		if err != nil {
			err = fmt.Errorf("deregister: %w", err)
		}
	}

	l.stopBroker()

	if l.observer != nil && session != nil {
		l.observer.SessionActive(false)
	}

	l.setState(StateTerminated)
	log.Info("service stopped", "cause", cause, "deregistered", session != nil && err == nil)

	return err
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Shutdown не откатывается обратно в цикл регистрации
	if l.state == StateShuttingDown || l.state == StateTerminated {
		if s != StateTerminated {
			return
		}
	}
	l.state = s
}

func (l *Lifecycle) notifyRegistration(ok bool) {
	if l.observer != nil {
		l.observer.Registration(ok)
	}
}

// sleep ждёт d; false — ctx отменён раньше.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
