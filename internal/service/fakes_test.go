package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/gateway-worker/internal/domain"
)

var testBroker = domain.BrokerParams{
	Host:     "amqp://rabbit:5672/",
	User:     "svc",
	Password: "pw",
	Queue:    "q.mailer",
}

var errGateway = errors.New("gateway unavailable")

// eventLog — общий журнал вызовов gateway и брокера, чтобы проверять порядок.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

func (e *eventLog) count(ev string) int {
	n := 0
	for _, x := range e.snapshot() {
		if x == ev {
			n++
		}
	}
	return n
}

type fakeGateway struct {
	log      *eventLog
	interval time.Duration

	mu               sync.Mutex
	registerFailures int
	registerTimes    []time.Time
	heartbeatTokens  []string
	heartbeatFail    func(n int) bool
	heartbeatDelay   time.Duration
	inflight         int
	maxInflight      int
	deregistered     []domain.Session
	causes           []string
	deregisterErr    error
}

func newFakeGateway(log *eventLog, interval time.Duration) *fakeGateway {
	return &fakeGateway{log: log, interval: interval}
}

func (g *fakeGateway) Register(ctx context.Context, id domain.ServiceIdentity) (domain.Session, error) {
	g.log.add("register")

	g.mu.Lock()
	defer g.mu.Unlock()

	g.registerTimes = append(g.registerTimes, time.Now())
	if len(g.registerTimes) <= g.registerFailures {
		return domain.Session{}, errGateway
	}
	return domain.Session{
		Token:             fmt.Sprintf("reg-%d", len(g.registerTimes)-g.registerFailures),
		Broker:            testBroker,
		HeartbeatInterval: g.interval,
		RegisteredAt:      time.Now(),
	}, nil
}

func (g *fakeGateway) Heartbeat(ctx context.Context, s domain.Session) (string, error) {
	g.mu.Lock()
	g.heartbeatTokens = append(g.heartbeatTokens, s.Token)
	n := len(g.heartbeatTokens)
	g.inflight++
	g.maxInflight = max(g.maxInflight, g.inflight)
	delay, fail := g.heartbeatDelay, g.heartbeatFail
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inflight--
		g.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if fail != nil && fail(n) {
		g.log.add("heartbeat-failed")
		return "", errGateway
	}
	g.log.add("heartbeat")
	return fmt.Sprintf("hb-%d", n), nil
}

func (g *fakeGateway) Deregister(_ context.Context, s domain.Session, cause string) error {
	g.log.add("deregister")

	g.mu.Lock()
	defer g.mu.Unlock()
	g.deregistered = append(g.deregistered, s)
	g.causes = append(g.causes, cause)
	return g.deregisterErr
}

func (g *fakeGateway) tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.heartbeatTokens)
}

func (g *fakeGateway) registrations() []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.registerTimes)
}

type fakeBroker struct {
	log *eventLog

	mu     sync.Mutex
	params []domain.BrokerParams
	starts []time.Time
	stops  int
}

func (b *fakeBroker) Start(p domain.BrokerParams) {
	b.log.add("start")

	b.mu.Lock()
	defer b.mu.Unlock()
	b.params = append(b.params, p)
	b.starts = append(b.starts, time.Now())
}

func (b *fakeBroker) Stop() {
	b.log.add("stop")

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
}

func (b *fakeBroker) startCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.starts)
}

type recordingObserver struct {
	mu            sync.Mutex
	registrations []bool
	heartbeats    []bool
	active        []bool
}

func (o *recordingObserver) Registration(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registrations = append(o.registrations, ok)
}

func (o *recordingObserver) Heartbeat(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.heartbeats = append(o.heartbeats, ok)
}

func (o *recordingObserver) SessionActive(active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = append(o.active, active)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
