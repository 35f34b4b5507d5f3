package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/gateway-worker/internal/domain"
)

// --- fake broker ---

type declareCall struct {
	name       string
	durable    bool
	autoDelete bool
	args       amqp.Table
}

type consumeCall struct {
	queue   string
	autoAck bool
}

type fakeChannel struct {
	mu         sync.Mutex
	deliveries chan amqp.Delivery
	notify     []chan *amqp.Error
	closed     bool

	qos       []int
	declared  []declareCall
	consumed  []consumeCall
	published []amqp.Publishing
	keys      []string

	publishErr error
	qosErr     error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = append(c.qos, prefetchCount)
	return c.qosErr
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, declareCall{name: name, durable: durable, autoDelete: autoDelete, args: args})
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) Consume(queue, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumed = append(c.consumed, consumeCall{queue: queue, autoAck: autoAck})
	return c.deliveries, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	if c.closed {
		return amqp.ErrClosed
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeChannel) Close() error {
	c.shutdown(nil)
	return nil
}

// shutdown закрывает канал так же, как amqp091: уведомления, затем deliveries.
func (c *fakeChannel) shutdown(err *amqp.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, n := range c.notify {
		if err != nil {
			n <- err
		}
		close(n)
	}
	c.notify = nil
	close(c.deliveries)
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) publishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

type fakeConn struct {
	mu     sync.Mutex
	ch     *fakeChannel
	notify []chan *amqp.Error
	closed bool
}

func (c *fakeConn) Channel() (Channel, error) {
	return c.ch, nil
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeConn) Close() error {
	c.shutdown(nil)
	return nil
}

// fail имитирует обрыв соединения брокером.
func (c *fakeConn) fail(err *amqp.Error) {
	c.shutdown(err)
}

func (c *fakeConn) shutdown(err *amqp.Error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	notify := c.notify
	c.notify = nil
	c.mu.Unlock()

	c.ch.shutdown(err)
	for _, n := range notify {
		if err != nil {
			n <- err
		}
		close(n)
	}
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer отдаёт ошибку первые failures вызовов, затем новые fakeConn.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	dials    []domain.BrokerParams
	times    []time.Time
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(params domain.BrokerParams, _ time.Duration) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, params)
	d.times = append(d.times, time.Now())
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	conn := &fakeConn{ch: newFakeChannel()}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// --- fake acknowledger ---

type fakeAck struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	rejects int
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) counts() (acks, nacks, rejects int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, a.nacks, a.rejects
}

// --- handlers ---

type handlerFunc func(ctx context.Context, pkg domain.WorkPackage, session domain.Session, logger *slog.Logger) (any, error)

func (f handlerFunc) Handle(ctx context.Context, pkg domain.WorkPackage, session domain.Session, logger *slog.Logger) (any, error) {
	return f(ctx, pkg, session, logger)
}

// recordingObserver собирает события для проверки метрик.
type recordingObserver struct {
	mu         sync.Mutex
	states     []string
	reconnects int
	outcomes   []string
}

func (o *recordingObserver) BrokerState(state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func (o *recordingObserver) BrokerReconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconnects++
}

func (o *recordingObserver) MessageProcessed(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) reconnectCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reconnects
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
