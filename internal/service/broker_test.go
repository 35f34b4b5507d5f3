package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/gateway-worker/internal/domain"
	"github.com/shaiso/gateway-worker/internal/mq"
)

// stuckDialer имитирует недоступный брокер: Dial висит до release.
type stuckDialer struct {
	release chan struct{}
	once    sync.Once

	mu    sync.Mutex
	dials int
}

func newStuckDialer(t *testing.T) *stuckDialer {
	d := &stuckDialer{release: make(chan struct{})}
	t.Cleanup(d.unblock)
	return d
}

func (d *stuckDialer) Dial(domain.BrokerParams, time.Duration) (mq.Connection, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()

	<-d.release
	return nil, errors.New("dial timeout")
}

func (d *stuckDialer) unblock() {
	d.once.Do(func() { close(d.release) })
}

func (d *stuckDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newStuckHarness(t *testing.T, tweak func(*Config, *fakeGateway)) (*harness, *stuckDialer) {
	t.Helper()

	dialer := newStuckDialer(t)
	manager := mq.NewManager(mq.ManagerConfig{
		Dialer:         dialer,
		ReconnectDelay: time.Hour,
		Prefetch:       1,
		Logger:         discardLogger(),
	})

	h := newHarness(t, func(cfg *Config, g *fakeGateway) {
		cfg.Broker = manager
		if tweak != nil {
			tweak(cfg, g)
		}
	})
	return h, dialer
}

func TestLifecycle_ShutdownDoesNotWaitForBrokerDial(t *testing.T) {
	h, dialer := newStuckHarness(t, nil)

	h.run(context.Background())
	h.waitActive(t)
	require.Eventually(t, func() bool {
		return dialer.dialCount() == 1
	}, 2*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := h.lc.Shutdown(ctx, "test")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	select {
	case runErr := <-h.runErr:
		assert.NoError(t, runErr)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
	assert.Equal(t, 1, h.log.count("deregister"))
}

func TestLifecycle_ReregistersWhileBrokerDialHangs(t *testing.T) {
	h, dialer := newStuckHarness(t, func(_ *Config, g *fakeGateway) {
		g.heartbeatFail = func(int) bool { return true }
	})

	h.run(context.Background())
	h.waitActive(t)
	require.Eventually(t, func() bool {
		return dialer.dialCount() >= 1
	}, 2*time.Second, time.Millisecond)

	// Heartbeat падает, Lifecycle обязан перерегистрироваться, хотя dial всё ещё висит
	require.Eventually(t, func() bool {
		return len(h.gateway.registrations()) >= 2
	}, time.Second, time.Millisecond)

	assert.NoError(t, h.shutdown(t, "test"))
}
