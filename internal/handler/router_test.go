package handler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/gateway-worker/internal/domain"
)

var discard = slog.New(slog.DiscardHandler)

// --- Router Tests ---

func TestRouter_DispatchesByHandlerName(t *testing.T) {
	r := NewRouter()
	r.Register("sendMail", Func(func(_ context.Context, pkg domain.WorkPackage, s domain.Session, _ *slog.Logger) (any, error) {
		return map[string]any{"to": pkg["to"], "token": s.Token}, nil
	}))

	res, err := r.Handle(context.Background(),
		domain.WorkPackage{"handler_name": "sendMail", "to": "a@b"},
		domain.Session{Token: "tok"},
		discard,
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"to": "a@b", "token": "tok"}, res)
}

func TestRouter_UnknownHandler(t *testing.T) {
	r := DefaultRouter()

	_, err := r.Handle(context.Background(), domain.WorkPackage{"handler_name": "nope"}, domain.Session{}, discard)
	assert.ErrorIs(t, err, ErrUnknownHandler)

	// Пакет без handler_name
	_, err = r.Handle(context.Background(), domain.WorkPackage{}, domain.Session{}, discard)
	assert.ErrorIs(t, err, ErrUnknownHandler)
}

func TestRouter_PropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter()
	r.Register("fail", Func(func(context.Context, domain.WorkPackage, domain.Session, *slog.Logger) (any, error) {
		return nil, boom
	}))

	_, err := r.Handle(context.Background(), domain.WorkPackage{"handler_name": "fail"}, domain.Session{}, discard)
	assert.ErrorIs(t, err, boom)
}

func TestRouter_Names(t *testing.T) {
	assert.Equal(t, []string{"delay", "echo"}, DefaultRouter().Names())
}

func TestRouter_Validate(t *testing.T) {
	r := DefaultRouter()

	assert.NoError(t, r.Validate([]domain.Route{{HandlerName: "echo"}, {HandlerName: "delay"}}))

	err := r.Validate([]domain.Route{{HandlerName: "echo"}, {HandlerName: "sendMail"}, {HandlerName: "sendMail"}})
	require.ErrorIs(t, err, ErrMissingHandlers)
	assert.Contains(t, err.Error(), "sendMail")
}

// --- Builtin Tests ---

func TestEchoHandler(t *testing.T) {
	pkg := domain.WorkPackage{"handler_name": "echo", "x": 1.0}

	res, err := (&EchoHandler{}).Handle(context.Background(), pkg, domain.Session{}, discard)
	require.NoError(t, err)
	assert.Equal(t, pkg, res)
}

func TestDelayHandler_Success(t *testing.T) {
	start := time.Now()
	res, err := (&DelayHandler{}).Handle(context.Background(), domain.WorkPackage{"duration_sec": 0.05}, domain.Session{}, discard)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 0.05, res.(map[string]any)["delayed_sec"])
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestDelayHandler_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&DelayHandler{}).Handle(ctx, domain.WorkPackage{"duration_sec": 10.0}, domain.Session{}, discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayHandler_RejectsTooLongDelay(t *testing.T) {
	start := time.Now()
	_, err := (&DelayHandler{}).Handle(context.Background(), domain.WorkPackage{"duration_sec": 1e10}, domain.Session{}, discard)
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
