package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Logging Tests ---

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestFanout_DuplicatesRecords(t *testing.T) {
	var a, b bytes.Buffer
	info := slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo})
	errOnly := slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError})

	logger := slog.New(NewFanout(info, errOnly))
	logger = WithTag(logger, TagAMQP)

	logger.Info("connected")
	logger.Error("connection error", "error", errors.New("eof"))

	assert.Equal(t, 2, bytes.Count(a.Bytes(), []byte("\n")))
	assert.Equal(t, 1, bytes.Count(b.Bytes(), []byte("\n")))
	assert.Contains(t, b.String(), `"tag":"AMQP"`)
}

// --- ReportHandler Tests ---

func TestReportHandler_PostsRecords(t *testing.T) {
	var mu sync.Mutex
	var got []reportEntry
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e reportEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		mu.Lock()
		got = append(got, e)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h := NewReportHandler(ReportConfig{URL: server.URL + "/service/report", APIKey: "key", Level: slog.LevelWarn})
	logger := slog.New(h).With("tag", TagServiceHeartbeat)

	logger.Info("ignored")
	logger.Warn("failed", "error", errors.New("timeout"), "attempt", 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "Bearer key", auth)
	assert.Equal(t, "warn", got[0].Level)
	assert.Equal(t, "failed", got[0].Message)
	assert.Equal(t, TagServiceHeartbeat, got[0].Tags)
	assert.Equal(t, "timeout", got[0].AdditionalInfo["error"])
	assert.EqualValues(t, 2, got[0].AdditionalInfo["attempt"])
}

func TestReportHandler_DropsOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var dropped atomic.Int32
	h := NewReportHandler(ReportConfig{
		URL:    server.URL,
		Level:  slog.LevelInfo,
		OnDrop: func() { dropped.Add(1) },
	})

	slog.New(h).Error("x")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))

	assert.Equal(t, int32(1), dropped.Load())
}

func TestReportHandler_HandleAfterCloseIsNoop(t *testing.T) {
	h := NewReportHandler(ReportConfig{URL: "http://127.0.0.1:0", Level: slog.LevelInfo})
	require.NoError(t, h.Close(context.Background()))

	assert.NotPanics(t, func() {
		slog.New(h).Error("late record")
	})
}

// --- Metrics Tests ---

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Registration(false)
	m.Registration(true)
	m.Heartbeat(true)
	m.SessionActive(true)
	m.BrokerState("connecting")
	m.BrokerState("connected")
	m.BrokerReconnect()
	m.MessageProcessed("ok", 10*time.Millisecond)
	m.MessageProcessed("failed", time.Millisecond)
	m.ReportDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.heartbeats.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.brokerState.WithLabelValues("connected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.brokerState), "only the current state is exported")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsDropped))

	m.SessionActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessionActive))
}
