package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gateway_worker"

// Metrics — Prometheus метрики сервиса.
//
// Реализует наблюдателей service.Observer и mq.Observer.
type Metrics struct {
	registrations  *prometheus.CounterVec
	heartbeats     *prometheus.CounterVec
	sessionActive  prometheus.Gauge
	brokerState    *prometheus.GaugeVec
	reconnects     prometheus.Counter
	messages       *prometheus.CounterVec
	handlerLatency prometheus.Histogram
	reportsDropped prometheus.Counter
}

// NewMetrics регистрирует метрики в reg.
// nil — prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Gateway registration attempts by result",
		}, []string{"result"}),
		heartbeats: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Gateway heartbeat calls by result",
		}, []string{"result"}),
		sessionActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "1 while the service holds a live gateway session",
		}),
		brokerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_state",
			Help:      "Current broker connection state (1 for the active state)",
		}, []string{"state"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_reconnects_total",
			Help:      "Broker reconnects triggered by connection loss",
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Processed work messages by outcome",
		}, []string{"outcome"}),
		handlerLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_duration_seconds",
			Help:      "Time from delivery to reply publish",
			Buckets:   prometheus.DefBuckets,
		}),
		reportsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_reports_dropped_total",
			Help:      "Log records not delivered to the gateway report endpoint",
		}),
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Registration учитывает попытку регистрации.
func (m *Metrics) Registration(ok bool) {
	m.registrations.WithLabelValues(result(ok)).Inc()
}

// Heartbeat учитывает вызов heartbeat.
func (m *Metrics) Heartbeat(ok bool) {
	m.heartbeats.WithLabelValues(result(ok)).Inc()
}

// SessionActive отмечает наличие сессии.
func (m *Metrics) SessionActive(active bool) {
	if active {
		m.sessionActive.Set(1)
		return
	}
	m.sessionActive.Set(0)
}

// BrokerState выставляет текущее состояние соединения с брокером.
func (m *Metrics) BrokerState(state string) {
	m.brokerState.Reset()
	m.brokerState.WithLabelValues(state).Set(1)
}

// BrokerReconnect учитывает переподключение.
func (m *Metrics) BrokerReconnect() {
	m.reconnects.Inc()
}

// MessageProcessed учитывает обработанное сообщение.
func (m *Metrics) MessageProcessed(outcome string, elapsed time.Duration) {
	m.messages.WithLabelValues(outcome).Inc()
	m.handlerLatency.Observe(elapsed.Seconds())
}

// ReportDropped учитывает потерянную запись лога.
func (m *Metrics) ReportDropped() {
	m.reportsDropped.Inc()
}
