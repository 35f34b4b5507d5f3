package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/gateway-worker/internal/telemetry"
)

// Ошибки конфигурации.
var (
	// ErrMissing — не задана обязательная переменная.
	ErrMissing = errors.New("required variable is not set")

	// ErrInvalid — значение переменной не разбирается.
	ErrInvalid = errors.New("invalid variable value")
)

// Default configuration values.
const (
	DefaultRoutesFile        = "routes.yaml"
	DefaultPrefetch          = 10
	DefaultRegisterBackoff   = 10 * time.Second
	DefaultReconnectDelay    = 10 * time.Second
	DefaultBrokerGrace       = 5 * time.Second
	DefaultAMQPHeartbeat     = 60 * time.Second
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultDeregisterTimeout = 5 * time.Second
	DefaultWorkerPort        = "8082"
)

// Config — конфигурация процесса.
type Config struct {
	ServiceID     string
	GatewayServer string
	GatewayKey    string
	RoutesFile    string

	// Очередь
	MessageTTL time.Duration
	AutoDelete bool
	Prefetch   int

	// Тайминги жизненного цикла
	RegisterBackoff   time.Duration
	ReconnectDelay    time.Duration
	BrokerGrace       time.Duration
	AMQPHeartbeat     time.Duration
	HTTPTimeout       time.Duration
	DeregisterTimeout time.Duration

	// WorkerPort — порт /healthz и /metrics; пустой — сервер не запускается.
	WorkerPort string

	// Пересылка логов в gateway
	LogReport      bool
	LogReportLevel slog.Level
}

// LookupFunc — источник переменных (os.LookupEnv).
type LookupFunc func(key string) (string, bool)

// Load читает конфигурацию из окружения процесса.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom читает конфигурацию из lookup.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		ServiceID:         r.required("SERVICE_ID"),
		GatewayServer:     strings.TrimRight(r.required("API_GATEWAY_SERVER"), "/"),
		GatewayKey:        r.str("API_GATEWAY_KEY", ""),
		RoutesFile:        r.str("SERVICE_ROUTES_FILE", DefaultRoutesFile),
		MessageTTL:        r.millis("SERVICE_MESSAGE_TTL"),
		AutoDelete:        r.boolean("SERVICE_MESSAGE_AUTODELETE", false),
		Prefetch:          r.integer("SERVICE_PREFETCH", DefaultPrefetch),
		RegisterBackoff:   r.duration("SERVICE_REGISTER_BACKOFF", DefaultRegisterBackoff),
		ReconnectDelay:    r.duration("SERVICE_RECONNECT_DELAY", DefaultReconnectDelay),
		BrokerGrace:       r.duration("SERVICE_BROKER_GRACE", DefaultBrokerGrace),
		AMQPHeartbeat:     r.duration("SERVICE_AMQP_HEARTBEAT", DefaultAMQPHeartbeat),
		HTTPTimeout:       r.duration("SERVICE_HTTP_TIMEOUT", DefaultHTTPTimeout),
		DeregisterTimeout: r.duration("SERVICE_DEREGISTER_TIMEOUT", DefaultDeregisterTimeout),
		WorkerPort:        r.str("WORKER_PORT", DefaultWorkerPort),
		LogReport:         r.boolean("LOG_REPORT", true),
		LogReportLevel:    telemetry.ParseLevel(r.str("LOG_REPORT_LEVEL", "WARN")),
	}

	if cfg.Prefetch < 0 {
		r.fail("SERVICE_PREFETCH", strconv.Itoa(cfg.Prefetch))
	}
	if cfg.WorkerPort == "0" {
		cfg.WorkerPort = ""
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReportURL — адрес приёма логов в gateway.
func (c *Config) ReportURL() string {
	return c.GatewayServer + "/service/report"
}

// reader копит ошибки, чтобы сообщить обо всех переменных сразу.
type reader struct {
	lookup LookupFunc
	errs   []error
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(key, value string) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s=%q", ErrInvalid, key, value))
}

func (r *reader) required(key string) string {
	v, ok := r.get(key)
	if !ok {
		r.errs = append(r.errs, fmt.Errorf("%w: %s", ErrMissing, key))
	}
	return v
}

func (r *reader) str(key, def string) string {
	if v, ok := r.get(key); ok {
		return v
	}
	return def
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		r.fail(key, v)
		return def
	}
	return b
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v)
		return def
	}
	return n
}

// millis читает целое число миллисекунд; отрицательные и нулевые значения — 0.
func (r *reader) millis(key string) time.Duration {
	n := r.integer(key, 0)
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

// duration принимает "10s"/"1m" или целое число миллисекунд.
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.fail(key, v)
		return def
	}
	return d
}
