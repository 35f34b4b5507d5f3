package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultReportBuffer  = 256
	defaultReportTimeout = 5 * time.Second
	reportTimeFormat     = "2006-01-02 15:04:05"
)

// ReportConfig — конфигурация ReportHandler.
type ReportConfig struct {
	// URL — полный адрес, например "https://gateway/service/report".
	URL string

	// APIKey — bearer-ключ gateway.
	APIKey string

	// Level — минимальный уровень пересылаемых записей (default: WARN).
	Level slog.Leveler

	// Buffer — размер очереди записей (default: 256).
	Buffer int

	// Client — опционально; по умолчанию таймаут 5s.
	Client *http.Client

	// OnDrop вызывается, когда запись отброшена (очередь полна или POST не прошёл).
	OnDrop func()
}

// reportEntry — тело POST /service/report.
type reportEntry struct {
	Timestamp      string         `json:"timestamp"`
	Level          string         `json:"level"`
	Message        string         `json:"message"`
	Tags           string         `json:"tags,omitempty"`
	AdditionalInfo map[string]any `json:"additionalInfo"`
}

// reportSink — общая очередь и горутина отправки для всех производных handler'ов.
type reportSink struct {
	cfg    ReportConfig
	queue  chan reportEntry
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// ReportHandler — slog.Handler, пересылающий записи в gateway.
//
// Отправка асинхронная: Handle никогда не блокируется на сети.
// При переполнении очереди запись отбрасывается.
type ReportHandler struct {
	sink   *reportSink
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewReportHandler создаёт handler и запускает горутину отправки.
// Закрывать через Close.
func NewReportHandler(cfg ReportConfig) *ReportHandler {
	if cfg.Level == nil {
		cfg.Level = slog.LevelWarn
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultReportBuffer
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultReportTimeout}
	}

	sink := &reportSink{
		cfg:   cfg,
		queue: make(chan reportEntry, cfg.Buffer),
		done:  make(chan struct{}),
	}
	go sink.run()

	return &ReportHandler{sink: sink, level: cfg.Level}
}

// Enabled реализует slog.Handler.
func (h *ReportHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle ставит запись в очередь отправки.
func (h *ReportHandler) Handle(_ context.Context, r slog.Record) error {
	entry := reportEntry{
		Timestamp:      r.Time.Format(reportTimeFormat),
		Level:          strings.ToLower(r.Level.String()),
		Message:        r.Message,
		AdditionalInfo: make(map[string]any),
	}

	add := func(a slog.Attr) {
		if a.Key == "tag" && len(h.groups) == 0 {
			entry.Tags = a.Value.String()
			return
		}
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		entry.AdditionalInfo[key] = attrValue(a.Value)
	}

	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})

	h.sink.enqueue(entry)
	return nil
}

// WithAttrs реализует slog.Handler.
func (h *ReportHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup реализует slog.Handler.
func (h *ReportHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

// Close прекращает приём записей и ждёт отправки очереди или отмены ctx.
func (h *ReportHandler) Close(ctx context.Context) error {
	h.sink.close()
	select {
	case <-h.sink.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *reportSink) enqueue(e reportEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.queue <- e:
	default:
		s.drop()
	}
}

func (s *reportSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}

func (s *reportSink) run() {
	defer close(s.done)
	for e := range s.queue {
		if err := s.post(e); err != nil {
			// Логировать нельзя — запись вернулась бы сюда же
			s.drop()
		}
	}
}

func (s *reportSink) post(e reportEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("report rejected: %s", resp.Status)
	}
	return nil
}

func (s *reportSink) drop() {
	if s.cfg.OnDrop != nil {
		s.cfg.OnDrop()
	}
}

// attrValue переводит slog.Value в JSON-совместимое значение.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		m := make(map[string]any)
		for _, a := range v.Group() {
			m[a.Key] = attrValue(a.Value)
		}
		return m
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return v.Any()
	}
}
