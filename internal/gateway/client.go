package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/gateway-worker/internal/domain"
	"github.com/shaiso/gateway-worker/internal/telemetry"
)

const defaultTimeout = 30 * time.Second

// Пути gateway.
const (
	pathRegister  = "/services/register"
	pathHeartbeat = "/services/heartbeat"
)

// InfoSource — источник метрик хоста (sysinfo.Probe).
type InfoSource interface {
	Snapshot(ctx context.Context) (domain.SystemInfo, error)
}

// Config — конфигурация Client.
type Config struct {
	// BaseURL — адрес gateway, например "https://gateway.local".
	BaseURL string

	// APIKey — bearer-ключ для всех запросов.
	APIKey string

	// Timeout — таймаут одного HTTP-запроса (default: 30s).
	Timeout time.Duration

	// HTTPClient — опционально; если nil, создаётся с Timeout.
	HTTPClient *http.Client

	// Probe — источник system_information.
	Probe InfoSource

	Logger *slog.Logger
}

// Client — HTTP-клиент gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	probe      InfoSource
	logger     *slog.Logger
}

// NewClient создаёт клиент gateway.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		probe:      cfg.Probe,
		logger:     logger,
	}
}

// Register регистрирует сервис и возвращает новую Session.
//
// Любая ошибка оборачивается в ErrRegistration; повтор — забота вызывающего.
func (c *Client) Register(ctx context.Context, identity domain.ServiceIdentity) (domain.Session, error) {
	req := registerRequest{
		ServiceID:         identity.ServiceID,
		ServiceProcess:    identity.MachineID,
		SystemInformation: c.systemInfo(ctx),
		RoutingTable:      identity.Routes,
	}
	if req.RoutingTable == nil {
		req.RoutingTable = []domain.Route{}
	}

	var data registerData
	if err := c.call(ctx, http.MethodPost, pathRegister, req, &data); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	if data.Service.Token == "" || data.AMQP.Host == "" || data.AMQP.Queue == "" || data.Gateway.Heartbeat <= 0 {
		return domain.Session{}, fmt.Errorf("%w: %w: missing token, amqp or heartbeat", ErrRegistration, ErrInvalidResponse)
	}

	return domain.Session{
		Token:             data.Service.Token,
		Broker:            data.AMQP,
		HeartbeatInterval: time.Duration(data.Gateway.Heartbeat) * time.Millisecond,
		RegisteredAt:      time.Now(),
	}, nil
}

// Heartbeat продлевает сессию и возвращает новый service token.
//
// Старый токен после успешного ответа становится недействительным.
func (c *Client) Heartbeat(ctx context.Context, session domain.Session) (string, error) {
	req := heartbeatRequest{
		ServiceToken:      session.Token,
		SystemInformation: c.systemInfo(ctx),
	}

	var data heartbeatData
	if err := c.call(ctx, http.MethodPost, pathHeartbeat, req, &data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHeartbeat, err)
	}
	if data.ServiceToken == "" {
		return "", fmt.Errorf("%w: %w: missing service_token", ErrHeartbeat, ErrInvalidResponse)
	}

	return data.ServiceToken, nil
}

// Deregister снимает регистрацию. Best-effort: ошибка логируется
// и возвращается только для информации, повторов нет.
func (c *Client) Deregister(ctx context.Context, session domain.Session, cause string) error {
	req := deregisterRequest{
		ServiceToken: session.Token,
		ExitCause:    cause,
	}

	if err := c.call(ctx, http.MethodDelete, pathRegister, req, nil); err != nil {
		err = fmt.Errorf("%w: %w", ErrDeregistration, err)
		c.logger.Warn("deregistration failed", "tag", telemetry.TagServiceShutdown, "error", err)
		return err
	}

	return nil
}

// systemInfo снимает метрики; ошибки probe не мешают запросу.
func (c *Client) systemInfo(ctx context.Context) domain.SystemInfo {
	if c.probe == nil {
		return domain.SystemInfo{}
	}
	info, err := c.probe.Snapshot(ctx)
	if err != nil {
		c.logger.Debug("system information incomplete", "error", err)
	}
	return info
}

// --- HTTP helpers ---

// call выполняет запрос и раскладывает data из конверта в result (если не nil).
func (c *Client) call(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Code = env.Code
			apiErr.Message = env.Message
		}
		return apiErr
	}

	// Тело DELETE может быть пустым
	if len(bytes.TrimSpace(raw)) == 0 && result == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if env.Code != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if result == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrInvalidResponse)
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}
