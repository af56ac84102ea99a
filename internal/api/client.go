// Package api предоставляет клиент REST API бэкенда салона.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/salon-client/internal/metrics"
	"github.com/mmeshcher/salon-client/internal/model"
)

const (
	apiPrefix       = "/api"
	maxResponseSize = 10 << 20
)

// TokenStore сохраняет токены между запусками клиента.
type TokenStore interface {
	Load(ctx context.Context) (model.Tokens, error)
	Save(ctx context.Context, tokens model.Tokens) error
	Clear(ctx context.Context) error
}

// Stats содержит диагностические счётчики запросов.
type Stats struct {
	Total         int64
	Success       int64
	Failure       int64
	LastRequestAt time.Time
}

// Client инкапсулирует HTTP-взаимодействие с бэкендом: подставляет токен,
// классифицирует ошибки и очищает сессию при её истечении.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
	store      TokenStore

	mu               sync.RWMutex
	tokens           model.Tokens
	onSessionExpired func()

	total       atomic.Int64
	success     atomic.Int64
	failure     atomic.Int64
	lastRequest atomic.Int64
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет транспорт.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics включает экспорт счётчиков в Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTokenStore задаёт постоянное хранилище токенов.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) {
		c.store = s
	}
}

// NewClient создаёт клиент бэкенда по указанному адресу сервера.
func NewClient(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	base = strings.TrimSuffix(base, apiPrefix)

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSessionExpired регистрирует обработчик, вызываемый после очистки истёкшей сессии.
func (c *Client) OnSessionExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onSessionExpired = fn
}

// SetTokens устанавливает токены и сохраняет их в постоянное хранилище.
func (c *Client) SetTokens(ctx context.Context, tokens model.Tokens) error {
	c.RestoreTokens(tokens)

	if c.store == nil {
		return nil
	}
	if err := c.store.Save(ctx, tokens); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

// RestoreTokens устанавливает токены в памяти без записи в хранилище.
func (c *Client) RestoreTokens(tokens model.Tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens = tokens
}

// StoredTokens читает токены из постоянного хранилища.
func (c *Client) StoredTokens(ctx context.Context) (model.Tokens, error) {
	if c.store == nil {
		return model.Tokens{}, nil
	}
	tokens, err := c.store.Load(ctx)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("load tokens: %w", err)
	}
	return tokens, nil
}

// ClearTokens удаляет токены из памяти и из хранилища.
func (c *Client) ClearTokens(ctx context.Context) {
	c.mu.Lock()
	c.tokens = model.Tokens{}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("clear stored tokens", zap.Error(err))
	}
}

// AccessToken возвращает текущий токен доступа.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.tokens.AccessToken
}

// Stats возвращает снимок диагностических счётчиков.
func (c *Client) Stats() Stats {
	var last time.Time
	if ns := c.lastRequest.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Total:         c.total.Load(),
		Success:       c.success.Load(),
		Failure:       c.failure.Load(),
		LastRequestAt: last,
	}
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// Do выполняет JSON-запрос к /api<path> и декодирует поле data ответа в out.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if c == nil || c.baseURL == "" {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	now := time.Now()
	c.total.Add(1)
	c.lastRequest.Store(now.UnixNano())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(now)
		return fmt.Errorf("do request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.recordFailure(now)
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		// Тело может быть не JSON (например, страница прокси), тогда сообщение берётся из статуса.
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure(now)
		return c.classify(ctx, path, resp, env)
	}

	if env.Success != nil && !*env.Success {
		c.recordFailure(now)
		return newHTTPError(resp.StatusCode, env.text(), 0)
	}

	c.success.Add(1)
	c.metrics.ObserveRequest(metrics.OutcomeSuccess, now)

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	data := env.Data
	if env.Success == nil && len(data) == 0 {
		data = raw
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) recordFailure(at time.Time) {
	c.failure.Add(1)
	c.metrics.ObserveRequest(metrics.OutcomeFailure, at)
}

func (c *Client) classify(ctx context.Context, path string, resp *http.Response, env envelope) error {
	if resp.StatusCode == http.StatusUnauthorized {
		if isAuthEndpoint(path) {
			httpErr := newHTTPError(resp.StatusCode, env.text(), 0)
			if env.text() == "" {
				httpErr.Message = ErrCredentialsInvalid.Error()
			}
			httpErr.kind = ErrCredentialsInvalid
			return httpErr
		}

		c.logger.Info("session expired, clearing tokens", zap.String("path", path))
		c.ClearTokens(context.WithoutCancel(ctx))

		// Выход с истёкшим токеном завершает сессию штатно.
		if !isLogoutEndpoint(path) {
			c.mu.RLock()
			hook := c.onSessionExpired
			c.mu.RUnlock()
			if hook != nil {
				hook()
			}
		}

		httpErr := newHTTPError(resp.StatusCode, ErrSessionExpired.Error(), 0)
		httpErr.kind = ErrSessionExpired
		return httpErr
	}

	var retryAfter time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
	}

	return newHTTPError(resp.StatusCode, env.text(), retryAfter)
}

func isAuthEndpoint(path string) bool {
	p, _, _ := strings.Cut(path, "?")
	return p == "/auth/login" || p == "/auth/register"
}

func isLogoutEndpoint(path string) bool {
	p, _, _ := strings.Cut(path, "?")
	return p == "/auth/logout"
}

// Health проверяет доступность бэкенда через эндпоинт /health без авторизации.
func (c *Client) Health(ctx context.Context) error {
	if c == nil || c.baseURL == "" {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(resp.StatusCode, "", 0)
	}
	return nil
}

// decodeData извлекает значение из data: либо из вложенного поля key, либо целиком.
func decodeData[T any](raw json.RawMessage, key string) (T, error) {
	var zero T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return zero, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if inner, ok := wrapped[key]; ok {
			raw = inner
		}
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// IsAuthError сообщает, что ошибка связана с авторизацией.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrCredentialsInvalid)
}
