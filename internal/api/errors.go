package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrSessionExpired возвращается при 401 от любого эндпоинта, кроме входа и регистрации.
	// Сессия к этому моменту уже очищена.
	ErrSessionExpired = errors.New("session expired, please sign in again")
	// ErrCredentialsInvalid возвращается при 401 от входа или регистрации. Сессия не трогается.
	ErrCredentialsInvalid = errors.New("invalid credentials")
	// ErrNotConfigured возвращается, если у клиента нет адреса бэкенда.
	ErrNotConfigured = errors.New("api client not configured")
)

// HTTPError описывает неуспешный ответ бэкенда.
type HTTPError struct {
	Status     int
	Message    string
	RetryAfter time.Duration

	kind error
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Unwrap позволяет сопоставлять ошибку с ErrSessionExpired и ErrCredentialsInvalid.
func (e *HTTPError) Unwrap() error {
	return e.kind
}

func newHTTPError(status int, message string, retryAfter time.Duration) *HTTPError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &HTTPError{Status: status, Message: message, RetryAfter: retryAfter}
}

// StatusOf возвращает HTTP-статус из ошибки или 0, если это не ответ бэкенда.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// IsTooManyRequests сообщает, что бэкенд ответил 429.
func IsTooManyRequests(err error) bool {
	return StatusOf(err) == http.StatusTooManyRequests
}
