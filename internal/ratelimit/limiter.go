// Package ratelimit реализует клиентский ограничитель частоты запросов со скользящим окном.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited возвращается, когда операция отклонена ограничителем.
var ErrRateLimited = errors.New("too many requests, wait a moment")

// Значения по умолчанию для окна и лимита.
const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 25
)

// Limiter хранит для каждого ключа отметки времени запросов в пределах окна.
// Ограничитель только советует: очередей и повторов нет.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	window  time.Duration
	max     int
	now     func() time.Time
}

// Option настраивает Limiter.
type Option func(*Limiter)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New создаёт ограничитель с окном window и не более max запросами на ключ.
func New(window time.Duration, max int, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}

	l := &Limiter{
		windows: make(map[string][]time.Time),
		window:  window,
		max:     max,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow проверяет, можно ли выполнить запрос по ключу key, и при успехе учитывает его.
// Отклонённые проверки не записываются.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.windows[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.windows[key] = kept
		return false
	}

	l.windows[key] = append(kept, now)
	return true
}

// Reset очищает историю одного ключа.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
}

// Clear очищает всю таблицу.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windows = make(map[string][]time.Time)
}

// UserDataKey возвращает ключ ограничителя для загрузки данных пользователя.
func UserDataKey(userID string) string {
	return "user-data-" + userID
}
