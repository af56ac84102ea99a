// Package notify реализует простую публикацию всплывающих уведомлений интерфейсу.
package notify

import (
	"sync"
	"time"
)

// Kind описывает тип уведомления.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// Toast представляет одно уведомление.
type Toast struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

const subscriberBuffer = 16

// Hub рассылает уведомления подписчикам. Медленный подписчик теряет уведомления, отправитель не блокируется.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Toast
}

// NewHub создаёт пустой Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Toast)}
}

// Subscribe возвращает канал уведомлений и функцию отписки.
func (h *Hub) Subscribe() (<-chan Toast, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Toast, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Publish рассылает уведомление всем подписчикам.
func (h *Hub) Publish(kind Kind, message string) {
	if h == nil || message == "" {
		return
	}

	t := Toast{Kind: kind, Message: message, CreatedAt: time.Now()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// Success публикует уведомление об успехе.
func (h *Hub) Success(message string) { h.Publish(KindSuccess, message) }

// Error публикует уведомление об ошибке.
func (h *Hub) Error(message string) { h.Publish(KindError, message) }
