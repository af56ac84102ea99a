// Package cache содержит короткоживущий кэш последних загруженных данных пользователя.
package cache

import (
	"sync"
	"time"

	"github.com/mmeshcher/salon-client/internal/model"
)

// DefaultTTL задаёт время жизни снимка по умолчанию.
const DefaultTTL = 30 * time.Second

// Entry содержит снимок записей и VIP-статуса вместе с пользователем и поколением,
// для которых он был загружен.
type Entry struct {
	UserID       string
	Generation   uint64
	Appointments []model.Appointment
	VipStatus    *model.VipStatus
	UpdatedAt    time.Time
}

// BelongsTo сообщает, что снимок загружен для userID в поколении generation.
func (e Entry) BelongsTo(userID string, generation uint64) bool {
	return userID != "" && e.UserID == userID && e.Generation == generation
}

// DataCache хранит один снимок, привязанный к текущему пользователю процесса.
type DataCache struct {
	mu    sync.RWMutex
	entry Entry
	ttl   time.Duration
	now   func() time.Time
}

// New создаёт кэш с указанным TTL. now может быть nil.
func New(ttl time.Duration, now func() time.Time) *DataCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &DataCache{ttl: ttl, now: now}
}

// Get возвращает снимок, если он был записан и ещё не устарел.
func (c *DataCache) Get() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.entry.UpdatedAt.IsZero() {
		return Entry{}, false
	}
	if c.now().Sub(c.entry.UpdatedAt) >= c.ttl {
		return Entry{}, false
	}

	return Entry{
		UserID:       c.entry.UserID,
		Generation:   c.entry.Generation,
		Appointments: append([]model.Appointment(nil), c.entry.Appointments...),
		VipStatus:    c.entry.VipStatus,
		UpdatedAt:    c.entry.UpdatedAt,
	}, true
}

// Set сохраняет новый снимок для userID в поколении generation.
func (c *DataCache) Set(userID string, generation uint64, appointments []model.Appointment, vip *model.VipStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = Entry{
		UserID:       userID,
		Generation:   generation,
		Appointments: append([]model.Appointment(nil), appointments...),
		VipStatus:    vip,
		UpdatedAt:    c.now(),
	}
}

// Invalidate помечает снимок устаревшим, данные остаются до следующей записи.
func (c *DataCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry.UpdatedAt = time.Time{}
}
