package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/salon-client/internal/model"
)

func TestDataCache_Freshness(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c := New(DefaultTTL, func() time.Time { return now })

	_, ok := c.Get()
	assert.False(t, ok, "empty cache must miss")

	appts := []model.Appointment{{ID: "1", Status: model.AppointmentStatusScheduled}}
	vip := &model.VipStatus{IsVIP: true}
	c.Set("101", 3, appts, vip)

	now = now.Add(DefaultTTL - time.Millisecond)
	entry, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, appts, entry.Appointments)
	assert.Same(t, vip, entry.VipStatus)
	assert.True(t, entry.BelongsTo("101", 3))

	now = now.Add(time.Millisecond)
	_, ok = c.Get()
	assert.False(t, ok, "entry must expire exactly at TTL")
}

func TestDataCache_Invalidate(t *testing.T) {
	c := New(time.Minute, nil)
	c.Set("101", 1, nil, nil)

	_, ok := c.Get()
	require.True(t, ok)

	c.Invalidate()
	_, ok = c.Get()
	assert.False(t, ok)
}

func TestDataCache_GetReturnsCopy(t *testing.T) {
	c := New(time.Minute, nil)
	c.Set("101", 1, []model.Appointment{{ID: "1"}}, nil)

	entry, ok := c.Get()
	require.True(t, ok)
	entry.Appointments[0].ID = "changed"

	again, _ := c.Get()
	assert.Equal(t, model.ID("1"), again.Appointments[0].ID)
}

func TestEntry_BelongsTo(t *testing.T) {
	entry := Entry{UserID: "101", Generation: 2}

	tests := []struct {
		name       string
		userID     string
		generation uint64
		want       bool
	}{
		{name: "same user and generation", userID: "101", generation: 2, want: true},
		{name: "other user", userID: "102", generation: 2, want: false},
		{name: "same user, later sign in", userID: "101", generation: 4, want: false},
		{name: "no user", userID: "", generation: 2, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entry.BelongsTo(tt.userID, tt.generation))
		})
	}

	assert.False(t, Entry{}.BelongsTo("", 0))
}
