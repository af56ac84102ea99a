package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/salon-client/internal/model"
)

func day(t time.Time, offset int) string {
	return t.AddDate(0, 0, offset).Format(model.DateLayout)
}

func TestSelectors(t *testing.T) {
	now := time.Now()

	scheduled := model.Appointment{ID: "1", Date: day(now, 1), Time: "10:00", Status: model.AppointmentStatusScheduled}
	completed := model.Appointment{ID: "2", Date: day(now, -1), Status: model.AppointmentStatusCompleted}
	cancelled := model.Appointment{ID: "3", Date: day(now, 1), Status: model.AppointmentStatusCancelled}
	appts := []model.Appointment{scheduled, completed, cancelled}

	assert.Equal(t, []model.Appointment{scheduled}, Upcoming(appts, now))
	assert.Equal(t, []model.Appointment{completed}, Past(appts, now.Location()))
	assert.Equal(t, []model.Appointment{cancelled}, Cancelled(appts))
	assert.Empty(t, Pending(appts, now.Location()))

	next := Next(appts, now)
	require.NotNil(t, next)
	assert.Equal(t, scheduled, *next)

	last := LastCompleted(appts, now.Location())
	require.NotNil(t, last)
	assert.Equal(t, completed, *last)
}

func TestUpcoming_OrderAndPastExclusion(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.Local)

	appts := []model.Appointment{
		{ID: "late", Date: "2026-04-12", Time: "18:00", Status: model.AppointmentStatusConfirmed},
		{ID: "early", Date: "2026-04-11", Time: "09:00", Status: model.AppointmentStatusScheduled},
		{ID: "today-past", Date: "2026-04-10", Time: "11:59", Status: model.AppointmentStatusScheduled},
		{ID: "today-future", Date: "2026-04-10", Time: "12:01", Status: model.AppointmentStatusScheduled},
		{ID: "bad-time", Date: "2026-04-13", Time: "later", Status: model.AppointmentStatusScheduled},
	}

	got := Upcoming(appts, now)
	ids := make([]model.ID, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []model.ID{"today-future", "early", "late"}, ids)
}

func TestPast_DescendingAndPending(t *testing.T) {
	loc := time.Local
	appts := []model.Appointment{
		{ID: "a", Date: "2026-01-01", Time: "10:00", Status: model.AppointmentStatusCompleted},
		{ID: "b", Date: "2026-02-01", Time: "10:00", Status: model.AppointmentStatusCompleted},
		{ID: "p2", Date: "2026-05-02", Time: "10:00", Status: model.AppointmentStatusRequested},
		{ID: "p1", Date: "2026-05-01", Time: "10:00", Status: model.AppointmentStatusPending},
	}

	past := Past(appts, loc)
	require.Len(t, past, 2)
	assert.Equal(t, model.ID("b"), past[0].ID)

	pending := Pending(appts, loc)
	require.Len(t, pending, 2)
	assert.Equal(t, model.ID("p1"), pending[0].ID)
}

func TestVipSelectors(t *testing.T) {
	days := -3
	st := State{VipStatus: &model.VipStatus{IsVIP: false, DaysRemaining: &days}}
	assert.False(t, st.VipActive())
	assert.Equal(t, 0, st.VipDaysRemaining())

	st.User = &model.User{ID: "1", IsVIP: true}
	assert.True(t, st.VipActive(), "user flag alone makes VIP active")

	days = 12
	st = State{VipStatus: &model.VipStatus{IsVIP: true, DaysRemaining: &days}}
	assert.True(t, st.VipActive())
	assert.Equal(t, 12, st.VipDaysRemaining())

	assert.Equal(t, 0, State{}.VipDaysRemaining())
}

func TestStore_SessionLifecycle(t *testing.T) {
	s := New()
	assert.Equal(t, PhaseUninitialized, s.Snapshot().Phase)

	s.SetSession(model.User{ID: "7", Name: "Anna"})
	gen := s.Generation()

	st := s.Snapshot()
	assert.True(t, st.Authenticated)
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Equal(t, "7", s.CurrentUserID())

	ok := s.CommitUserData(gen, []model.Appointment{{ID: "1"}}, &model.VipStatus{IsVIP: true})
	require.True(t, ok)
	assert.Len(t, s.Snapshot().Appointments, 1)

	s.Reset()
	st = s.Snapshot()
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Appointments)
	assert.Equal(t, "", s.CurrentUserID())

	assert.False(t, s.CommitUserData(gen, []model.Appointment{{ID: "stale"}}, nil), "stale generation must be rejected")
	assert.Empty(t, s.Snapshot().Appointments)
}

func TestStore_TerminalStatusesAreFinal(t *testing.T) {
	s := New()
	s.SetSession(model.User{ID: "1"})
	s.CommitUserData(s.Generation(), []model.Appointment{
		{ID: "1", Status: model.AppointmentStatusScheduled},
		{ID: "2", Status: model.AppointmentStatusCancelled},
	}, nil)

	assert.True(t, s.SetAppointmentStatus("1", model.AppointmentStatusCancelled))
	assert.False(t, s.SetAppointmentStatus("1", model.AppointmentStatusScheduled))
	assert.False(t, s.ReplaceAppointment(model.Appointment{ID: "2", Status: model.AppointmentStatusConfirmed}))
	assert.False(t, s.SetAppointmentStatus("missing", model.AppointmentStatusCancelled))

	for _, a := range s.Snapshot().Appointments {
		assert.Equal(t, model.AppointmentStatusCancelled, a.Status)
	}
}

func TestStore_ClosedIgnoresWrites(t *testing.T) {
	s := New()
	s.SetSession(model.User{ID: "1"})
	s.Close()

	assert.False(t, s.Active())
	s.SetError("boom")
	s.AddAppointment(model.Appointment{ID: "x"})

	st := s.Snapshot()
	assert.Empty(t, st.Error)
	assert.Empty(t, st.Appointments)
}

func TestStore_SubscribeAndVipSync(t *testing.T) {
	s := New()
	var seen []State
	cancel := s.Subscribe(func(st State) { seen = append(seen, st) })

	s.SetSession(model.User{ID: "1"})
	s.SetVipStatus(&model.VipStatus{IsVIP: true})

	require.Len(t, seen, 2)
	assert.True(t, seen[1].User.IsVIP)

	cancel()
	s.SetDataLoading(true)
	assert.Len(t, seen, 2)
}

func TestNewView(t *testing.T) {
	now := time.Now()
	st := State{
		Phase:         PhaseReady,
		Authenticated: true,
		Appointments: []model.Appointment{
			{ID: "1", Date: day(now, 2), Time: "10:00", Status: model.AppointmentStatusConfirmed},
		},
	}

	v := NewView(st, now)
	require.NotNil(t, v.Next)
	assert.Equal(t, model.ID("1"), v.Next.ID)
	assert.Len(t, v.Upcoming, 1)
	assert.Nil(t, v.LastCompleted)
	assert.False(t, v.VipActive)
}

func TestStore_LoadingIsUnionOfActionsAndDataLoad(t *testing.T) {
	s := New()

	s.BeginAction()
	s.SetDataLoading(true)
	s.SetDataLoading(false)
	assert.True(t, s.Loading(), "data load finishing must not clear a running action")

	s.BeginAction()
	s.EndAction()
	assert.True(t, s.Loading())

	s.SetDataLoading(true)
	s.EndAction()
	assert.True(t, s.Loading(), "action finishing must not clear a running data load")
	assert.True(t, s.DataLoading())

	s.SetDataLoading(false)
	assert.False(t, s.Loading())

	s.EndAction()
	assert.False(t, s.Loading())
}

func TestStore_ResetKeepsRunningWorkVisible(t *testing.T) {
	s := New()
	s.SetSession(model.User{ID: "1"})
	s.BeginAction()

	s.Reset()
	assert.True(t, s.Snapshot().Loading)

	s.EndAction()
	assert.False(t, s.Snapshot().Loading)
}
