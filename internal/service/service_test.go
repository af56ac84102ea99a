package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/salon-client/internal/api"
	"github.com/mmeshcher/salon-client/internal/cache"
	"github.com/mmeshcher/salon-client/internal/fakebackend"
	"github.com/mmeshcher/salon-client/internal/loader"
	"github.com/mmeshcher/salon-client/internal/model"
	"github.com/mmeshcher/salon-client/internal/notify"
	"github.com/mmeshcher/salon-client/internal/ratelimit"
	"github.com/mmeshcher/salon-client/internal/storage"
	"github.com/mmeshcher/salon-client/internal/store"
	"github.com/mmeshcher/salon-client/internal/validation"
)

const (
	testEmail    = "anna@example.com"
	testPassword = "secret1"
)

type testEnv struct {
	backend *fakebackend.Backend
	client  *api.Client
	tokens  *storage.MemoryTokenStore
	store   *store.Store
	cache   *cache.DataCache
	hub     *notify.Hub
	svc     *Service
	user    model.User
}

type envOptions struct {
	rateLimit int
	cacheTTL  time.Duration
}

func newEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	if opts.rateLimit == 0 {
		opts.rateLimit = ratelimit.DefaultMax
	}

	backend := fakebackend.New()
	user := backend.AddUser("Anna", testEmail, testPassword)
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	tokens := storage.NewMemoryTokenStore(model.Tokens{})
	client := api.NewClient(ts.URL, api.WithTokenStore(tokens))
	st := store.New()
	c := cache.New(opts.cacheTTL, nil)
	limiter := ratelimit.New(time.Minute, opts.rateLimit)
	ld := loader.New(client, st, c, limiter, loader.WithInterCallDelay(0), loader.WithDebounce(0))
	hub := notify.NewHub()

	svc := NewService(client, st, ld, limiter, c, WithNotifier(hub))
	client.OnSessionExpired(svc.SessionExpired)

	t.Cleanup(func() {
		ld.Close()
		svc.Close()
	})

	return &testEnv{backend: backend, client: client, tokens: tokens, store: st, cache: c, hub: hub, svc: svc, user: user}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()

	_, err := e.svc.Login(context.Background(), model.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, 1, e.backend.Count(http.MethodGet, "/api/vip/status"))
}

func tomorrow() string {
	return time.Now().AddDate(0, 0, 1).Format(model.DateLayout)
}

func TestLogin_LoadsUserData(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.backend.AddAppointment(env.user.ID, model.Appointment{
		Date: tomorrow(), Time: "10:00", ServiceID: "1", Status: model.AppointmentStatusScheduled,
	})

	env.login(t)

	view := env.svc.State()
	assert.True(t, view.Authenticated)
	assert.Equal(t, "Welcome back", view.Success)
	require.NotNil(t, view.Next)
	assert.Len(t, view.Upcoming, 1)

	stored, err := env.tokens.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.Complete())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newEnv(t, envOptions{})

	_, err := env.svc.Login(context.Background(), model.Credentials{Email: testEmail, Password: "wrong-password"})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrCredentialsInvalid)

	st := env.store.Snapshot()
	assert.False(t, st.Authenticated)
	assert.Equal(t, "Invalid email or password", st.Error)
	assert.False(t, st.Loading)
}

func TestLogin_ValidationBeforeNetwork(t *testing.T) {
	env := newEnv(t, envOptions{})

	_, err := env.svc.Login(context.Background(), model.Credentials{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, validation.ErrValidation)
	assert.Zero(t, env.backend.Count(http.MethodPost, "/api/auth/login"))
}

func TestAddAppointment_RejectedBeforeNetwork(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.login(t)

	past := time.Now().Add(-2 * time.Hour)

	tests := []struct {
		name  string
		req   model.AppointmentRequest
		field string
	}{
		{
			name:  "past date and time",
			req:   model.AppointmentRequest{Date: past.Format(model.DateLayout), Time: past.Format(model.TimeLayout), ServiceID: "1"},
			field: "date",
		},
		{
			name:  "malformed time",
			req:   model.AppointmentRequest{Date: tomorrow(), Time: "25:99", ServiceID: "1"},
			field: "time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.AddAppointment(context.Background(), tt.req)
			require.Error(t, err)

			var vErr *validation.Error
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
			assert.NotEmpty(t, env.store.Snapshot().Error)
		})
	}

	assert.Zero(t, env.backend.Count(http.MethodPost, "/api/appointments"))
}

func TestAddAppointment_Success(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.login(t)

	toasts, unsubscribe := env.hub.Subscribe()
	defer unsubscribe()

	a, err := env.svc.AddAppointment(context.Background(), model.AppointmentRequest{
		Date: tomorrow(), Time: "15:00", ServiceID: "2", Notes: "window seat",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, a.Status)

	st := env.store.Snapshot()
	require.Len(t, st.Appointments, 1)
	assert.Equal(t, "Appointment booked", st.Success)
	assert.False(t, st.Loading)

	_, cached := env.cache.Get()
	assert.False(t, cached, "mutation must invalidate the cache")

	select {
	case toast := <-toasts:
		assert.Equal(t, notify.KindSuccess, toast.Kind)
	case <-time.After(time.Second):
		t.Fatal("no toast published")
	}
}

func TestAddAppointment_RateLimited(t *testing.T) {
	env := newEnv(t, envOptions{rateLimit: 2})
	env.login(t)

	req := model.AppointmentRequest{Date: tomorrow(), Time: "09:00", ServiceID: "1"}
	_, err := env.svc.AddAppointment(context.Background(), req)
	require.NoError(t, err)

	req.Time = "11:00"
	_, err = env.svc.AddAppointment(context.Background(), req)
	require.NoError(t, err)

	req.Time = "12:00"
	_, err = env.svc.AddAppointment(context.Background(), req)
	assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
	assert.Equal(t, loader.MsgTooManyRequests, env.store.Snapshot().Error)
	assert.Equal(t, 2, env.backend.Count(http.MethodPost, "/api/appointments"))
}

func TestCancelAppointment_InvalidatesCache(t *testing.T) {
	env := newEnv(t, envOptions{})
	appt := env.backend.AddAppointment(env.user.ID, model.Appointment{
		Date: tomorrow(), Time: "10:00", ServiceID: "1", Status: model.AppointmentStatusScheduled,
	})
	env.login(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Refresh(ctx, false))
	assert.Equal(t, 1, env.backend.Count(http.MethodGet, "/api/appointments"), "fresh cache serves the refresh")

	_, err := env.svc.CancelAppointment(ctx, appt.ID, "changed plans")
	require.NoError(t, err)
	st := env.store.Snapshot()
	require.Len(t, st.Appointments, 1)
	assert.Equal(t, model.AppointmentStatusCancelled, st.Appointments[0].Status)

	require.NoError(t, env.svc.Refresh(ctx, false))
	assert.Equal(t, 2, env.backend.Count(http.MethodGet, "/api/appointments"))

	view := env.svc.State()
	assert.Len(t, view.Cancelled, 1)
	assert.Nil(t, view.Next)
}

func TestCancelAppointment_FailureKeepsState(t *testing.T) {
	env := newEnv(t, envOptions{})
	appt := env.backend.AddAppointment(env.user.ID, model.Appointment{
		Date: tomorrow(), Time: "10:00", ServiceID: "1", Status: model.AppointmentStatusCompleted,
	})
	env.login(t)

	_, err := env.svc.CancelAppointment(context.Background(), appt.ID, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, api.StatusOf(err))

	st := env.store.Snapshot()
	assert.Equal(t, model.AppointmentStatusCompleted, st.Appointments[0].Status)
	assert.NotEmpty(t, st.Error)
	assert.False(t, st.Loading)
}

func TestSessionExpired_ResetsState(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.login(t)

	env.backend.Fail(http.MethodGet, "/api/appointments", http.StatusUnauthorized)
	err := env.svc.Refresh(context.Background(), true)
	assert.ErrorIs(t, err, api.ErrSessionExpired)

	st := env.store.Snapshot()
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.User)
	assert.Equal(t, api.ErrSessionExpired.Error(), st.Error)

	stored, _ := env.tokens.Load(context.Background())
	assert.False(t, stored.Complete())
	assert.Empty(t, env.client.AccessToken())

	assert.ErrorIs(t, env.svc.Refresh(context.Background(), false), ErrNotAuthenticated)
}

func TestLogout(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.login(t)

	env.svc.Logout(context.Background())

	st := env.store.Snapshot()
	assert.False(t, st.Authenticated)
	assert.Empty(t, st.Appointments)
	assert.Equal(t, store.PhaseReady, st.Phase)
	assert.Equal(t, 1, env.backend.Count(http.MethodPost, "/api/auth/logout"))

	_, cached := env.cache.Get()
	assert.False(t, cached)
}

func TestVipSubscription(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.login(t)
	ctx := context.Background()

	vip, err := env.svc.SubscribeVip(ctx, "monthly", "card")
	require.NoError(t, err)
	assert.True(t, vip.IsVIP)

	view := env.svc.State()
	assert.True(t, view.VipActive)
	assert.Equal(t, 30, view.VipDaysRemaining)
	assert.True(t, view.User.IsVIP)

	_, err = env.svc.CancelVipSubscription(ctx, "moving away")
	require.NoError(t, err)

	view = env.svc.State()
	assert.False(t, view.VipActive)
	assert.Zero(t, view.VipDaysRemaining)
}

func TestRescheduleAppointment(t *testing.T) {
	env := newEnv(t, envOptions{})
	appt := env.backend.AddAppointment(env.user.ID, model.Appointment{
		Date: tomorrow(), Time: "10:00", ServiceID: "1", Status: model.AppointmentStatusConfirmed,
	})
	env.login(t)
	ctx := context.Background()

	_, err := env.svc.RescheduleAppointment(ctx, appt.ID, tomorrow(), "7pm")
	assert.ErrorIs(t, err, validation.ErrValidation)

	moved, err := env.svc.RescheduleAppointment(ctx, appt.ID, tomorrow(), "16:00")
	require.NoError(t, err)
	assert.Equal(t, "16:00", moved.Time)
	assert.Equal(t, "16:00", env.store.Snapshot().Appointments[0].Time)
}

func TestProfileAndAvatar(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.login(t)
	ctx := context.Background()

	user, err := env.svc.UpdateProfile(ctx, model.ProfileUpdate{Bio: "likes tea"})
	require.NoError(t, err)
	assert.Equal(t, "likes tea", user.Bio)
	assert.Equal(t, "likes tea", env.store.Snapshot().User.Bio)

	_, err = env.svc.UploadAvatar(ctx, "me.pdf", "application/pdf", 100, strings.NewReader("x"))
	assert.ErrorIs(t, err, validation.ErrValidation)
	_, err = env.svc.UploadAvatar(ctx, "huge.png", "image/png", validation.MaxAvatarSize+1, strings.NewReader("x"))
	assert.ErrorIs(t, err, validation.ErrValidation)
	assert.Zero(t, env.backend.Count(http.MethodPost, "/api/auth/avatar"))

	_, err = env.svc.UploadAvatar(ctx, "me.png", "image/png", 3, strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/me.png", env.store.Snapshot().User.AvatarURL)
}

func TestStartAutoRefresh(t *testing.T) {
	env := newEnv(t, envOptions{cacheTTL: time.Millisecond})
	env.login(t)
	before := env.backend.Count(http.MethodGet, "/api/appointments")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.svc.StartAutoRefresh(ctx, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return env.backend.Count(http.MethodGet, "/api/appointments") > before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCatalog(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.login(t)
	ctx := context.Background()

	services, err := env.svc.Services(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, services)

	slots, err := env.svc.AvailableSlots(ctx, tomorrow(), services[0].ID)
	require.NoError(t, err)
	assert.Contains(t, slots, "09:00")
}
