// Package service реализует пользовательские действия клиента записи в салон.
package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/salon-client/internal/api"
	"github.com/mmeshcher/salon-client/internal/loader"
	"github.com/mmeshcher/salon-client/internal/model"
	"github.com/mmeshcher/salon-client/internal/notify"
	"github.com/mmeshcher/salon-client/internal/ratelimit"
	"github.com/mmeshcher/salon-client/internal/session"
	"github.com/mmeshcher/salon-client/internal/store"
	"github.com/mmeshcher/salon-client/internal/validation"
)

// AddAppointmentKey ограничивает частоту создания записей.
const AddAppointmentKey = "add-appointment"

// ErrNotAuthenticated возвращается действиями, требующими входа.
var ErrNotAuthenticated = errors.New("not authenticated")

// API описывает вызовы бэкенда, используемые сервисом.
type API interface {
	Login(ctx context.Context, creds model.Credentials) (*model.User, error)
	Register(ctx context.Context, reg model.Registration) (*model.User, error)
	Logout(ctx context.Context)
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.User, error)
	UploadAvatar(ctx context.Context, filename, contentType string, file io.Reader) (*model.User, error)
	CreateAppointment(ctx context.Context, req model.AppointmentRequest) (*model.Appointment, error)
	UpdateAppointment(ctx context.Context, id model.ID, upd model.AppointmentUpdate) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, id model.ID, reason string) (*model.Appointment, error)
	RescheduleAppointment(ctx context.Context, id model.ID, date, clock string) (*model.Appointment, error)
	AvailableSlots(ctx context.Context, date string, serviceID model.ID) ([]string, error)
	Services(ctx context.Context) ([]model.Service, error)
	VipStatus(ctx context.Context) (*model.VipStatus, error)
	SubscribeVip(ctx context.Context, planType, paymentMethod string) (*model.VipStatus, error)
	CancelVip(ctx context.Context, reason string) (*model.VipStatus, error)
	Health(ctx context.Context) error
}

// Loader загружает данные пользователя.
type Loader interface {
	Load(ctx context.Context, userID string, force bool) error
}

// Limiter ограничивает частоту операций по ключу.
type Limiter interface {
	Allow(key string) bool
	Reset(key string)
	Clear()
}

// Cache хранит последний загруженный снимок.
type Cache interface {
	Invalidate()
}

// Bootstrapper восстанавливает сессию при запуске.
type Bootstrapper interface {
	Run(ctx context.Context) session.State
}

// Service содержит действия пользователя над состоянием клиента.
type Service struct {
	api       API
	store     *store.Store
	loader    Loader
	limiter   Limiter
	cache     Cache
	bootstrap Bootstrapper
	hub       *notify.Hub
	logger    *zap.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option настраивает Service.
type Option func(*Service)

// WithBootstrapper задаёт восстановление сессии.
func WithBootstrapper(b Bootstrapper) Option {
	return func(s *Service) { s.bootstrap = b }
}

// WithNotifier задаёт получателя всплывающих уведомлений.
func WithNotifier(hub *notify.Hub) Option {
	return func(s *Service) { s.hub = hub }
}

// WithLogger задаёт логгер.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт сервис.
func NewService(client API, st *store.Store, ld Loader, limiter Limiter, c Cache, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		api:     client,
		store:   st,
		loader:  ld,
		limiter: limiter,
		cache:   c,
		logger:  zap.NewNop(),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close останавливает фоновые задачи сервиса и дожидается их завершения.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Bootstrap восстанавливает сессию. Без настроенного восстановления состояние сразу готово.
func (s *Service) Bootstrap(ctx context.Context) session.State {
	if s.bootstrap == nil {
		s.store.MarkReady()
		return session.StateReady
	}
	return s.bootstrap.Run(ctx)
}

// Health проверяет доступность бэкенда.
func (s *Service) Health(ctx context.Context) error {
	return s.api.Health(ctx)
}

// State возвращает текущее состояние вместе с выборками.
func (s *Service) State() store.View {
	return store.NewView(s.store.Snapshot(), s.now())
}

// Login выполняет вход и загружает данные пользователя.
func (s *Service) Login(ctx context.Context, creds model.Credentials) (*model.User, error) {
	if err := validation.ValidateCredentials(creds); err != nil {
		s.fail(err)
		return nil, err
	}
	return s.authenticate(ctx, "Welcome back", func(ctx context.Context) (*model.User, error) {
		return s.api.Login(ctx, creds)
	})
}

// Register регистрирует пользователя и загружает его данные.
func (s *Service) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	if err := validation.ValidateRegistration(reg); err != nil {
		s.fail(err)
		return nil, err
	}
	return s.authenticate(ctx, "Account created", func(ctx context.Context) (*model.User, error) {
		return s.api.Register(ctx, reg)
	})
}

func (s *Service) authenticate(ctx context.Context, greeting string, call func(context.Context) (*model.User, error)) (*model.User, error) {
	user, err := mutate(ctx, s, greeting, call, func(user *model.User) {
		s.cache.Invalidate()
		s.store.SetSession(*user)
	})
	if err != nil {
		return nil, err
	}

	if err := s.loader.Load(ctx, user.ID.String(), true); err != nil {
		s.logger.Warn("load after sign in", zap.String("userID", user.ID.String()), zap.Error(err))
	}
	return user, nil
}

// Logout завершает сессию и сбрасывает все данные пользователя.
func (s *Service) Logout(ctx context.Context) {
	userID := s.store.CurrentUserID()
	s.api.Logout(ctx)
	s.resetSession(userID)
	s.hub.Publish(notify.KindInfo, "Signed out")
}

// SessionExpired сбрасывает состояние после истечения сессии на бэкенде.
func (s *Service) SessionExpired() {
	s.resetSession(s.store.CurrentUserID())
	s.hub.Error(api.ErrSessionExpired.Error())
}

func (s *Service) resetSession(userID string) {
	if userID != "" {
		s.limiter.Reset(ratelimit.UserDataKey(userID))
	}
	s.limiter.Clear()
	s.cache.Invalidate()
	s.store.Reset()
}

// Refresh перезагружает данные текущего пользователя. При force кэш сбрасывается.
func (s *Service) Refresh(ctx context.Context, force bool) error {
	userID := s.store.CurrentUserID()
	if userID == "" {
		return ErrNotAuthenticated
	}
	if force {
		s.cache.Invalidate()
	}
	return s.loader.Load(ctx, userID, force)
}

// StartAutoRefresh периодически обновляет данные пользователя с учётом антидребезга и кэша.
func (s *Service) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				err := s.Refresh(ctx, false)
				if err != nil && !errors.Is(err, ErrNotAuthenticated) {
					s.logger.Debug("auto refresh", zap.Error(err))
				}
			}
		}
	}()
}

// AddAppointment проверяет и создаёт запись.
func (s *Service) AddAppointment(ctx context.Context, req model.AppointmentRequest) (*model.Appointment, error) {
	if err := validation.ValidateAppointment(req, s.now()); err != nil {
		s.fail(err)
		return nil, err
	}
	if !s.limiter.Allow(AddAppointmentKey) {
		s.fail(ratelimit.ErrRateLimited)
		return nil, ratelimit.ErrRateLimited
	}

	return mutate(ctx, s, "Appointment booked", func(ctx context.Context) (*model.Appointment, error) {
		return s.api.CreateAppointment(ctx, req)
	}, func(a *model.Appointment) {
		if a != nil {
			s.store.AddAppointment(*a)
		}
	})
}

// UpdateAppointment изменяет запись.
func (s *Service) UpdateAppointment(ctx context.Context, id model.ID, upd model.AppointmentUpdate) (*model.Appointment, error) {
	if upd.Time != "" && !validation.IsValidTime(upd.Time) {
		err := &validation.Error{Field: "time", Reason: "must match HH:MM"}
		s.fail(err)
		return nil, err
	}

	return mutate(ctx, s, "Appointment updated", func(ctx context.Context) (*model.Appointment, error) {
		return s.api.UpdateAppointment(ctx, id, upd)
	}, func(a *model.Appointment) {
		if a != nil {
			s.store.ReplaceAppointment(*a)
		}
	})
}

// CancelAppointment отменяет запись.
func (s *Service) CancelAppointment(ctx context.Context, id model.ID, reason string) (*model.Appointment, error) {
	return mutate(ctx, s, "Appointment cancelled", func(ctx context.Context) (*model.Appointment, error) {
		return s.api.CancelAppointment(ctx, id, reason)
	}, func(a *model.Appointment) {
		if a == nil || a.ID != id || !s.store.ReplaceAppointment(*a) {
			s.store.SetAppointmentStatus(id, model.AppointmentStatusCancelled)
		}
	})
}

// RescheduleAppointment переносит запись на другие дату и время.
func (s *Service) RescheduleAppointment(ctx context.Context, id model.ID, date, clock string) (*model.Appointment, error) {
	if err := validation.ValidateSlot(date, clock, s.now()); err != nil {
		s.fail(err)
		return nil, err
	}

	return mutate(ctx, s, "Appointment rescheduled", func(ctx context.Context) (*model.Appointment, error) {
		return s.api.RescheduleAppointment(ctx, id, date, clock)
	}, func(a *model.Appointment) {
		if a != nil {
			s.store.ReplaceAppointment(*a)
		}
	})
}

// AvailableSlots возвращает свободное время на дату для услуги.
func (s *Service) AvailableSlots(ctx context.Context, date string, serviceID model.ID) ([]string, error) {
	return s.api.AvailableSlots(ctx, date, serviceID)
}

// Services возвращает каталог услуг.
func (s *Service) Services(ctx context.Context) ([]model.Service, error) {
	return s.api.Services(ctx)
}

// SubscribeVip оформляет VIP-подписку.
func (s *Service) SubscribeVip(ctx context.Context, planType, paymentMethod string) (*model.VipStatus, error) {
	return mutate(ctx, s, "VIP subscription activated", func(ctx context.Context) (*model.VipStatus, error) {
		vip, err := s.api.SubscribeVip(ctx, planType, paymentMethod)
		if err != nil || vip != nil {
			return vip, err
		}
		return s.api.VipStatus(ctx)
	}, s.store.SetVipStatus)
}

// CancelVipSubscription отменяет VIP-подписку.
func (s *Service) CancelVipSubscription(ctx context.Context, reason string) (*model.VipStatus, error) {
	return mutate(ctx, s, "VIP subscription cancelled", func(ctx context.Context) (*model.VipStatus, error) {
		vip, err := s.api.CancelVip(ctx, reason)
		if err != nil || vip != nil {
			return vip, err
		}
		return &model.VipStatus{IsVIP: false}, nil
	}, s.store.SetVipStatus)
}

// UpdateProfile изменяет профиль пользователя.
func (s *Service) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.User, error) {
	return mutate(ctx, s, "Profile updated", func(ctx context.Context) (*model.User, error) {
		return s.api.UpdateProfile(ctx, upd)
	}, s.setUser)
}

// UploadAvatar проверяет и загружает аватар пользователя.
func (s *Service) UploadAvatar(ctx context.Context, filename, contentType string, size int64, file io.Reader) (*model.User, error) {
	if err := validation.ValidateAvatar(size, contentType); err != nil {
		s.fail(err)
		return nil, err
	}

	return mutate(ctx, s, "Avatar updated", func(ctx context.Context) (*model.User, error) {
		return s.api.UploadAvatar(ctx, filename, contentType, file)
	}, s.setUser)
}

func (s *Service) setUser(u *model.User) {
	if u != nil {
		s.store.SetUser(*u)
	}
}

// mutate выполняет действие: выставляет загрузку, вызывает бэкенд, применяет результат
// к состоянию, сбрасывает кэш и сообщает об итоге.
func mutate[T any](ctx context.Context, s *Service, success string, call func(context.Context) (T, error), apply func(T)) (T, error) {
	s.store.BeginAction()
	defer s.store.EndAction()

	res, err := call(ctx)
	if err != nil {
		var zero T
		s.fail(err)
		return zero, err
	}

	apply(res)
	s.cache.Invalidate()
	s.store.SetSuccess(success)
	s.hub.Success(success)
	return res, nil
}

func (s *Service) fail(err error) {
	msg := err.Error()
	if errors.Is(err, ratelimit.ErrRateLimited) {
		msg = loader.MsgTooManyRequests
	}

	s.logger.Warn("action failed", zap.Error(err))
	s.store.SetError(msg)
	s.hub.Error(msg)
}
