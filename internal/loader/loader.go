// Package loader загружает записи и VIP-статус текущего пользователя.
//
// Одновременно во всём процессе выполняется не более одной загрузки: повторные
// вызовы присоединяются к уже идущей и получают её результат.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/salon-client/internal/api"
	"github.com/mmeshcher/salon-client/internal/cache"
	"github.com/mmeshcher/salon-client/internal/model"
	"github.com/mmeshcher/salon-client/internal/ratelimit"
)

// Значения по умолчанию для интервалов загрузки.
const (
	DefaultDebounce               = 3 * time.Second
	DefaultInterCallDelay         = 2 * time.Second
	DefaultTooManyRequestsBackoff = 5 * time.Second
)

// Сообщения, которые видит пользователь.
const (
	MsgTooManyRequests = "Too many requests, please wait a moment"
	MsgLoadFailed      = "Failed to load your data"
)

const flightKey = "user-data"

// Fetcher выполняет сетевые запросы загрузки.
type Fetcher interface {
	ListAppointments(ctx context.Context, filter api.AppointmentFilter) ([]model.Appointment, error)
	VipStatus(ctx context.Context) (*model.VipStatus, error)
}

// Store принимает результаты загрузки.
type Store interface {
	Generation() uint64
	CurrentUserID() string
	Active() bool
	DataLoading() bool
	SetDataLoading(loading bool)
	SetError(msg string)
	CommitUserData(generation uint64, appointments []model.Appointment, vip *model.VipStatus) bool
}

// Cache хранит последний загруженный снимок.
type Cache interface {
	Get() (cache.Entry, bool)
	Set(userID string, generation uint64, appointments []model.Appointment, vip *model.VipStatus)
}

// Limiter ограничивает частоту загрузок.
type Limiter interface {
	Allow(key string) bool
}

// Loader координирует загрузку данных пользователя.
type Loader struct {
	fetcher Fetcher
	store   Store
	cache   Cache
	limiter Limiter
	logger  *zap.Logger

	debounce       time.Duration
	interCallDelay time.Duration
	backoff        time.Duration
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu        sync.Mutex
	lastStart time.Time
}

// Option настраивает Loader.
type Option func(*Loader)

// WithDebounce задаёт минимальный интервал между началами непринудительных загрузок.
func WithDebounce(d time.Duration) Option {
	return func(l *Loader) { l.debounce = d }
}

// WithInterCallDelay задаёт паузу между запросом записей и запросом VIP-статуса.
func WithInterCallDelay(d time.Duration) Option {
	return func(l *Loader) { l.interCallDelay = d }
}

// WithTooManyRequestsBackoff задаёт паузу после ответа 429 на запрос записей.
func WithTooManyRequestsBackoff(d time.Duration) Option {
	return func(l *Loader) { l.backoff = d }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithLogger задаёт логгер.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New создаёт загрузчик.
func New(fetcher Fetcher, st Store, c Cache, limiter Limiter, opts ...Option) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		fetcher:        fetcher,
		store:          st,
		cache:          c,
		limiter:        limiter,
		logger:         zap.NewNop(),
		debounce:       DefaultDebounce,
		interCallDelay: DefaultInterCallDelay,
		backoff:        DefaultTooManyRequestsBackoff,
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Close прерывает идущую загрузку. Её результат не записывается.
func (l *Loader) Close() {
	l.cancel()
}

// Load загружает данные пользователя userID. Если загрузка уже идёт,
// вызов дожидается её и возвращает тот же результат.
//
// Ошибка, возвращённая Load, уже записана в состояние. Отмена ctx прекращает
// ожидание, но не саму общую загрузку.
func (l *Loader) Load(ctx context.Context, userID string, force bool) error {
	if userID == "" {
		return nil
	}

	ch := l.group.DoChan(flightKey, func() (any, error) {
		return nil, l.run(l.ctx, userID, force)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) run(ctx context.Context, userID string, force bool) error {
	if !l.limiter.Allow(ratelimit.UserDataKey(userID)) {
		l.logger.Warn("user data load rate limited", zap.String("userID", userID))
		l.store.SetError(MsgTooManyRequests)
		return ratelimit.ErrRateLimited
	}

	if !force {
		if l.store.DataLoading() {
			return nil
		}
		if l.debounced() {
			l.logger.Debug("user data load debounced", zap.String("userID", userID))
			return nil
		}
		if entry, ok := l.cache.Get(); ok {
			generation := l.store.Generation()
			if entry.BelongsTo(userID, generation) && l.store.CurrentUserID() == userID {
				l.store.CommitUserData(generation, entry.Appointments, entry.VipStatus)
				return nil
			}
			l.logger.Debug("ignoring cached data of another session", zap.String("userID", userID))
		}
	}

	l.mu.Lock()
	l.lastStart = l.now()
	l.mu.Unlock()

	generation := l.store.Generation()
	l.store.SetDataLoading(true)
	defer l.store.SetDataLoading(false)

	err := l.fetch(ctx, userID, generation)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	l.logger.Error("user data load failed", zap.String("userID", userID), zap.Error(err))
	if l.store.Active() {
		msg := MsgLoadFailed
		if errors.Is(err, api.ErrSessionExpired) {
			msg = api.ErrSessionExpired.Error()
		}
		l.store.SetError(msg)
	}
	return err
}

func (l *Loader) debounced() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.lastStart.IsZero() && l.now().Sub(l.lastStart) < l.debounce
}

func (l *Loader) fetch(ctx context.Context, userID string, generation uint64) error {
	appointments, err := l.fetcher.ListAppointments(ctx, api.AppointmentFilter{})
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			return err
		}
		l.logger.Warn("appointments fetch failed", zap.String("userID", userID), zap.Error(err))
		appointments = []model.Appointment{}
		if api.IsTooManyRequests(err) {
			if err := sleep(ctx, l.backoff); err != nil {
				return err
			}
		}
	}

	if err := sleep(ctx, l.interCallDelay); err != nil {
		return err
	}

	if l.stale(userID, generation) {
		l.logger.Debug("discarding stale appointments", zap.String("userID", userID))
		return nil
	}

	vip, err := l.fetcher.VipStatus(ctx)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			return err
		}
		l.logger.Warn("vip status fetch failed", zap.String("userID", userID), zap.Error(err))
		vip = nil
	}

	if l.stale(userID, generation) {
		l.logger.Debug("discarding stale user data", zap.String("userID", userID))
		return nil
	}

	if !l.store.CommitUserData(generation, appointments, vip) {
		l.logger.Debug("discarding user data of a finished session", zap.String("userID", userID))
		return nil
	}
	l.cache.Set(userID, generation, appointments, vip)
	return nil
}

func (l *Loader) stale(userID string, generation uint64) bool {
	return !l.store.Active() || l.store.Generation() != generation || l.store.CurrentUserID() != userID
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
