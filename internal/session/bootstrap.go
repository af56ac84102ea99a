// Package session восстанавливает сессию пользователя при запуске клиента.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/salon-client/internal/api"
	"github.com/mmeshcher/salon-client/internal/model"
)

// DefaultLoadDelay задаёт паузу перед первой загрузкой данных после восстановления сессии.
const DefaultLoadDelay = 500 * time.Millisecond

// ErrNoUserID возвращается, если идентификатор пользователя не удалось получить ни из профиля, ни из токена.
var ErrNoUserID = errors.New("user id not found")

// State описывает стадию восстановления сессии.
type State int32

const (
	StateNotStarted State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText кодирует стадию строкой.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Client предоставляет доступ к токенам и профилю.
type Client interface {
	StoredTokens(ctx context.Context) (model.Tokens, error)
	RestoreTokens(tokens model.Tokens)
	ClearTokens(ctx context.Context)
	Profile(ctx context.Context) (*model.User, error)
}

// Store принимает результат восстановления.
type Store interface {
	SetSession(user model.User)
	Reset()
	MarkReady()
}

// Loader загружает данные пользователя.
type Loader interface {
	Load(ctx context.Context, userID string, force bool) error
}

// Bootstrapper выполняет восстановление сессии ровно один раз за время жизни процесса.
// После неудачи защита снимается и восстановление можно запустить повторно.
type Bootstrapper struct {
	client Client
	store  Store
	loader Loader
	logger *zap.Logger
	delay  time.Duration

	guard atomic.Bool
	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создаёт Bootstrapper. delay задаёт паузу перед первой загрузкой данных.
func New(client Client, st Store, loader Loader, delay time.Duration, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bootstrapper{
		client: client,
		store:  st,
		loader: loader,
		logger: logger,
		delay:  delay,
		ctx:    ctx,
		cancel: cancel,
	}
}

// State возвращает текущую стадию.
func (b *Bootstrapper) State() State {
	return State(b.state.Load())
}

// Run восстанавливает сессию. Повторный вызов, пока защита установлена, ничего не делает
// и возвращает текущую стадию.
func (b *Bootstrapper) Run(ctx context.Context) State {
	if !b.guard.CompareAndSwap(false, true) {
		return b.State()
	}
	b.state.Store(int32(StateInitializing))

	user, err := b.restore(ctx)
	if err != nil {
		b.logger.Error("session bootstrap failed", zap.Error(err))
		b.client.ClearTokens(context.WithoutCancel(ctx))
		b.store.Reset()
		b.state.Store(int32(StateFailed))
		b.guard.Store(false)
		return StateFailed
	}

	if user == nil {
		b.logger.Info("no stored session")
		b.store.MarkReady()
		b.state.Store(int32(StateReady))
		return StateReady
	}

	b.store.SetSession(*user)
	b.state.Store(int32(StateReady))
	b.logger.Info("session restored", zap.String("userID", user.ID.String()))
	b.scheduleLoad(user.ID.String())
	return StateReady
}

func (b *Bootstrapper) restore(ctx context.Context) (*model.User, error) {
	tokens, err := b.client.StoredTokens(ctx)
	if err != nil {
		return nil, err
	}
	if !tokens.Complete() {
		return nil, nil
	}
	b.client.RestoreTokens(tokens)

	user, err := b.client.Profile(ctx)
	if err == nil && user != nil && user.ID != "" {
		return user, nil
	}
	if err != nil && api.IsAuthError(err) {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if err != nil {
		b.logger.Warn("profile unavailable, using token claims", zap.Error(err))
	}

	id, err := UserIDFromToken(tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	return &model.User{ID: id}, nil
}

func (b *Bootstrapper) scheduleLoad(userID string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		timer := time.NewTimer(b.delay)
		defer timer.Stop()

		select {
		case <-b.ctx.Done():
			return
		case <-timer.C:
		}

		if err := b.loader.Load(b.ctx, userID, true); err != nil {
			b.logger.Warn("initial user data load", zap.String("userID", userID), zap.Error(err))
		}
	}()
}

// Wait дожидается запланированной загрузки данных.
func (b *Bootstrapper) Wait() {
	b.wg.Wait()
}

// Close отменяет запланированную загрузку и дожидается её завершения.
func (b *Bootstrapper) Close() {
	b.cancel()
	b.wg.Wait()
}

// UserIDFromToken извлекает идентификатор пользователя из утверждений токена доступа без проверки подписи.
func UserIDFromToken(token string) (model.ID, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}

	for _, key := range []string{"userId", "id", "sub"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return model.ID(v), nil
			}
		case float64:
			return model.ID(strconv.FormatInt(int64(v), 10)), nil
		}
	}
	return "", ErrNoUserID
}
