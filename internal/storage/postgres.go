package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/salon-client/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultProfile используется, когда на одной базе работает один клиент.
const DefaultProfile = "default"

// PostgresTokenStore хранит токены в PostgreSQL, по строке на профиль клиента.
type PostgresTokenStore struct {
	pool    *pgxpool.Pool
	profile string
}

// NewPostgresTokenStore подключается к базе и применяет миграции.
func NewPostgresTokenStore(dsn, profile string) (*PostgresTokenStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if profile == "" {
		profile = DefaultProfile
	}
	s := &PostgresTokenStore{pool: pool, profile: profile}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresTokenStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений.
func (s *PostgresTokenStore) Close() error {
	s.pool.Close()
	return nil
}

// Load возвращает токены профиля или пустые токены, если сессии нет.
func (s *PostgresTokenStore) Load(ctx context.Context) (model.Tokens, error) {
	var tokens model.Tokens
	err := withRetry(ctx, func() error {
		return s.pool.QueryRow(ctx,
			`SELECT access_token, refresh_token FROM client_sessions WHERE profile = $1`,
			s.profile,
		).Scan(&tokens.AccessToken, &tokens.RefreshToken)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Tokens{}, nil
		}
		return model.Tokens{}, fmt.Errorf("select session: %w", err)
	}
	return tokens, nil
}

// Save сохраняет токены профиля.
func (s *PostgresTokenStore) Save(ctx context.Context, tokens model.Tokens) error {
	err := withRetry(ctx, func() error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO client_sessions (profile, access_token, refresh_token, updated_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (profile) DO UPDATE
			 SET access_token = EXCLUDED.access_token,
			     refresh_token = EXCLUDED.refresh_token,
			     updated_at = NOW()`,
			s.profile, tokens.AccessToken, tokens.RefreshToken,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Clear удаляет токены профиля.
func (s *PostgresTokenStore) Clear(ctx context.Context) error {
	err := withRetry(ctx, func() error {
		_, err := s.pool.Exec(ctx, `DELETE FROM client_sessions WHERE profile = $1`, s.profile)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var retryDelays = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second}

func withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil || !isRetryable(err) || i == len(retryDelays) {
			return err
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}
