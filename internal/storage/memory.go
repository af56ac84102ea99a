// Package storage содержит постоянные хранилища токенов сессии.
package storage

import (
	"context"
	"sync"

	"github.com/mmeshcher/salon-client/internal/model"
)

// MemoryTokenStore хранит токены в памяти процесса.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens model.Tokens
}

// NewMemoryTokenStore создаёт хранилище с начальными токенами.
func NewMemoryTokenStore(initial model.Tokens) *MemoryTokenStore {
	return &MemoryTokenStore{tokens: initial}
}

// Load возвращает сохранённые токены.
func (s *MemoryTokenStore) Load(_ context.Context) (model.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tokens, nil
}

// Save сохраняет токены.
func (s *MemoryTokenStore) Save(_ context.Context, tokens model.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = tokens
	return nil
}

// Clear удаляет токены.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = model.Tokens{}
	return nil
}
