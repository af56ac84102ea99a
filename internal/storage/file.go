package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mmeshcher/salon-client/internal/model"
)

// FileTokenStore хранит токены в JSON-файле с правами 0600.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore создаёт файловое хранилище по указанному пути.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load читает токены. Отсутствующий файл означает пустую сессию.
func (s *FileTokenStore) Load(_ context.Context) (model.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Tokens{}, nil
		}
		return model.Tokens{}, fmt.Errorf("read token file: %w", err)
	}

	var tokens model.Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return model.Tokens{}, fmt.Errorf("decode token file: %w", err)
	}
	return tokens, nil
}

// Save атомарно перезаписывает файл токенов.
func (s *FileTokenStore) Save(_ context.Context, tokens model.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// Clear удаляет файл токенов.
func (s *FileTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
