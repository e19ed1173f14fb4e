// Package file хранит lifetime флаги в JSON файле, чтобы они переживали перезапуск агента.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/memory"
)

type snapshot struct {
	Flags []string `json:"flags"`
}

// FlagStore флаги в памяти, каждый новый флаг сразу сбрасывается на диск
type FlagStore struct {
	path  string
	mu    sync.Mutex
	flags *memory.FlagStore
}

// Open читает файл состояния, отсутствие файла не ошибка
func Open(path string) (*FlagStore, error) {
	s := &FlagStore{
		path:  path,
		flags: memory.NewFlagStore(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FlagStore) Claim(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed, err := s.flags.Claim(ctx, key)
	if err != nil || !claimed {
		return claimed, err
	}
	// флаг в памяти не должен пережить неудачную запись на диск
	if err := s.save(); err != nil {
		s.flags.Delete(key)
		return false, err
	}
	return true, nil
}

func (s *FlagStore) Has(ctx context.Context, key string) (bool, error) {
	return s.flags.Has(ctx, key)
}

func (s *FlagStore) load() error {
	if s.path == "" {
		return nil
	}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	var snap snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode state file %s: %w", s.path, err)
	}
	for _, key := range snap.Flags {
		s.flags.Set(key)
	}
	return nil
}

// save атомарно через временный файл
func (s *FlagStore) save() error {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFilename := s.path + ".tmp"
	file, err := os.Create(tmpFilename)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot{Flags: s.flags.Keys()}); err != nil {
		file.Close()
		os.Remove(tmpFilename)
		return fmt.Errorf("failed to encode flags: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpFilename)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpFilename, s.path); err != nil {
		os.Remove(tmpFilename)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
