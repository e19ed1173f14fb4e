package memory

import (
	"context"
	"sort"
	"sync"
)

// FlagValue значение выставленного флага
const FlagValue = "true"

// FlagStore флаги в памяти процесса, для session scope
type FlagStore struct {
	mu    sync.RWMutex
	flags map[string]string
}

func NewFlagStore() *FlagStore {
	return &FlagStore{
		flags: make(map[string]string),
	}
}

// Claim ставит флаг, true если его не было
func (m *FlagStore) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flags[key]; ok {
		return false, nil
	}
	m.flags[key] = FlagValue
	return true, nil
}

func (m *FlagStore) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.flags[key]
	return ok, nil
}

// Set выставляет флаг без проверки, для восстановления состояния
func (m *FlagStore) Set(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = FlagValue
}

// Delete снимает флаг, для отката неудачной записи
func (m *FlagStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, key)
}

// Keys отсортированные ключи выставленных флагов
func (m *FlagStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.flags))
	for key := range m.flags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
