package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStorage keeps entries in process memory with a byte quota counted
// over keys and values.
type MemoryStorage struct {
	mu    sync.Mutex
	items *gocache.Cache
	used  int
	quota int
}

// NewMemoryStorage returns a storage holding at most quota bytes. A
// non-positive quota means unbounded.
func NewMemoryStorage(quota int) *MemoryStorage {
	return &MemoryStorage{
		items: gocache.New(gocache.NoExpiration, 0),
		quota: quota,
	}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	x, found := m.items.Get(key)
	if !found {
		return nil, ErrMiss
	}
	value := x.([]byte)
	return append([]byte(nil), value...), nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + len(key) + len(value)
	if x, found := m.items.Get(key); found {
		next -= len(key) + len(x.([]byte))
	}
	if m.quota > 0 && next > m.quota {
		return fmt.Errorf("set %s (%d bytes, %d of %d used): %w", key, len(value), m.used, m.quota, ErrQuotaExceeded)
	}
	m.items.Set(key, append([]byte(nil), value...), gocache.NoExpiration)
	m.used = next
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if x, found := m.items.Get(key); found {
		m.used -= len(key) + len(x.([]byte))
		m.items.Delete(key)
	}
	return nil
}

func (m *MemoryStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range m.items.Items() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the bytes currently held.
func (m *MemoryStorage) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
