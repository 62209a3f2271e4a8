package storage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStorage is an in-memory backend.
// It's the default backend and suitable for tests and single-process use.
// Entries survive as long as the MemoryStorage value does, so two store
// instances sharing one MemoryStorage behave like two page loads sharing
// browser storage.
type MemoryStorage struct {
	entries *xsync.MapOf[string, []byte]
	closed  atomic.Bool

	mu       sync.Mutex
	watchers map[string]map[uint64]func()
	nextID   uint64
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries:  xsync.NewMapOf[string, []byte](),
		watchers: make(map[string]map[uint64]func()),
	}
}

// Load returns a copy of the entry stored under name.
func (m *MemoryStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	data, ok := m.entries.Load(name)
	if !ok {
		return nil, nil
	}
	return copyBytes(data), nil
}

// Save stores a copy of data under name.
func (m *MemoryStorage) Save(ctx context.Context, name string, data []byte) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.entries.Store(name, copyBytes(data))
	m.notify(name)
	return nil
}

// Remove deletes the entry stored under name.
func (m *MemoryStorage) Remove(ctx context.Context, name string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if _, loaded := m.entries.LoadAndDelete(name); loaded {
		m.notify(name)
	}
	return nil
}

// Watch calls fn after every Save or Remove of name.
func (m *MemoryStorage) Watch(ctx context.Context, name string, fn func()) (func(), error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	if m.watchers[name] == nil {
		m.watchers[name] = make(map[uint64]func())
	}
	m.watchers[name][id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.watchers[name], id)
			if len(m.watchers[name]) == 0 {
				delete(m.watchers, name)
			}
		})
	}, nil
}

// notify runs the watchers of name without holding the lock.
func (m *MemoryStorage) notify(name string) {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.watchers[name]))
	for _, fn := range m.watchers[name] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of stored entries.
// This is for monitoring/testing purposes.
func (m *MemoryStorage) Len() int {
	return m.entries.Size()
}

// Close releases the stored entries. Further operations return ErrClosed.
func (m *MemoryStorage) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.entries.Clear()

	m.mu.Lock()
	m.watchers = make(map[string]map[uint64]func())
	m.mu.Unlock()
	return nil
}
