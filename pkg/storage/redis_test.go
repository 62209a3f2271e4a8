package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockRedisStatusCmd struct{ err error }

func (c mockRedisStatusCmd) Err() error { return c.err }

type mockRedisStringCmd struct {
	data []byte
	err  error
}

func (c mockRedisStringCmd) Bytes() ([]byte, error) { return c.data, c.err }
func (c mockRedisStringCmd) Err() error             { return c.err }

type mockRedisIntCmd struct{ err error }

func (c mockRedisIntCmd) Err() error { return c.err }

type mockRedisSetCall struct {
	key        string
	expiration time.Duration
}

// mockRedisClient keeps values in a map and records calls.
type mockRedisClient struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   []mockRedisSetCall
	getErr error
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{values: make(map[string][]byte)}
}

func (c *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, mockRedisSetCall{key: key, expiration: expiration})
	c.values[key] = append([]byte(nil), value.([]byte)...)
	return mockRedisStatusCmd{}
}

func (c *mockRedisClient) Get(ctx context.Context, key string) RedisStringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return mockRedisStringCmd{err: c.getErr}
	}
	v, ok := c.values[key]
	if !ok {
		// Mirror go-redis: a distinct error value with the same message.
		return mockRedisStringCmd{err: errors.New("redis: nil")}
	}
	return mockRedisStringCmd{data: append([]byte(nil), v...)}
}

func (c *mockRedisClient) Del(ctx context.Context, keys ...string) RedisIntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return mockRedisIntCmd{}
}

func TestRedisStorageContract(t *testing.T) {
	runContract(t, NewRedisStorage(newMockRedisClient()))
}

func TestRedisStoragePrefixAndTTL(t *testing.T) {
	client := newMockRedisClient()
	s := NewRedisStorage(client, WithRedisPrefix("app:"), WithRedisTTL(time.Hour))

	if s.Prefix() != "app:" {
		t.Errorf("expected prefix app:, got %s", s.Prefix())
	}
	if err := s.Save(context.Background(), "theme", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if len(client.sets) != 1 {
		t.Fatalf("expected 1 SET, got %d", len(client.sets))
	}
	if client.sets[0].key != "app:theme" {
		t.Errorf("expected key app:theme, got %s", client.sets[0].key)
	}
	if client.sets[0].expiration != time.Hour {
		t.Errorf("expected 1h expiration, got %v", client.sets[0].expiration)
	}
}

func TestRedisStorageLoadError(t *testing.T) {
	client := newMockRedisClient()
	client.getErr = errors.New("connection refused")
	s := NewRedisStorage(client)

	if _, err := s.Load(context.Background(), "theme"); err == nil {
		t.Error("expected backend error to surface")
	}
}

func TestRedisStorageClosed(t *testing.T) {
	s := NewRedisStorage(newMockRedisClient())
	_ = s.Close()

	if err := s.Save(context.Background(), "x", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
