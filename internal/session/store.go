package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Store persists State by conversation id. Entries expire after the
// store's TTL of inactivity.
type Store interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, id string, s State) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps encoded state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

type memoryItem struct {
	data    []byte
	expires time.Time
}

// NewMemoryStore returns a store whose entries expire after ttl; zero keeps them forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (State, error) {
	m.mu.Lock()
	item, ok := m.items[id]
	if ok && m.ttl > 0 && m.now().After(item.expires) {
		delete(m.items, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return State{}, ErrNotFound
	}
	var s State
	if err := json.Unmarshal(item.data, &s); err != nil {
		return State{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return s, nil
}

func (m *MemoryStore) Save(ctx context.Context, id string, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = memoryItem{data: data, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// RedisStore keeps state as JSON strings under prefix+id.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "spendly:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis parses a redis:// URL and verifies the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *RedisStore) key(id string) string { return r.prefix + id }

func (r *RedisStore) Load(ctx context.Context, id string) (State, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, ErrNotFound
		}
		return State{}, fmt.Errorf("get session: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, id string, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
