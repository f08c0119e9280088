package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker tracks token ids that must no longer be accepted.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevoker keeps revoked ids in process until their expiry passes.
type MemoryRevoker struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewMemoryRevoker creates an empty in-process revocation list.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{until: make(map[string]time.Time), now: time.Now}
}

// Revoke records tokenID as revoked until the given time.
func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.until {
		if !exp.After(now) {
			delete(m.until, id)
		}
	}
	m.until[tokenID] = until
	return nil
}

// Revoked reports whether tokenID is still on the list.
func (m *MemoryRevoker) Revoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.until[tokenID]
	return ok && exp.After(m.now()), nil
}

// RedisRevoker stores revoked ids as expiring keys so every API replica sees a logout.
type RedisRevoker struct {
	client *redis.Client
	prefix string
}

// NewRedisRevoker creates a revoker using the given key prefix.
func NewRedisRevoker(client *redis.Client, prefix string) *RedisRevoker {
	if prefix == "" {
		prefix = "attendance:revoked:"
	}
	return &RedisRevoker{client: client, prefix: prefix}
}

// Revoke sets a key that expires when the token would have.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.prefix+tokenID, 1, ttl).Err()
}

// Revoked checks for the revocation key.
func (r *RedisRevoker) Revoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, r.prefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
