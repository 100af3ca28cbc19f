package purge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryTokens keeps tokens in process.
type MemoryTokens struct {
	mu      sync.Mutex
	pending map[string]Pending
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{pending: map[string]Pending{}}
}

// Put implements TokenStore. Expired entries are dropped on each write.
func (m *MemoryTokens) Put(_ context.Context, token string, p Pending, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for t, old := range m.pending {
		if now.After(old.ExpiresAt) {
			delete(m.pending, t)
		}
	}
	m.pending[token] = p
	return nil
}

// Take implements TokenStore.
func (m *MemoryTokens) Take(_ context.Context, token string) (Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[token]
	if !ok {
		return Pending{}, ErrUnknownToken
	}
	delete(m.pending, token)
	return p, nil
}

const redisTokenPrefix = "attsync:purge:"

// RedisTokens shares tokens between service instances.
type RedisTokens struct {
	client redis.UniversalClient
}

func NewRedisTokens(client redis.UniversalClient) *RedisTokens {
	return &RedisTokens{client: client}
}

// Put implements TokenStore.
func (r *RedisTokens) Put(ctx context.Context, token string, p Pending, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisTokenPrefix+token, data, ttl).Err()
}

// Take implements TokenStore.
func (r *RedisTokens) Take(ctx context.Context, token string) (Pending, error) {
	data, err := r.client.GetDel(ctx, redisTokenPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Pending{}, ErrUnknownToken
	}
	if err != nil {
		return Pending{}, fmt.Errorf("read purge token: %w", err)
	}

	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		return Pending{}, fmt.Errorf("decode purge token: %w", err)
	}
	return p, nil
}
