package identity

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore is a keyed token store with TTL eviction. Expiry is checked
// at read time; a token past its deadline behaves as absent.
type SessionStore interface {
	Put(ctx context.Context, token, userID string, ttl time.Duration) error
	// Get returns the owning user id, or ok=false when the token is
	// unknown or expired.
	Get(ctx context.Context, token string) (userID string, ok bool, err error)
	Delete(ctx context.Context, token string) error
}

// MemorySessions keeps sessions in-process. Fallback when REDIS_ADDR is
// unset, and the fixture for unit tests.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]memSession
}

type memSession struct {
	userID    string
	expiresAt time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]memSession)}
}

func (m *MemorySessions) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = memSession{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemorySessions) Get(ctx context.Context, token string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(s.expiresAt) {
		delete(m.sessions, token)
		return "", false, nil
	}
	return s.userID, true, nil
}

func (m *MemorySessions) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// RedisSessions stores sessions under session:<token> with a native TTL,
// so eviction happens server-side.
type RedisSessions struct {
	client *redis.Client
}

func NewRedisSessions(addr, password string) *RedisSessions {
	return &RedisSessions{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func sessionKey(token string) string { return "session:" + token }

func (r *RedisSessions) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKey(token), userID, ttl).Err()
}

func (r *RedisSessions) Get(ctx context.Context, token string) (string, bool, error) {
	v, err := r.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisSessions) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKey(token)).Err()
}
