// AngelaMos | 2026
// revocation.go

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/leadboard/internal/core"
)

// Registry records logged-out tokens. Entries are keyed by the token's
// SHA-256 digest and need only outlive the token itself.
type Registry interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryRegistry is a process-local Registry. Revocations are not visible to
// other instances and are lost on restart.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke is idempotent. A zero expiresAt keeps the entry for the life of the
// process.
func (m *MemoryRegistry) Revoke(
	_ context.Context,
	token string,
	expiresAt time.Time,
) error {
	key := core.HashToken(token)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[key]; ok && !laterExpiry(expiresAt, existing) {
		return nil
	}
	m.entries[key] = expiresAt

	return nil
}

func (m *MemoryRegistry) IsRevoked(_ context.Context, token string) (bool, error) {
	key := core.HashToken(token)

	m.mu.RLock()
	_, ok := m.entries[key]
	m.mu.RUnlock()

	return ok, nil
}

func (m *MemoryRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Prune drops entries whose tokens have expired and returns how many were
// removed.
func (m *MemoryRegistry) Prune() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, expiresAt := range m.entries {
		if !expiresAt.IsZero() && now.After(expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}

	return removed
}

// Run prunes on every tick until ctx is cancelled.
func (m *MemoryRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Prune(); n > 0 {
				slog.Debug("pruned expired revocations", "removed", n)
			}
		}
	}
}

// laterExpiry reports whether candidate outlives current. Zero means never
// expires.
func laterExpiry(candidate, current time.Time) bool {
	if current.IsZero() {
		return false
	}
	return candidate.IsZero() || candidate.After(current)
}

// RedisRegistry shares revocations across instances. Each entry carries a
// TTL equal to the token's remaining lifetime.
type RedisRegistry struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewRedisRegistry(client redis.Cmdable, prefix string) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RedisRegistry) key(token string) string {
	return r.prefix + core.HashToken(token)
}

func (r *RedisRegistry) Revoke(
	ctx context.Context,
	token string,
	expiresAt time.Time,
) error {
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(r.now())
		if ttl <= 0 {
			return nil
		}
	}

	if err := r.client.Set(ctx, r.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w: %w", core.ErrDependency, err)
	}

	return nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w: %w", core.ErrDependency, err)
	}

	return n > 0, nil
}

var (
	_ Registry = (*MemoryRegistry)(nil)
	_ Registry = (*RedisRegistry)(nil)
)
