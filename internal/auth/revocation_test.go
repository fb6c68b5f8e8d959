// AngelaMos | 2026
// revocation_test.go

package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/leadboard/internal/core"
)

func TestMemoryRegistryRevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	expiresAt := time.Now().Add(time.Hour)

	revoked, err := reg.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, reg.Revoke(ctx, "tok", expiresAt))
	require.NoError(t, reg.Revoke(ctx, "tok", expiresAt))

	revoked, err = reg.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 1, reg.Len())

	revoked, err = reg.IsRevoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRegistryPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	reg := NewMemoryRegistry()
	reg.now = func() time.Time { return now }

	require.NoError(t, reg.Revoke(ctx, "expired", now.Add(-time.Minute)))
	require.NoError(t, reg.Revoke(ctx, "live", now.Add(time.Minute)))
	require.NoError(t, reg.Revoke(ctx, "forever", time.Time{}))

	assert.Equal(t, 1, reg.Prune())
	assert.Equal(t, 2, reg.Len())

	revoked, err := reg.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = reg.IsRevoked(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryRegistryKeepsLaterExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	reg := NewMemoryRegistry()
	reg.now = func() time.Time { return now }

	require.NoError(t, reg.Revoke(ctx, "tok", now.Add(time.Hour)))
	require.NoError(t, reg.Revoke(ctx, "tok", now.Add(-time.Hour)))

	assert.Equal(t, 0, reg.Prune())
	assert.Equal(t, 1, reg.Len())
}

func TestMemoryRegistryConcurrent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	expiresAt := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, reg.Revoke(ctx, fmt.Sprintf("tok-%d", i%10), expiresAt))
		}()
		go func() {
			defer wg.Done()
			_, err := reg.IsRevoked(ctx, fmt.Sprintf("tok-%d", i%10))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, reg.Len())
}

func TestMemoryRegistryRunStopsOnCancel(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func newTestRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisRegistry(client, "revoked:"), mr
}

func TestRedisRegistryRevoke(t *testing.T) {
	ctx := context.Background()
	reg, mr := newTestRedisRegistry(t)

	now := time.Now()
	reg.now = func() time.Time { return now }

	require.NoError(t, reg.Revoke(ctx, "tok", now.Add(30*time.Minute)))
	require.NoError(t, reg.Revoke(ctx, "tok", now.Add(30*time.Minute)))

	revoked, err := reg.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	key := "revoked:" + core.HashToken("tok")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Minute, mr.TTL(key))
	assert.Len(t, mr.Keys(), 1)

	mr.FastForward(31 * time.Minute)

	revoked, err = reg.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked, "entry should lapse with the token")
}

func TestRedisRegistrySkipsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	reg, mr := newTestRedisRegistry(t)

	require.NoError(t, reg.Revoke(ctx, "old", time.Now().Add(-time.Minute)))
	assert.Empty(t, mr.Keys())
}

func TestRedisRegistryNoExpiry(t *testing.T) {
	ctx := context.Background()
	reg, mr := newTestRedisRegistry(t)

	require.NoError(t, reg.Revoke(ctx, "tok", time.Time{}))
	assert.Equal(t, time.Duration(0), mr.TTL("revoked:"+core.HashToken("tok")))

	revoked, err := reg.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRedisRegistryUnavailable(t *testing.T) {
	ctx := context.Background()
	reg, mr := newTestRedisRegistry(t)
	mr.Close()

	_, err := reg.IsRevoked(ctx, "tok")
	assert.ErrorIs(t, err, core.ErrDependency)

	err = reg.Revoke(ctx, "tok", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, core.ErrDependency)
}
