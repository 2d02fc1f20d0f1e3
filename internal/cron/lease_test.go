package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/watchfi/storefront/pkg/redis"
)

func newLeasePair(t *testing.T, ttl time.Duration) (*Lease, *Lease, *miniredis.Miniredis, string) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	key := client.LockKey("reconcile-worker:test")

	first, err := NewLease(client, key, ttl)
	require.NoError(t, err)
	second, err := NewLease(client, key, ttl)
	require.NoError(t, err)
	return first, second, mr, key
}

func TestLeaseIsExclusive(t *testing.T) {
	first, second, mr, key := newLeasePair(t, time.Minute)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, second.Held())

	// a release from the loser leaves the owner alone
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists(key))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseExtendRefreshesTTL(t *testing.T) {
	first, _, mr, key := newLeasePair(t, time.Minute)
	ctx := context.Background()

	_, err := first.Acquire(ctx)
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	require.NoError(t, first.Extend(ctx))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestLeaseLapsedOwnerCannotExtendOrRelease(t *testing.T) {
	first, second, mr, key := newLeasePair(t, time.Minute)
	ctx := context.Background()

	_, err := first.Acquire(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	ok, err := second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, errors.Is(first.Extend(ctx), ErrLeaseLost))
	assert.False(t, first.Held())
	require.NoError(t, first.Release(ctx))
	assert.True(t, mr.Exists(key), "stale owner removed the new lease")
}

func TestNewLeaseValidates(t *testing.T) {
	_, err := NewLease(nil, "k", 0)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	_, err = NewLease(client, "", 0)
	assert.Error(t, err)

	lease, err := NewLease(client, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLeaseTTL, lease.ttl)
}
