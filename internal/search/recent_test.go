package search

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchfi/storefront/pkg/logger"
	pkgredis "github.com/watchfi/storefront/pkg/redis"
)

const key = "wf:searches:sess-1"

func setup(t *testing.T) (*miniredis.Miniredis, *pkgredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
}

func TestDefaultsUntilFirstSearch(t *testing.T) {
	t.Parallel()
	_, client := setup(t)

	recent, err := NewRecent(context.Background(), RecentParams{KV: client, Key: key, Logger: logger.Nop()})
	require.NoError(t, err)
	assert.Equal(t, DefaultSearches, recent.List())

	got := recent.Add(context.Background(), "Cartier")
	assert.Equal(t, []string{"Cartier"}, got)
}

func TestAddDedupesAndCaps(t *testing.T) {
	t.Parallel()
	_, client := setup(t)
	ctx := context.Background()

	recent, err := NewRecent(ctx, RecentParams{KV: client, Key: key, Logger: logger.Nop()})
	require.NoError(t, err)

	for _, term := range []string{"a", "b", "c", "d", "e", " B "} {
		recent.Add(ctx, term)
	}
	assert.Equal(t, []string{"B", "e", "d", "c"}, recent.List())

	recent.Add(ctx, "   ")
	assert.Len(t, recent.List(), MaxRecent)
}

func TestPersistedAcrossInstances(t *testing.T) {
	t.Parallel()
	_, client := setup(t)
	ctx := context.Background()

	first, err := NewRecent(ctx, RecentParams{KV: client, Key: key, Logger: logger.Nop()})
	require.NoError(t, err)
	first.Add(ctx, "Tudor")
	first.Add(ctx, "Breitling")

	second, err := NewRecent(ctx, RecentParams{KV: client, Key: key, Logger: logger.Nop()})
	require.NoError(t, err)
	assert.Equal(t, []string{"Breitling", "Tudor"}, second.List())
}

func TestClearDeletesKeyAndRestoresDefaults(t *testing.T) {
	t.Parallel()
	mr, client := setup(t)
	ctx := context.Background()

	recent, err := NewRecent(ctx, RecentParams{KV: client, Key: key, Logger: logger.Nop()})
	require.NoError(t, err)
	recent.Add(ctx, "Tudor")
	require.True(t, mr.Exists(key))

	recent.Clear(ctx)
	assert.False(t, mr.Exists(key))
	assert.Equal(t, DefaultSearches, recent.List())
}

func TestMalformedPayloadResets(t *testing.T) {
	t.Parallel()
	mr, client := setup(t)
	require.NoError(t, mr.Set(key, `{"not":"a list"}`))

	recent, err := NewRecent(context.Background(), RecentParams{KV: client, Key: key, Logger: logger.Nop()})
	require.NoError(t, err)
	assert.Equal(t, DefaultSearches, recent.List())
	assert.False(t, mr.Exists(key))
}

func TestOversizedPayloadIsTrimmed(t *testing.T) {
	t.Parallel()
	mr, client := setup(t)
	require.NoError(t, mr.Set(key, `["a","A","b","c","d","e"]`))

	recent, err := NewRecent(context.Background(), RecentParams{KV: client, Key: key, Logger: logger.Nop()})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, recent.List())
}

func TestMemoryOnly(t *testing.T) {
	t.Parallel()
	recent, err := NewRecent(context.Background(), RecentParams{Logger: logger.Nop()})
	require.NoError(t, err)
	recent.Add(context.Background(), "IWC")
	assert.Equal(t, []string{"IWC"}, recent.List())

	if _, err := NewRecent(context.Background(), RecentParams{}); err == nil {
		t.Fatalf("expected logger error")
	}
}
