package llm

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedEmbedSingleHit(t *testing.T) {
	mr, client := newMiniRedis(t)
	inner := &mockProvider{name: "mock"}
	cached := NewCachedEmbeddingProvider(inner, client, nil)
	ctx := context.Background()

	first, err := cached.EmbedSingle(ctx, "What is NPHIES?")
	require.NoError(t, err)
	second, err := cached.EmbedSingle(ctx, "What is NPHIES?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Len(t, mr.Keys(), 1)
	assert.Equal(t, "mock", cached.Name())
}

func TestCachedEmbedCorruptEntry(t *testing.T) {
	mr, client := newMiniRedis(t)
	inner := &mockProvider{name: "mock"}
	cached := NewCachedEmbeddingProvider(inner, client, nil)

	require.NoError(t, mr.Set(cached.generateCacheKey("hello"), "not-json"))

	v, err := cached.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, v)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedBatchBypassesCache(t *testing.T) {
	mr, client := newMiniRedis(t)
	inner := &mockProvider{name: "mock"}
	cached := NewCachedEmbeddingProvider(inner, client, nil)

	out, err := cached.Embed(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Empty(t, mr.Keys())
}

func TestCachedEmbedWithoutRedis(t *testing.T) {
	inner := &mockProvider{name: "mock"}
	cached := NewCachedEmbeddingProvider(inner, nil, nil)

	_, err := cached.EmbedSingle(context.Background(), "x")
	require.NoError(t, err)
	_, err = cached.EmbedSingle(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
