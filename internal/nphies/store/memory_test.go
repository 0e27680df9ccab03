package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/nphies-rag/internal/model"
)

func entry(offset int, vec ...float32) Entry {
	return Entry{Chunk: model.Chunk{Text: "chunk", SourceOffset: offset}, Embedding: vec}
}

func TestMemoryStoreSearchOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Reset(ctx, 2))
	require.NoError(t, s.Insert(ctx, []Entry{
		entry(800, 0, 1),
		entry(0, 1, 0),
		entry(1600, 1, 1),
	}))

	hits, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 0, hits[0].Chunk.SourceOffset)
	assert.Equal(t, 1600, hits[1].Chunk.SourceOffset)
	assert.Equal(t, 800, hits[2].Chunk.SourceOffset)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)
	assert.InDelta(t, 1, hits[2].Distance, 1e-9)
}

func TestMemoryStoreTieBreaksBySmallerOffset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, []Entry{
		entry(1600, 2, 0),
		entry(800, 1, 0),
		entry(0, 3, 0),
	}))

	hits, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Chunk.SourceOffset)
	assert.Equal(t, 800, hits[1].Chunk.SourceOffset)
}

func TestMemoryStoreDeterministic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, []Entry{
		entry(0, 0.3, 0.7),
		entry(800, 0.7, 0.3),
		entry(1600, 0.5, 0.5),
	}))

	first, err := s.Search(ctx, []float32{0.6, 0.4}, 3)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Search(ctx, []float32{0.6, 0.4}, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMemoryStoreEmptyAndLimits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	hits, err := s.Search(ctx, []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.Insert(ctx, []Entry{entry(0, 1, 0)}))
	hits, err = s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = s.Search(ctx, []float32{1, 0, 0}, 3)
	assert.Error(t, err)

	assert.Error(t, s.Insert(ctx, []Entry{entry(800, 1)}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.Reset(ctx, 2))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
