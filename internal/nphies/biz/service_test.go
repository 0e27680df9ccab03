package biz

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/metrics"
)

func newTestService(t *testing.T, path string, embedder *stubEmbedder, generator *stubGenerator, cache *AnswerCache) *NphiesService {
	t.Helper()
	idx := newTestIndex(t, path, embedder, 1000, 200, 32)
	return NewNphiesService(idx, generator, cache, metrics.New(), 3)
}

func TestServiceCachesGeneratedAnswers(t *testing.T) {
	_, client := setupTestRedis(t)
	embedder := &stubEmbedder{}
	generator := &stubGenerator{reply: "A national platform."}
	svc := newTestService(t, writeCorpus(t, sampleCorpus), embedder, generator, NewAnswerCache(client, nil))
	ctx := context.Background()

	first, err := svc.Answer(ctx, "What is NPHIES?", model.LanguageEnglish)
	require.NoError(t, err)
	second, err := svc.Answer(ctx, "  what is nphies? ", model.LanguageEnglish)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, generator.calls.Load())
	assert.EqualValues(t, 1, embedder.singleCalls.Load())

	// 不同语言不共享缓存
	_, err = svc.Answer(ctx, "What is NPHIES?", model.LanguageArabic)
	require.NoError(t, err)
	assert.EqualValues(t, 2, generator.calls.Load())

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Queries.CacheHits)
	assert.Equal(t, 2, stats.Cache.KeyCount)
	assert.True(t, stats.Cache.Available)
}

func TestServiceDoesNotCacheCanned(t *testing.T) {
	_, client := setupTestRedis(t)
	generator := &stubGenerator{reply: "x"}
	svc := newTestService(t, writeCorpus(t, ""), &stubEmbedder{}, generator, NewAnswerCache(client, nil))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		answer, err := svc.Answer(ctx, "What is NPHIES?", model.LanguageEnglish)
		require.NoError(t, err)
		assert.Equal(t, model.ReasonNoResults, answer.Reason)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Cache.KeyCount)
	assert.EqualValues(t, 2, stats.Queries.QueriesCanned)
}

func TestServiceCacheFailureDegrades(t *testing.T) {
	mr, client := setupTestRedis(t)
	generator := &stubGenerator{reply: "answer"}
	svc := newTestService(t, writeCorpus(t, sampleCorpus), &stubEmbedder{}, generator, NewAnswerCache(client, nil))
	ctx := context.Background()

	_, err := svc.Answer(ctx, "What is NPHIES?", model.LanguageEnglish)
	require.NoError(t, err)

	mr.Close()
	answer, err := svc.Answer(ctx, "What is NPHIES?", model.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Text)
	assert.EqualValues(t, 2, generator.calls.Load())
}

func TestServiceMissingCorpusSkipsCache(t *testing.T) {
	_, client := setupTestRedis(t)
	embedder := &stubEmbedder{}
	svc := newTestService(t, filepath.Join(t.TempDir(), "missing.txt"), embedder, &stubGenerator{}, NewAnswerCache(client, nil))

	answer, err := svc.Answer(context.Background(), "What is NPHIES?", model.LanguageArabic)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonCorpusMissing, answer.Reason)
	assert.Zero(t, embedder.total())
}

func TestServiceStatsWithoutCache(t *testing.T) {
	svc := newTestService(t, writeCorpus(t, sampleCorpus), &stubEmbedder{}, &stubGenerator{reply: "ok"}, nil)
	ctx := context.Background()

	_, err := svc.Answer(ctx, "What is NPHIES?", model.LanguageEnglish)
	require.NoError(t, err)
	_, err = svc.Answer(ctx, "", model.LanguageEnglish)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, stats.Cache.Enabled)
	assert.Equal(t, StatusReady, stats.Index.Status)
	assert.Equal(t, 1, stats.Index.Chunks)
	assert.Equal(t, "memory", stats.Index.Backend)
	assert.Equal(t, "stub", stats.EmbeddingProvider)
	assert.Equal(t, "stub-chat", stats.ChatProvider)
	assert.Equal(t, 3, stats.TopK)
	assert.EqualValues(t, 2, stats.Queries.QueriesTotal)
	assert.Equal(t, "test-embedding", stats.EmbeddingPool.Name)
	assert.Equal(t, 4, stats.EmbeddingPool.Capacity)
	assert.EqualValues(t, 1, stats.EmbeddingPool.SubmittedTasks)
}

func TestServiceStatsReportsUnavailableCache(t *testing.T) {
	mr, client := setupTestRedis(t)
	svc := newTestService(t, writeCorpus(t, sampleCorpus), &stubEmbedder{}, &stubGenerator{reply: "ok"}, NewAnswerCache(client, nil))
	ctx := context.Background()

	_, err := svc.Answer(ctx, "What is NPHIES?", model.LanguageEnglish)
	require.NoError(t, err)
	mr.Close()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Cache.Enabled)
	assert.False(t, stats.Cache.Available)
	assert.NotEmpty(t, stats.Cache.Error)
	assert.Equal(t, StatusReady, stats.Index.Status)
	assert.Equal(t, StatusReady, svc.Health().Status)
}

func TestServiceClearCache(t *testing.T) {
	_, client := setupTestRedis(t)
	generator := &stubGenerator{reply: "A national platform."}
	svc := newTestService(t, writeCorpus(t, sampleCorpus), &stubEmbedder{}, generator, NewAnswerCache(client, nil))
	ctx := context.Background()

	_, err := svc.Answer(ctx, "What is NPHIES?", model.LanguageEnglish)
	require.NoError(t, err)

	deleted, err := svc.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = svc.Answer(ctx, "What is NPHIES?", model.LanguageEnglish)
	require.NoError(t, err)
	assert.EqualValues(t, 2, generator.calls.Load())

	noCache := newTestService(t, writeCorpus(t, sampleCorpus), &stubEmbedder{}, generator, nil)
	deleted, err = noCache.ClearCache(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestServiceErrorsPropagate(t *testing.T) {
	svc := newTestService(t, writeCorpus(t, sampleCorpus), &stubEmbedder{}, &stubGenerator{err: errors.New("boom")}, nil)

	_, err := svc.Answer(context.Background(), "What is NPHIES?", model.LanguageEnglish)
	var genErr *GenerationError
	assert.True(t, errors.As(err, &genErr))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Queries.QueriesErrors)
}

func TestServiceWelcome(t *testing.T) {
	svc := newTestService(t, writeCorpus(t, sampleCorpus), &stubEmbedder{}, &stubGenerator{}, nil)
	assert.Equal(t, "👋 Hello! I'm your NPHIES assistant. How may I help you today?", svc.Welcome(model.LanguageEnglish).Welcome)
	assert.Equal(t, "👋 مرحبًا! أنا مساعد نفيس الذكي. كيف يمكنني مساعدتك اليوم؟", svc.Welcome(model.LanguageArabic).Welcome)
}
