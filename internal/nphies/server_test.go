package nphiessvc

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/nphies-rag/internal/nphies/biz"
	"github.com/kart-io/nphies-rag/internal/nphies/store"
	cacheopts "github.com/kart-io/nphies-rag/pkg/options/cache"
	llmopts "github.com/kart-io/nphies-rag/pkg/options/llm"
	logopts "github.com/kart-io/nphies-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/nphies-rag/pkg/options/milvus"
	nphiesopts "github.com/kart-io/nphies-rag/pkg/options/nphies"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()

	corpus := filepath.Join(t.TempDir(), "Nphies Q-A.txt")
	require.NoError(t, os.WriteFile(corpus, []byte("Q: What is NPHIES?\nA: The national health insurance platform."), 0o600))

	embedding := llmopts.NewEmbeddingOptions()
	embedding.Provider = "ollama"
	embedding.BaseURL = "http://127.0.0.1:1"
	chat := llmopts.NewChatOptions()
	chat.Provider = "ollama"
	chat.BaseURL = "http://127.0.0.1:1"

	nphies := nphiesopts.NewOptions()
	nphies.CorpusPath = corpus
	nphies.WatchCorpus = false

	return &Config{
		LogOptions:       logopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: embedding,
		ChatOptions:      chat,
		NphiesOptions:    nphies,
		CacheOptions:     cacheopts.NewOptions(),
	}
}

func TestNewPipelineMemoryBackend(t *testing.T) {
	ctx := context.Background()
	p, err := newTestConfig(t).NewPipeline(ctx)
	require.NoError(t, err)
	defer p.Close(ctx)

	require.NotNil(t, p.Service)
	assert.Equal(t, store.BackendMemory, p.store.Name())
	assert.Nil(t, p.redis)
	assert.Nil(t, p.watcher)
	assert.Equal(t, biz.StatusUnbuilt, p.Service.Index().Status())

	stats, err := p.Service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ollama", stats.ChatProvider)
	assert.False(t, stats.Cache.Enabled)
}

func TestNewPipelineWithCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := newTestConfig(t)
	cfg.CacheOptions.Enabled = true
	cfg.CacheOptions.Redis.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.CacheOptions.Redis.Port = port

	ctx := context.Background()
	p, err := cfg.NewPipeline(ctx)
	require.NoError(t, err)
	defer p.Close(ctx)

	require.NotNil(t, p.redis)
	stats, err := p.Service.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Cache.Enabled)
}

func TestNewPipelineRedisDownDisablesCache(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CacheOptions.Enabled = true
	cfg.CacheOptions.Redis.Host = "127.0.0.1"
	cfg.CacheOptions.Redis.Port = 1

	ctx := context.Background()
	p, err := cfg.NewPipeline(ctx)
	require.NoError(t, err)
	defer p.Close(ctx)

	assert.Nil(t, p.redis)
}

func TestNewPipelineWatcher(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.NphiesOptions.WatchCorpus = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := cfg.NewPipeline(ctx)
	require.NoError(t, err)
	require.NotNil(t, p.watcher)

	require.NoError(t, p.Start(ctx))
	p.Close(ctx)
}

func TestNewVectorStoreUnknownBackend(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.NphiesOptions.IndexBackend = "faiss"

	_, err := cfg.newVectorStore(context.Background())
	assert.ErrorContains(t, err, "faiss")
}
