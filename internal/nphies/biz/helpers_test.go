package biz

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/nphies-rag/internal/nphies/metrics"
	"github.com/kart-io/nphies-rag/internal/nphies/store"
	"github.com/kart-io/nphies-rag/pkg/infra/pool"
	"github.com/kart-io/nphies-rag/pkg/llm"
)

const vectorDim = 27

// stubEmbedder 生成字母频率向量，并统计调用次数。
type stubEmbedder struct {
	embedCalls  atomic.Int64
	singleCalls atomic.Int64
	embedErr    error
	queryErr    error
	jitter      bool
	// delay 每批嵌入的耗时
	delay time.Duration
}

func vectorFor(text string) []float32 {
	v := make([]float32, vectorDim)
	for _, r := range text {
		r = unicode.ToLower(r)
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
			continue
		}
		v[vectorDim-1]++
	}
	return v
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.embedCalls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.jitter && len(texts) > 0 {
		// 打乱批次完成顺序
		h := fnv.New32a()
		_, _ = h.Write([]byte(texts[0]))
		select {
		case <-time.After(time.Duration(h.Sum32()%5) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	s.singleCalls.Add(1)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return vectorFor(text), nil
}

func (s *stubEmbedder) Name() string { return "stub" }

func (s *stubEmbedder) total() int64 {
	return s.embedCalls.Load() + s.singleCalls.Load()
}

// stubGenerator 记录收到的提示。
type stubGenerator struct {
	calls  atomic.Int64
	reply  string
	err    error
	mu     sync.Mutex
	prompt string
	system string
}

func (g *stubGenerator) Chat(context.Context, []llm.Message) (string, error) {
	return "", nil
}

func (g *stubGenerator) Generate(_ context.Context, prompt, systemPrompt string) (string, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.prompt = prompt
	g.system = systemPrompt
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGenerator) Name() string { return "stub-chat" }

var (
	_ llm.EmbeddingProvider = (*stubEmbedder)(nil)
	_ llm.ChatProvider      = (*stubGenerator)(nil)
)

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompt
}

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Nphies Q-A.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestPool(t *testing.T, workers int) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("test-embedding", pool.EmbeddingPool, pool.EmbeddingPoolConfig(workers))
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func newTestIndex(t *testing.T, path string, embedder *stubEmbedder, chunkSize, overlap, batch int) *Index {
	t.Helper()
	return newTestIndexWithConfig(t, &IndexConfig{
		CorpusPath:   path,
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
		BatchSize:    batch,
	}, embedder, 4)
}

func newTestIndexWithConfig(t *testing.T, config *IndexConfig, embedder *stubEmbedder, workers int) *Index {
	t.Helper()
	idx := NewIndex(config, embedder, store.NewMemoryStore(), newTestPool(t, workers), metrics.New())
	t.Cleanup(idx.Close)
	return idx
}
