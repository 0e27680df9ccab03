package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/metrics"
	"github.com/kart-io/nphies-rag/internal/nphies/store"
	"github.com/kart-io/nphies-rag/internal/pkg/textutil"
	"github.com/kart-io/nphies-rag/pkg/infra/pool"
	"github.com/kart-io/nphies-rag/pkg/infra/tracing"
	"github.com/kart-io/nphies-rag/pkg/llm"
)

// IndexStatus 索引生命周期状态。
type IndexStatus string

const (
	StatusUnbuilt     IndexStatus = "unbuilt"
	StatusBuilding    IndexStatus = "building"
	StatusReady       IndexStatus = "ready"
	StatusBuildFailed IndexStatus = "build_failed"
)

// IndexConfig 索引配置。
type IndexConfig struct {
	// CorpusPath 知识库文件路径。
	CorpusPath string
	// ChunkSize 块大小（rune 数）。
	ChunkSize int
	// ChunkOverlap 相邻块重叠的 rune 数。
	ChunkOverlap int
	// BatchSize 每次嵌入请求包含的块数。
	BatchSize int
	// BuildTimeout 单次构建的超时时间，0 表示不限制。
	BuildTimeout time.Duration
}

// buildFlight 一次进行中的构建，done 关闭后 err 可读。
type buildFlight struct {
	done chan struct{}
	err  error
}

// IndexInfo 索引状态快照。
type IndexInfo struct {
	Status        IndexStatus   `json:"status"`
	Chunks        int           `json:"chunks"`
	Dimension     int           `json:"dimension"`
	Backend       string        `json:"backend"`
	CorpusPath    string        `json:"corpus_path"`
	Fingerprint   string        `json:"fingerprint,omitempty"`
	BuiltAt       time.Time     `json:"built_at,omitzero"`
	BuildDuration time.Duration `json:"build_duration"`
	Builds        int64         `json:"builds"`
	CorpusChanged bool          `json:"corpus_changed"`
	LastError     string        `json:"last_error,omitempty"`
}

// Index 惰性构建的向量索引。第一次 EnsureBuilt 触发构建，之后直接复用。
// 不再使用时调用 Close。
type Index struct {
	config   *IndexConfig
	splitter *Splitter
	embedder llm.EmbeddingProvider
	store    store.VectorStore
	pool     *pool.Pool
	metrics  *metrics.Metrics

	// lifetime 在 Close 时取消，结束进行中的构建
	lifetime context.Context
	stop     context.CancelFunc

	mu sync.RWMutex
	// flight 非空表示构建进行中，同一时刻只有一次构建
	flight        *buildFlight
	status        IndexStatus
	buildErr      error
	chunks        int
	dimension     int
	fingerprint   string
	builtAt       time.Time
	buildDuration time.Duration

	builds atomic.Int64
	stale  atomic.Bool
}

// NewIndex 创建索引实例。p 用于并发嵌入，m 可以为 nil。
func NewIndex(
	config *IndexConfig,
	embedder llm.EmbeddingProvider,
	vectorStore store.VectorStore,
	p *pool.Pool,
	m *metrics.Metrics,
) *Index {
	lifetime, stop := context.WithCancel(context.Background())
	return &Index{
		lifetime: lifetime,
		stop:     stop,
		config:   config,
		splitter: NewSplitter(config.ChunkSize, config.ChunkOverlap),
		embedder: embedder,
		store:    vectorStore,
		pool:     p,
		metrics:  m,
		status:   StatusUnbuilt,
	}
}

// Embedder 返回构建索引使用的嵌入供应商，查询必须使用同一个实例。
func (x *Index) Embedder() llm.EmbeddingProvider {
	return x.embedder
}

// Status 返回当前生命周期状态。
func (x *Index) Status() IndexStatus {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.status
}

// Fingerprint 返回构建时语料内容的哈希，未就绪时为空。
func (x *Index) Fingerprint() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.fingerprint
}

// Info 返回索引状态快照。
func (x *Index) Info() IndexInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()

	info := IndexInfo{
		Status:        x.status,
		Chunks:        x.chunks,
		Dimension:     x.dimension,
		Backend:       x.store.Name(),
		CorpusPath:    x.config.CorpusPath,
		Fingerprint:   x.fingerprint,
		BuiltAt:       x.builtAt,
		BuildDuration: x.buildDuration,
		Builds:        x.builds.Load(),
		CorpusChanged: x.stale.Load(),
	}
	if x.buildErr != nil {
		info.LastError = x.buildErr.Error()
	}
	return info
}

// PoolStats 返回嵌入池统计。
func (x *Index) PoolStats() pool.Stats {
	if x.pool == nil {
		return pool.Stats{}
	}
	return x.pool.Stats()
}

// MarkStale 记录语料在索引就绪后发生了变化。不会触发重建。
func (x *Index) MarkStale() bool {
	if x.Status() != StatusReady {
		return false
	}
	if x.stale.CompareAndSwap(false, true) && x.metrics != nil {
		x.metrics.SetCorpusStale(true)
	}
	return true
}

// EnsureBuilt 保证索引已就绪。
//
// 构建在后台进行，保留调用方 ctx 中的值但不受其取消与超时影响，调用方 ctx
// 结束时只放弃等待，构建继续，后续调用等待同一次构建。
// 语料不存在时返回 *CorpusNotFoundError，状态保持 Unbuilt，下次调用重新检查文件。
// 嵌入或写入失败时返回 *IndexBuildError，状态变为 BuildFailed，之后的调用返回同一错误。
// 构建超时或索引关闭时状态回到 Unbuilt。
func (x *Index) EnsureBuilt(ctx context.Context) error {
	if done, err := x.settled(); done {
		return err
	}

	x.mu.Lock()
	if done, err := x.settledLocked(); done {
		x.mu.Unlock()
		return err
	}
	f := x.flight
	if f == nil {
		f = &buildFlight{done: make(chan struct{})}
		x.flight = f
		go x.run(context.WithoutCancel(ctx), f)
	}
	x.mu.Unlock()

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 取消进行中的构建并等待其退出。
func (x *Index) Close() {
	x.stop()

	x.mu.RLock()
	f := x.flight
	x.mu.RUnlock()
	if f != nil {
		<-f.done
	}
}

// settled 报告索引是否处于终态。
func (x *Index) settled() (bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.settledLocked()
}

func (x *Index) settledLocked() (bool, error) {
	switch x.status {
	case StatusReady:
		return true, nil
	case StatusBuildFailed:
		return true, x.buildErr
	}
	return false, nil
}

func (x *Index) setStatus(status IndexStatus) {
	x.mu.Lock()
	x.status = status
	x.mu.Unlock()
}

// run 执行一次构建并唤醒所有等待者。
func (x *Index) run(ctx context.Context, f *buildFlight) {
	ctx, cancel := x.buildContext(ctx)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "nphies.index.build",
		tracing.String("nphies.corpus_path", x.config.CorpusPath),
		tracing.String("nphies.backend", x.store.Name()),
	)
	err := x.build(ctx)
	span.SetAttributes(
		tracing.String("nphies.index_status", string(x.Status())),
		tracing.Int("nphies.chunks", x.Info().Chunks),
	)
	tracing.EndSpan(span, err)

	x.mu.Lock()
	x.flight = nil
	x.mu.Unlock()

	f.err = err
	close(f.done)
}

// buildContext 派生构建使用的 ctx，在索引关闭或构建超时时取消。
func (x *Index) buildContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stopAfter := context.AfterFunc(x.lifetime, cancel)
	release := func() {
		stopAfter()
		cancel()
	}
	if x.config.BuildTimeout <= 0 {
		return ctx, release
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, x.config.BuildTimeout)
	return ctx, func() {
		cancelTimeout()
		release()
	}
}

func (x *Index) build(ctx context.Context) error {
	// 1. 读取语料
	text, err := LoadCorpus(x.config.CorpusPath)
	if err != nil {
		var notFound *CorpusNotFoundError
		if errors.As(err, &notFound) {
			logger.Warnw("Corpus file not found", "path", x.config.CorpusPath)
			return err
		}
		return x.fail(&IndexBuildError{Cause: err})
	}

	x.setStatus(StatusBuilding)
	x.builds.Add(1)
	start := time.Now()

	// 2. 切块
	chunks := x.splitter.Split(text)
	logger.Infow("Index build started",
		"path", x.config.CorpusPath,
		"chunks", len(chunks),
		"backend", x.store.Name(),
		"embedding_provider", x.embedder.Name(),
		"trace_id", tracing.TraceIDFromContext(ctx),
	)

	// 3. 批量嵌入
	vectors, err := x.embedChunks(ctx, chunks)
	if err != nil {
		if ctx.Err() != nil {
			return x.abort(ctx, err)
		}
		return x.fail(&IndexBuildError{Cause: err})
	}

	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}

	// 4. 写入存储，空语料不触碰存储
	if len(chunks) > 0 {
		entries := make([]store.Entry, len(chunks))
		for i, c := range chunks {
			entries[i] = store.Entry{Chunk: c, Embedding: vectors[i]}
		}
		if err := x.store.Reset(ctx, dimension); err != nil {
			if ctx.Err() != nil {
				return x.abort(ctx, err)
			}
			return x.fail(&IndexBuildError{Cause: fmt.Errorf("reset %s store: %w", x.store.Name(), err)})
		}
		if err := x.store.Insert(ctx, entries); err != nil {
			if ctx.Err() != nil {
				return x.abort(ctx, err)
			}
			return x.fail(&IndexBuildError{Cause: fmt.Errorf("insert into %s store: %w", x.store.Name(), err)})
		}
	}

	elapsed := time.Since(start)
	x.mu.Lock()
	x.status = StatusReady
	x.buildErr = nil
	x.chunks = len(chunks)
	x.dimension = dimension
	x.fingerprint = textutil.HashString(text)[:16]
	x.builtAt = time.Now()
	x.buildDuration = elapsed
	x.mu.Unlock()
	x.stale.Store(false)

	if x.metrics != nil {
		x.metrics.RecordIndexBuild(len(chunks), elapsed, nil)
		x.metrics.SetCorpusStale(false)
	}
	logger.Infow("Index build finished",
		"chunks", len(chunks),
		"dimension", dimension,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

// abort 在构建超时或索引关闭时把状态恢复为 Unbuilt，下次调用重新构建。
func (x *Index) abort(ctx context.Context, cause error) error {
	x.setStatus(StatusUnbuilt)
	logger.Warnw("Index build cancelled", "error", cause.Error())
	return ctx.Err()
}

func (x *Index) fail(err *IndexBuildError) error {
	x.mu.Lock()
	x.status = StatusBuildFailed
	x.buildErr = err
	x.mu.Unlock()

	if x.metrics != nil {
		x.metrics.RecordIndexBuild(0, 0, err)
	}
	logger.Errorw("Index build failed", "path", x.config.CorpusPath, "error", err.Error())
	return err
}

// embedChunks 在工作池上分批嵌入，结果按块顺序返回，与批次完成顺序无关。
func (x *Index) embedChunks(ctx context.Context, chunks []model.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	batchSize := x.config.BatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	vectors := make([][]float32, len(chunks))
	group, _ := pool.NewGroup(ctx, x.pool)

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		group.Go(func(ctx context.Context) error {
			callStart := time.Now()
			out, err := x.embedder.Embed(ctx, texts)
			if x.metrics != nil {
				x.metrics.RecordLLMCall("embed", time.Since(callStart), err)
			}
			if err != nil {
				return fmt.Errorf("embed chunks [%d, %d): %w", start, end, err)
			}
			if len(out) != len(texts) {
				return fmt.Errorf("embed chunks [%d, %d): got %d vectors", start, end, len(out))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	dimension := len(vectors[0])
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("chunk %d has no embedding", i)
		}
		if len(v) != dimension || dimension == 0 {
			return nil, fmt.Errorf("chunk %d has dimension %d, want %d", i, len(v), dimension)
		}
	}
	return vectors, nil
}

// Search 在就绪的索引上检索最近的 topK 个块。
func (x *Index) Search(ctx context.Context, embedding []float32, topK int) ([]model.Hit, error) {
	x.mu.RLock()
	status, chunks := x.status, x.chunks
	x.mu.RUnlock()

	if status != StatusReady {
		return nil, fmt.Errorf("index is %s", status)
	}
	if chunks == 0 {
		return []model.Hit{}, nil
	}
	return x.store.Search(ctx, embedding, topK)
}
