package biz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/metrics"
	"github.com/kart-io/nphies-rag/pkg/infra/pool"
	"github.com/kart-io/nphies-rag/pkg/llm"
)

// Service 定义 NPHIES 问答服务接口。
type Service interface {
	// Answer 回答问题。
	Answer(ctx context.Context, query string, lang model.Language) (*model.Answer, error)
	// Stats 获取索引、缓存与查询统计信息。
	Stats(ctx context.Context) (*Stats, error)
	// Health 返回索引状态，不访问外部依赖。
	Health() IndexInfo
	// ClearCache 清空回答缓存，返回删除的键数。
	ClearCache(ctx context.Context) (int, error)
	// Welcome 返回界面欢迎文案。
	Welcome(lang model.Language) model.Greeting
}

// Stats 服务统计信息。
type Stats struct {
	Index             IndexInfo        `json:"index"`
	TopK              int              `json:"top_k"`
	EmbeddingProvider string           `json:"embedding_provider"`
	ChatProvider      string           `json:"chat_provider"`
	Cache             *CacheStats      `json:"cache"`
	EmbeddingPool     pool.Stats       `json:"embedding_pool"`
	Queries           metrics.Snapshot `json:"queries"`
}

// NphiesService 组合 Index、QueryEngine 与 AnswerCache 提供完整的问答服务。
type NphiesService struct {
	index     *Index
	engine    *QueryEngine
	cache     *AnswerCache
	generator llm.ChatProvider
	metrics   *metrics.Metrics
}

var _ Service = (*NphiesService)(nil)

// NewNphiesService 创建问答服务实例。cache 可以为 nil。
func NewNphiesService(
	index *Index,
	generator llm.ChatProvider,
	cache *AnswerCache,
	m *metrics.Metrics,
	topK int,
) *NphiesService {
	if m == nil {
		m = metrics.New()
	}
	return &NphiesService{
		index:     index,
		engine:    NewQueryEngine(index, generator, topK, m),
		cache:     cache,
		generator: generator,
		metrics:   m,
	}
}

// Index 返回底层索引。
func (s *NphiesService) Index() *Index {
	return s.index
}

// Answer 回答问题。索引就绪后先查缓存，只缓存生成的回答。
func (s *NphiesService) Answer(ctx context.Context, query string, lang model.Language) (*model.Answer, error) {
	start := time.Now()

	// 1. 查询缓存
	if answer := s.lookupCache(ctx, query, lang); answer != nil {
		s.record(lang, metrics.OutcomeCached, start, answer, nil)
		return answer, nil
	}

	// 2. 执行问答
	answer, err := s.engine.Answer(ctx, query, lang)
	if err != nil {
		s.record(lang, metrics.OutcomeError, start, nil, err)
		return nil, err
	}

	// 3. 写入缓存
	if !answer.Canned && s.cache.Enabled() {
		if err := s.cache.Set(ctx, s.index.Fingerprint(), lang, query, answer); err != nil {
			logger.Warnw("写入回答缓存失败", "error", err.Error())
		}
	}

	outcome := metrics.OutcomeGenerated
	if answer.Canned {
		outcome = metrics.OutcomeCanned
	}
	s.record(lang, outcome, start, answer, nil)
	return answer, nil
}

// lookupCache 缓存故障视为未命中。
func (s *NphiesService) lookupCache(ctx context.Context, query string, lang model.Language) *model.Answer {
	if !s.cache.Enabled() || s.index.Status() != StatusReady || strings.TrimSpace(query) == "" {
		return nil
	}

	answer, err := s.cache.Get(ctx, s.index.Fingerprint(), lang, query)
	switch {
	case err != nil:
		s.metrics.RecordCacheLookup("error")
		return nil
	case answer == nil:
		s.metrics.RecordCacheLookup("miss")
		return nil
	}
	s.metrics.RecordCacheLookup("hit")
	return answer
}

func (s *NphiesService) record(lang model.Language, outcome string, start time.Time, answer *model.Answer, err error) {
	elapsed := time.Since(start)
	s.metrics.RecordQuery(string(lang), outcome, elapsed)

	if err != nil {
		level := logger.Errorw
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			level = logger.Warnw
		}
		level("Query failed",
			"language", string(lang),
			"latency_ms", elapsed.Milliseconds(),
			"error", err.Error(),
		)
		return
	}

	logger.Infow("Query answered",
		"language", string(lang),
		"outcome", outcome,
		"reason", string(answer.Reason),
		"results", len(answer.Sources),
		"latency_ms", elapsed.Milliseconds(),
	)
}

// Stats 获取统计信息。缓存统计失败时标记为不可用，其余字段照常返回。
func (s *NphiesService) Stats(ctx context.Context) (*Stats, error) {
	cacheStats, err := s.cache.Stats(ctx)
	if err != nil {
		logger.Warnw("Answer cache stats unavailable", "error", err.Error())
		cacheStats = &CacheStats{Enabled: true, Error: err.Error()}
	}

	return &Stats{
		Index:             s.index.Info(),
		TopK:              s.engine.TopK(),
		EmbeddingProvider: s.index.Embedder().Name(),
		ChatProvider:      s.generator.Name(),
		Cache:             cacheStats,
		EmbeddingPool:     s.index.PoolStats(),
		Queries:           s.metrics.Snapshot(),
	}, nil
}

// Health 返回索引状态快照。
func (s *NphiesService) Health() IndexInfo {
	return s.index.Info()
}

// ClearCache 清空回答缓存。未启用缓存时返回 0。
func (s *NphiesService) ClearCache(ctx context.Context) (int, error) {
	return s.cache.Clear(ctx)
}

// Welcome 返回界面欢迎文案。
func (s *NphiesService) Welcome(lang model.Language) model.Greeting {
	return Welcome(lang)
}

