package biz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/metrics"
	"github.com/kart-io/nphies-rag/internal/pkg/textutil"
	"github.com/kart-io/nphies-rag/pkg/infra/tracing"
	"github.com/kart-io/nphies-rag/pkg/llm"
)

// sourcePreviewLen 回答来源预览的最大 rune 数。
const sourcePreviewLen = 160

// QueryEngine 负责单次问答：嵌入问题、检索、组装提示并生成回答。
type QueryEngine struct {
	index     *Index
	embedder  llm.EmbeddingProvider
	generator llm.ChatProvider
	topK      int
	metrics   *metrics.Metrics
}

// NewQueryEngine 创建问答引擎。问题嵌入复用 index 的嵌入供应商。
func NewQueryEngine(index *Index, generator llm.ChatProvider, topK int, m *metrics.Metrics) *QueryEngine {
	return &QueryEngine{
		index:     index,
		embedder:  index.Embedder(),
		generator: generator,
		topK:      topK,
		metrics:   m,
	}
}

// TopK 返回检索的块数。
func (e *QueryEngine) TopK() int {
	return e.topK
}

// Answer 回答一个问题。
//
// 空问题、语料缺失以及检索无结果时返回 Canned=true 的固定回答，不视为错误。
// 索引构建失败返回 *IndexBuildError，问题嵌入失败返回 *EmbeddingError，
// 生成失败返回 *GenerationError。
func (e *QueryEngine) Answer(ctx context.Context, query string, lang model.Language) (*model.Answer, error) {
	ctx, span := tracing.StartSpan(ctx, "nphies.answer", tracing.String("nphies.language", string(lang)))
	answer, err := e.answer(ctx, query, lang)
	if answer != nil {
		span.SetAttributes(
			tracing.Bool("nphies.canned", answer.Canned),
			tracing.String("nphies.reason", string(answer.Reason)),
			tracing.Int("nphies.sources", len(answer.Sources)),
		)
	}
	tracing.EndSpan(span, err)
	return answer, err
}

func (e *QueryEngine) answer(ctx context.Context, query string, lang model.Language) (*model.Answer, error) {
	// 1. 校验输入
	if strings.TrimSpace(query) == "" {
		return cannedAnswer(lang, model.ReasonEmptyQuery), nil
	}

	// 2. 确保索引就绪
	if err := e.index.EnsureBuilt(ctx); err != nil {
		var notFound *CorpusNotFoundError
		if errors.As(err, &notFound) {
			return cannedAnswer(lang, model.ReasonCorpusMissing), nil
		}
		return nil, err
	}

	// 3. 嵌入问题并检索
	vector, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, &EmbeddingError{Cause: err}
	}

	searchCtx, span := tracing.StartSpan(ctx, "nphies.search", tracing.Int("nphies.top_k", e.topK))
	hits, err := e.index.Search(searchCtx, vector, e.topK)
	span.SetAttributes(tracing.Int("nphies.hits", len(hits)))
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return cannedAnswer(lang, model.ReasonNoResults), nil
	}

	// 4. 组装提示
	prompt := BuildPrompt(lang, hits, query)
	logger.Debugw("Prompt built", "language", string(lang), "hits", len(hits), "prompt_length", len(prompt))

	// 5. 生成回答
	out, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, &GenerationError{Cause: err}
	}

	if _, ok := locales[lang]; !ok {
		lang = model.LanguageEnglish
	}
	return &model.Answer{
		Text:     strings.TrimSpace(out),
		Language: lang,
		Sources:  toSources(hits),
	}, nil
}

func (e *QueryEngine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, span := tracing.StartSpan(ctx, "nphies.embed_query", tracing.String("llm.provider", e.embedder.Name()))
	start := time.Now()
	vector, err := e.embedder.EmbedSingle(ctx, query)
	e.recordLLMCall("embed", start, err)
	tracing.EndSpan(span, err)
	return vector, err
}

func (e *QueryEngine) generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "nphies.generate",
		tracing.String("llm.provider", e.generator.Name()),
		tracing.Int("nphies.prompt_length", len(prompt)),
	)
	start := time.Now()
	out, err := e.generator.Generate(ctx, prompt, "")
	e.recordLLMCall("generate", start, err)
	tracing.EndSpan(span, err)
	return out, err
}

func (e *QueryEngine) recordLLMCall(kind string, start time.Time, err error) {
	if e.metrics != nil {
		e.metrics.RecordLLMCall(kind, time.Since(start), err)
	}
}

func toSources(hits []model.Hit) []model.ChunkSource {
	sources := make([]model.ChunkSource, len(hits))
	for i, h := range hits {
		sources[i] = model.ChunkSource{
			SourceOffset: h.Chunk.SourceOffset,
			Distance:     h.Distance,
			Preview:      textutil.TruncateString(h.Chunk.Text, sourcePreviewLen),
		}
	}
	return sources
}
