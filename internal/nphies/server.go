// Package nphiessvc assembles the NPHIES assistant from its options.
package nphiessvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/biz"
	"github.com/kart-io/nphies-rag/internal/nphies/handler"
	"github.com/kart-io/nphies-rag/internal/nphies/metrics"
	"github.com/kart-io/nphies-rag/internal/nphies/router"
	"github.com/kart-io/nphies-rag/internal/nphies/store"
	"github.com/kart-io/nphies-rag/internal/nphies/watcher"
	"github.com/kart-io/nphies-rag/pkg/component/milvus"
	"github.com/kart-io/nphies-rag/pkg/infra/app"
	"github.com/kart-io/nphies-rag/pkg/infra/pool"
	httpserver "github.com/kart-io/nphies-rag/pkg/infra/server/http"
	"github.com/kart-io/nphies-rag/pkg/infra/tracing"
	"github.com/kart-io/nphies-rag/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/nphies-rag/pkg/llm/ollama"
	_ "github.com/kart-io/nphies-rag/pkg/llm/openai"
	cacheopts "github.com/kart-io/nphies-rag/pkg/options/cache"
	llmopts "github.com/kart-io/nphies-rag/pkg/options/llm"
	logopts "github.com/kart-io/nphies-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/nphies-rag/pkg/options/milvus"
	nphiesopts "github.com/kart-io/nphies-rag/pkg/options/nphies"
	httpopts "github.com/kart-io/nphies-rag/pkg/options/server/http"
	tracingopts "github.com/kart-io/nphies-rag/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "nphies-rag"

// watcherSubscriber identifies the index in the corpus watcher.
const watcherSubscriber = "index"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	NphiesOptions    *nphiesopts.Options
	CacheOptions     *cacheopts.Options
	TracingOptions   *tracingopts.Options
	ShutdownTimeout  time.Duration
}

// Pipeline holds the retrieval components shared by the HTTP server and
// the command line client.
type Pipeline struct {
	Service *biz.NphiesService
	Metrics *metrics.Metrics

	store   store.VectorStore
	pool    *pool.Pool
	redis   *goredis.Client
	watcher *watcher.Watcher
}

// Server represents the NPHIES HTTP server.
type Server struct {
	cfg      *Config
	srv      *httpserver.Server
	tracer   *tracing.Provider
	pipeline *Pipeline
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting NPHIES service...")

	// 2. 初始化链路追踪
	tracer, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Infow("Tracing initialized", "enabled", tracer.Enabled())

	// 3-8. 初始化检索流水线
	pipeline, err := cfg.NewPipeline(ctx)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	lang, err := model.ParseLanguage(cfg.NphiesOptions.DefaultLanguage)
	if err != nil {
		pipeline.Close(ctx)
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	// 9. 初始化 Handler 层
	nphiesHandler := handler.NewNphiesHandler(pipeline.Service, lang, cfg.NphiesOptions.QueryTimeout)
	logger.Info("Handler layer initialized")

	// 10. 初始化服务器并注册路由
	srv := httpserver.NewServer(cfg.HTTPOptions)
	router.Register(srv.Engine(), nphiesHandler, pipeline.Metrics.Handler())

	logger.Info("NPHIES service is ready")
	return &Server{
		cfg:      cfg,
		srv:      srv,
		tracer:   tracer,
		pipeline: pipeline,
	}, nil
}

// NewPipeline builds the retrieval components without the HTTP layer.
// The logger must already be initialized.
func (cfg *Config) NewPipeline(ctx context.Context) (*Pipeline, error) {
	p := &Pipeline{}

	// 3. 初始化指标
	p.Metrics = metrics.New()

	// 4. 初始化 Redis 客户端（用于缓存）
	var answerCache *biz.AnswerCache
	if cfg.CacheOptions != nil && cfg.CacheOptions.Enabled {
		redisOpts := cfg.CacheOptions.Redis
		redisClient := redisOpts.NewClient()

		// 测试 Redis 连接
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
			_ = redisClient.Close()
		} else {
			p.redis = redisClient
			answerCache = biz.NewAnswerCache(redisClient, &biz.AnswerCacheConfig{
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix,
			})
			logger.Infow("Redis cache initialized",
				"addr", redisOpts.Addr(),
				"ttl", cfg.CacheOptions.TTL,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 5. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if p.redis != nil {
		embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, p.redis, &llm.EmbeddingCacheConfig{
			TTL:       llm.DefaultEmbeddingCacheConfig().TTL,
			KeyPrefix: "nphies:emb:" + cfg.EmbeddingOptions.Model + ":",
		})
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 6. 初始化 Store 层
	p.store, err = cfg.newVectorStore(ctx)
	if err != nil {
		p.Close(ctx)
		return nil, err
	}
	logger.Infow("Vector store initialized", "backend", p.store.Name())

	// 7. 初始化嵌入协程池
	p.pool, err = pool.NewPool("nphies-embedding", pool.EmbeddingPool, pool.EmbeddingPoolConfig(cfg.NphiesOptions.BuildWorkers))
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("failed to initialize embedding pool: %w", err)
	}

	// 8. 初始化 Biz 层
	index := biz.NewIndex(&biz.IndexConfig{
		CorpusPath:   cfg.NphiesOptions.CorpusPath,
		ChunkSize:    cfg.NphiesOptions.ChunkSize,
		ChunkOverlap: cfg.NphiesOptions.ChunkOverlap,
		BatchSize:    cfg.NphiesOptions.BuildBatchSize,
		BuildTimeout: cfg.NphiesOptions.BuildTimeout,
	}, embedProvider, p.store, p.pool, p.Metrics)
	p.Service = biz.NewNphiesService(index, chatProvider, answerCache, p.Metrics, cfg.NphiesOptions.TopK)
	logger.Infow("NPHIES service initialized",
		"corpus", cfg.NphiesOptions.CorpusPath,
		"top_k", cfg.NphiesOptions.TopK,
		"cache.enabled", answerCache.Enabled(),
	)

	if cfg.NphiesOptions.WatchCorpus {
		p.watcher, err = watcher.New(cfg.NphiesOptions.CorpusPath)
		if err != nil {
			p.Close(ctx)
			return nil, fmt.Errorf("failed to initialize corpus watcher: %w", err)
		}
		p.watcher.Subscribe(watcherSubscriber, func(event fsnotify.Event) {
			if index.MarkStale() {
				logger.Warnw("Corpus changed after the index was built, restart to re-index",
					"path", event.Name,
					"op", event.Op.String(),
				)
			}
		})
	}

	return p, nil
}

// newVectorStore creates the configured vector backend.
func (cfg *Config) newVectorStore(ctx context.Context) (store.VectorStore, error) {
	switch cfg.NphiesOptions.IndexBackend {
	case nphiesopts.BackendMilvus:
		client, err := milvus.New(ctx, cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		logger.Infow("Milvus client initialized", "address", cfg.MilvusOptions.Address)
		return store.NewMilvusStore(client, cfg.MilvusOptions.Collection, cfg.NphiesOptions.ChunkSize), nil
	case nphiesopts.BackendMemory, "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported index backend %q", cfg.NphiesOptions.IndexBackend)
	}
}

// Start starts the corpus watcher if one is configured.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Start(ctx)
}

// Close releases every component that was created. It is safe to call on
// a partially built pipeline.
func (p *Pipeline) Close(ctx context.Context) {
	if p.watcher != nil {
		if err := p.watcher.Stop(); err != nil {
			logger.Warnw("failed to stop corpus watcher", "error", err.Error())
		}
	}
	if p.Service != nil {
		p.Service.Index().Close()
	}
	if p.pool != nil {
		p.pool.Release()
	}
	if p.store != nil {
		if err := p.store.Close(ctx); err != nil {
			logger.Warnw("failed to close vector store", "error", err.Error())
		}
	}
	if p.redis != nil {
		_ = p.redis.Close()
	}
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.pipeline.Start(ctx); err != nil {
		logger.Warnw("Corpus watcher disabled", "error", err.Error())
	}

	if err := s.srv.Start(ctx); err != nil {
		s.pipeline.Close(context.Background())
		_ = s.tracer.Shutdown(context.Background())
		return fmt.Errorf("failed to start http server: %w", err)
	}

	<-ctx.Done()
	logger.Info("Shutting down NPHIES service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.srv.Stop(shutdownCtx)
	s.pipeline.Close(shutdownCtx)
	if terr := s.tracer.Shutdown(shutdownCtx); terr != nil {
		logger.Warnw("failed to flush traces", "error", terr.Error())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to stop http server: %w", err)
	}

	logger.Info("NPHIES service stopped")
	return nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Corpus: %s\n", cfg.NphiesOptions.CorpusPath)
	fmt.Printf("  Index backend: %s\n", cfg.NphiesOptions.IndexBackend)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
}
