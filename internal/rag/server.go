// Package ragsvc provides the RAG Service server implementation.
package ragsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/pdfrag/internal/pkg/rag/docutil"
	"github.com/kart-io/pdfrag/internal/pkg/rag/textutil"
	"github.com/kart-io/pdfrag/internal/rag/biz"
	"github.com/kart-io/pdfrag/internal/rag/handler"
	"github.com/kart-io/pdfrag/internal/rag/metrics"
	"github.com/kart-io/pdfrag/internal/rag/router"
	"github.com/kart-io/pdfrag/internal/rag/store"
	"github.com/kart-io/pdfrag/pkg/component/redis"
	"github.com/kart-io/pdfrag/pkg/component/storage"
	"github.com/kart-io/pdfrag/pkg/infra/app"
	"github.com/kart-io/pdfrag/pkg/infra/pool"
	"github.com/kart-io/pdfrag/pkg/infra/server"
	"github.com/kart-io/pdfrag/pkg/infra/tracing"
	"github.com/kart-io/pdfrag/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/pdfrag/pkg/llm/ollama"
	_ "github.com/kart-io/pdfrag/pkg/llm/openai"
	"github.com/kart-io/pdfrag/pkg/llm/resilience"
	cacheopts "github.com/kart-io/pdfrag/pkg/options/cache"
	httpopts "github.com/kart-io/pdfrag/pkg/options/http"
	llmopts "github.com/kart-io/pdfrag/pkg/options/llm"
	logopts "github.com/kart-io/pdfrag/pkg/options/logger"
	milvusopts "github.com/kart-io/pdfrag/pkg/options/milvus"
	postgresopts "github.com/kart-io/pdfrag/pkg/options/postgres"
	qdrantopts "github.com/kart-io/pdfrag/pkg/options/qdrant"
	ragopts "github.com/kart-io/pdfrag/pkg/options/rag"
	tracingopts "github.com/kart-io/pdfrag/pkg/options/tracing"
	vectoropts "github.com/kart-io/pdfrag/pkg/options/vector"
)

// Name is the name of the application.
const Name = "pdfrag"

// Storage manager names of the registered backends.
const (
	componentVectorStore = "vector_store"
	componentRedis       = "redis"
)

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	TracingOptions   *tracingopts.Options
	VectorOptions    *vectoropts.Options
	QdrantOptions    *qdrantopts.Options
	MilvusOptions    *milvusopts.Options
	PostgresOptions  *postgresopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
}

// Runtime holds the components shared by the HTTP server and the CLI commands.
type Runtime struct {
	Service *biz.Service
	Storage *storage.Manager
	Metrics *metrics.RAGMetrics
	Cache   *llm.CachedEmbeddingProvider

	breakers []handler.BreakerReporter
	tracer   *tracing.Provider
}

// NewRuntime initializes logging, tracing, the LLM providers, the vector
// index and the RAG service.
func (cfg *Config) NewRuntime(ctx context.Context) (rt *Runtime, err error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 2. 初始化链路追踪
	if cfg.TracingOptions.ServiceName == "" {
		cfg.TracingOptions.ServiceName = Name
	}
	if cfg.TracingOptions.ServiceVersion == "" {
		cfg.TracingOptions.ServiceVersion = app.GetVersion()
	}
	tracer, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// 3. 初始化共享协程池（健康检查使用）
	if err := pool.InitGlobal(); err != nil {
		return nil, fmt.Errorf("failed to initialize pools: %w", err)
	}

	rt = &Runtime{
		Storage: storage.NewManager(),
		Metrics: metrics.GetRAGMetrics(),
		tracer:  tracer,
	}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	// 4. 初始化向量库
	backend, err := store.NewBackend(ctx, store.BackendOptions{
		Vector:   cfg.VectorOptions,
		Qdrant:   cfg.QdrantOptions,
		Milvus:   cfg.MilvusOptions,
		Postgres: cfg.PostgresOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if err := rt.Storage.Register(componentVectorStore, backend); err != nil {
		_ = backend.Close()
		return nil, err
	}
	index := store.NewIndex(backend, store.Config{
		Dimension:      cfg.VectorOptions.Dimension,
		EmbeddingModel: cfg.EmbeddingOptions.Model,
		Timeout:        cfg.VectorOptions.Timeout,
	})
	index.SetHooks(rt.Metrics.IndexHooks())
	logger.Infow("Vector store initialized",
		"backend", backend.Name(),
		"dimension", index.Dimension(),
	)

	// 5. 初始化 Redis 二级缓存（可选，连接失败时降级为仅本地缓存）
	var redisClient *goredis.Client
	if cfg.CacheOptions.RedisEnabled {
		client, err := redis.Dial(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, embedding cache stays in-process", "error", err.Error())
		} else if err := rt.Storage.Register(componentRedis, client); err != nil {
			_ = client.Close()
			return nil, err
		} else {
			redisClient = client.Client
			logger.Infow("Redis embedding cache initialized",
				"addr", cfg.CacheOptions.Redis.Addr(),
				"ttl", cfg.CacheOptions.TTL,
			)
		}
	}

	// 6. 初始化 LLM 供应商
	embedder, embedBreaker, err := cfg.newEmbedder(redisClient)
	if err != nil {
		return nil, err
	}
	embedder.SetHooks(rt.Metrics.CacheHooks())
	rt.Cache = embedder

	chat, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	resilientChat := resilience.NewResilientChatProvider(chat, nil)
	rt.breakers = append(rt.breakers, embedBreaker, resilientChat.Breaker())

	// 7. 初始化 Biz 层
	chunker, err := textutil.NewChunker(cfg.RAGOptions.ChunkSize, cfg.RAGOptions.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking options: %w", err)
	}
	rt.Service = biz.NewService(
		docutil.NewExtractor(chunker),
		embedder,
		index,
		resilientChat,
		biz.Config{
			Collection:     cfg.RAGOptions.Collection,
			TopK:           cfg.RAGOptions.TopK,
			ContextSources: cfg.RAGOptions.ContextSources,
			Temperature:    cfg.ChatOptions.Temperature,
			MaxTokens:      cfg.ChatOptions.MaxTokens,
		},
		biz.WithMetrics(rt.Metrics),
	)
	logger.Infow("RAG service initialized",
		"collection", cfg.RAGOptions.Collection,
		"chunk_size", cfg.RAGOptions.ChunkSize,
		"chunk_overlap", cfg.RAGOptions.ChunkOverlap,
		"top_k", cfg.RAGOptions.TopK,
	)
	return rt, nil
}

// newEmbedder builds the embedding chain: provider, circuit breaker, cache.
// Retries happen inside the provider's HTTP client.
func (cfg *Config) newEmbedder(redisClient *goredis.Client) (*llm.CachedEmbeddingProvider, *resilience.Breaker, error) {
	provider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	resilient := resilience.NewResilientEmbeddingProvider(provider, &resilience.RetryConfig{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}, nil)

	cached, err := llm.NewCachedEmbeddingProvider(resilient, redisClient, &llm.EmbeddingCacheConfig{
		MaxEntries: cfg.CacheOptions.MaxEntries,
		TTL:        cfg.CacheOptions.TTL,
		KeyPrefix:  cfg.CacheOptions.KeyPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	return cached, resilient.Breaker(), nil
}

// Close releases every backend connection and flushes pending spans.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := rt.Storage.CloseAll(); err != nil {
		errs = append(errs, err)
	}
	if rt.tracer != nil {
		if err := rt.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	pool.CloseGlobal()
	return utilerrors.NewAggregate(errs)
}

// Server represents the RAG server.
type Server struct {
	runtime *Runtime
	http    *server.HTTPServer
	srv     *server.Manager
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	rt, err := cfg.NewRuntime(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Starting RAG service...")

	// 8. 初始化 Handler 层
	ragHandler := handler.NewRAGHandler(rt.Service, handler.Options{
		DefaultTopK:   cfg.RAGOptions.TopK,
		MaxUploadSize: cfg.RAGOptions.MaxUploadSize,
		QueryRetries:  cfg.RAGOptions.QueryRetries,
	})
	healthHandler := handler.NewHealthHandler(rt.Storage, Name, app.GetVersion()).WithBreakers(rt.breakers...)

	// 9. 初始化服务器并注册路由
	httpServer := server.NewHTTPServer(cfg.HTTPOptions, rt.Metrics)
	router.Register(httpServer.Engine(), ragHandler, healthHandler, promhttp.Handler())

	mgr := server.NewManager(server.WithShutdownTimeout(cfg.HTTPOptions.ShutdownTimeout))
	mgr.AddServer(httpServer)

	logger.Infow("RAG service is ready", "addr", cfg.HTTPOptions.Addr)
	return &Server{runtime: rt, http: httpServer, srv: mgr}, nil
}

// Addr returns the bound HTTP address once the server is running.
func (s *Server) Addr() string {
	return s.http.Addr()
}

// Run starts the server and blocks until ctx is cancelled or a termination
// signal arrives, then shuts down and releases resources.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.runtime.Close(closeCtx); err != nil {
			logger.Warnw("failed to release resources", "error", err.Error())
		}
		_ = logger.Flush()
	}()
	return s.srv.Run(ctx)
}
