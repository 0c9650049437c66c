// Package ragsvc provides the RAG Service server implementation.
package ragsvc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/internal/pkg/rag/chunker"
	"github.com/kart-io/quizmind/internal/rag/biz"
	"github.com/kart-io/quizmind/internal/rag/handler"
	"github.com/kart-io/quizmind/internal/rag/metrics"
	"github.com/kart-io/quizmind/internal/rag/router"
	"github.com/kart-io/quizmind/internal/rag/store"
	"github.com/kart-io/quizmind/pkg/component/database"
	"github.com/kart-io/quizmind/pkg/component/milvus"
	"github.com/kart-io/quizmind/pkg/component/redis"
	"github.com/kart-io/quizmind/pkg/component/storage"
	"github.com/kart-io/quizmind/pkg/infra/app"
	"github.com/kart-io/quizmind/pkg/infra/middleware"
	"github.com/kart-io/quizmind/pkg/infra/tracing"
	"github.com/kart-io/quizmind/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/quizmind/pkg/llm/ollama"
	_ "github.com/kart-io/quizmind/pkg/llm/openai"
	"github.com/kart-io/quizmind/pkg/llm/resilience"
	dbopts "github.com/kart-io/quizmind/pkg/options/database"
	httpopts "github.com/kart-io/quizmind/pkg/options/http"
	llmopts "github.com/kart-io/quizmind/pkg/options/llm"
	logopts "github.com/kart-io/quizmind/pkg/options/logger"
	milvusopts "github.com/kart-io/quizmind/pkg/options/milvus"
	poolopts "github.com/kart-io/quizmind/pkg/options/pool"
	ragopts "github.com/kart-io/quizmind/pkg/options/rag"
	redisopts "github.com/kart-io/quizmind/pkg/options/redis"
	tracingopts "github.com/kart-io/quizmind/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "quizmind-rag"

// embeddingKeyPrefix Redis 中嵌入缓存的键前缀。
const embeddingKeyPrefix = "quizmind:emb:"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	TracingOptions   *tracingopts.Options
	DatabaseOptions  *dbopts.Options
	MilvusOptions    *milvusopts.Options
	RedisOptions     *redisopts.Options
	EmbeddingOptions *llmopts.EmbeddingOptions
	ChatOptions      *llmopts.ChatOptions
	RAGOptions       *ragopts.Options
	ExtractorOptions *ragopts.ExtractorOptions
	PoolOptions      *poolopts.Options
}

// Server represents the RAG server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	closers         []func(ctx context.Context) error
}

// NewServer initializes and returns a new Server instance. Resources opened
// before a failing step are released before returning the error.
func (cfg *Config) NewServer(ctx context.Context) (_ *Server, err error) {
	s := &Server{shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout}
	defer func() {
		if err != nil {
			s.close(context.Background())
		}
	}()

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting RAG service...",
		"embedding.provider", cfg.EmbeddingOptions.Provider,
		"embedding.model", cfg.EmbeddingOptions.Model,
		"chat.enabled", cfg.ChatOptions.Enabled,
	)

	// 2. 初始化链路追踪
	cfg.TracingOptions.ServiceVersion = app.GetVersion()
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.onClose(tp.Shutdown)

	// 后端存储客户端统一做健康检查并按注册逆序关闭
	stores := storage.NewManager()
	s.onClose(func(context.Context) error { return stores.CloseAll() })

	// 3. 初始化元数据库
	db, err := database.NewWithContext(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := stores.Register(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.DatabaseOptions.AutoMigrate {
		if err := store.AutoMigrate(db.DB()); err != nil {
			return nil, fmt.Errorf("failed to migrate metadata tables: %w", err)
		}
	}
	meta := store.NewMetadataStore(db.DB())
	logger.Infow("Metadata store initialized", "driver", cfg.DatabaseOptions.Driver)

	// 4. 初始化向量存储
	var chunks store.ChunkStore
	if cfg.MilvusOptions.Enabled {
		milvusClient, err := milvus.New(ctx, cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		if err := stores.Register(milvusClient); err != nil {
			_ = milvusClient.Close()
			return nil, err
		}
		chunks = store.NewMilvusChunkStore(milvusClient, cfg.RAGOptions.Collection)
		logger.Infow("Milvus chunk store initialized",
			"address", cfg.MilvusOptions.Address,
			"collection", cfg.RAGOptions.Collection,
		)
	} else {
		chunks = store.NewMemoryChunkStore()
		logger.Warn("Milvus is disabled, chunks are kept in memory")
	}

	// 5. 初始化 Redis 嵌入缓存，连接失败时仅使用进程内缓存
	var remote llm.RemoteEmbeddingStore
	if cfg.RedisOptions.Enabled {
		redisClient, err := redis.NewWithContext(ctx, cfg.RedisOptions)
		if err != nil {
			logger.Warnw("failed to connect to redis, embedding cache stays in-process",
				"addr", cfg.RedisOptions.Addr(),
				"error", err.Error(),
			)
		} else {
			if err := stores.Register(redisClient); err != nil {
				_ = redisClient.Close()
				return nil, err
			}
			remote = llm.NewRedisEmbeddingStore(redisClient.Client(), llm.RedisStoreConfig{
				TTL:       cfg.RedisOptions.EmbeddingTTL,
				KeyPrefix: embeddingKeyPrefix,
			})
			logger.Infow("Redis embedding cache initialized",
				"addr", cfg.RedisOptions.Addr(),
				"ttl", cfg.RedisOptions.EmbeddingTTL,
			)
		}
	}

	// 6. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	embeddings := llm.NewEmbeddingManager(embedProvider, llm.ManagerOptions{
		CacheSize: cfg.EmbeddingOptions.CacheSize,
		BatchSize: cfg.EmbeddingOptions.BatchSize,
		Timeout:   cfg.EmbeddingOptions.Timeout,
		Remote:    remote,
	})

	var labeler biz.Labeler
	if cfg.ChatOptions.Enabled {
		chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
		}
		breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig("labeler"))
		labeler = biz.NewLLMLabeler(chatProvider, breaker, cfg.ChatOptions.Timeout)
		logger.Infow("Chat labeler initialized",
			"provider", cfg.ChatOptions.Provider,
			"model", cfg.ChatOptions.Model,
		)
	} else {
		logger.Info("Chat provider disabled, subjects use fallback labels")
	}

	// 7. 初始化协程池
	pools, err := cfg.PoolOptions.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pools: %w", err)
	}
	s.onClose(func(context.Context) error {
		return pools.ReleaseAllTimeout(cfg.HTTPOptions.ShutdownTimeout)
	})

	// 8. 初始化文本提取与文件源
	extractor := &biz.MultiExtractor{}
	if cfg.ExtractorOptions.URL != "" {
		extractor.Fallback = biz.NewHTTPExtractor(cfg.ExtractorOptions.URL,
			cfg.ExtractorOptions.Timeout, cfg.ExtractorOptions.MaxRetries)
	}
	var files biz.FileSource
	if cfg.ExtractorOptions.FileSourceURL != "" {
		files = biz.NewHTTPFileSource(cfg.ExtractorOptions.FileSourceURL,
			cfg.ExtractorOptions.Timeout, cfg.ExtractorOptions.MaxRetries)
	}

	// 9. 初始化 Biz 层
	ragMetrics := metrics.New()
	service := biz.NewService(biz.ServiceDeps{
		Embeddings: embeddings,
		Chunks:     chunks,
		Meta:       meta,
		Extractor:  extractor,
		Files:      files,
		Labeler:    labeler,
		Pools:      pools,
		Metrics:    ragMetrics,
	}, biz.ServiceConfig{
		Indexer: biz.IndexerConfig{
			Chunker: chunker.Config{
				ChunkSize:    cfg.RAGOptions.ChunkSize,
				ChunkOverlap: cfg.RAGOptions.ChunkOverlap,
				MaxChunks:    cfg.RAGOptions.MaxChunks,
			},
			Cluster:        clusterConfig(cfg.RAGOptions.Cluster),
			ExtractTimeout: cfg.ExtractorOptions.Timeout,
		},
		MaxContextChars: cfg.RAGOptions.MaxContextChars,
		CandidateLimit:  cfg.RAGOptions.CandidateLimit,
	})
	if err := service.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare chunk store: %w", err)
	}

	// 10. 初始化 HTTP 服务
	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Tracing("/health", "/ready", "/metrics"),
		middleware.Logger("/health", "/ready", "/metrics"),
		middleware.BodyLimit(cfg.HTTPOptions.MaxBodyBytes),
	)
	router.Register(engine, handler.NewRAGHandler(service, ragMetrics, stores))

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("RAG service is ready")
	return s, nil
}

// Run starts the HTTP server and blocks until ctx is canceled, then shuts
// down gracefully and releases all resources.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down RAG service...")
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("HTTP server shutdown failed", "error", err.Error())
	}
	s.close(shutdownCtx)

	logger.Info("RAG service stopped")
	_ = logger.Flush()
	return runErr
}

func (s *Server) onClose(fn func(ctx context.Context) error) {
	s.closers = append(s.closers, fn)
}

// close 按打开的逆序释放资源。
func (s *Server) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warnw("failed to release resource", "error", err.Error())
		}
	}
	s.closers = nil
}

func clusterConfig(o *ragopts.ClusterOptions) biz.ClusterConfig {
	if o == nil {
		return biz.DefaultClusterConfig()
	}
	return biz.ClusterConfig{
		Threshold:      o.Threshold,
		TargetClusters: o.TargetClusters,
		MinWindow:      o.MinWindow,
		MaxSelected:    o.MaxSelected,
		KeepTop:        o.KeepTop,
	}
}
