package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/config"
	"github.com/kailas-cloud/newsdex/internal/db"
	dbredis "github.com/kailas-cloud/newsdex/internal/db/redis"
	"github.com/kailas-cloud/newsdex/internal/domain"
	logpkg "github.com/kailas-cloud/newsdex/internal/logger"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	"github.com/kailas-cloud/newsdex/internal/repository/boltkv"
	budgetrepo "github.com/kailas-cloud/newsdex/internal/repository/budget"
	"github.com/kailas-cloud/newsdex/internal/repository/chromemindex"
	"github.com/kailas-cloud/newsdex/internal/repository/embcache"
	"github.com/kailas-cloud/newsdex/internal/repository/esindex"
	"github.com/kailas-cloud/newsdex/internal/repository/qdrantindex"
	"github.com/kailas-cloud/newsdex/internal/repository/redisindex"
	"github.com/kailas-cloud/newsdex/internal/retry"
	"github.com/kailas-cloud/newsdex/internal/transport/fastembed"
	openaitr "github.com/kailas-cloud/newsdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/newsdex/internal/usecase/embedding"
	"github.com/kailas-cloud/newsdex/internal/usecase/health"
	"github.com/kailas-cloud/newsdex/internal/usecase/indexing"
	"github.com/kailas-cloud/newsdex/internal/usecase/search"
)

// vectorIndex is what every index backend provides.
type vectorIndex interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, vectors []domain.IndexedVector) error
	Query(ctx context.Context, q domain.VectorQuery) ([]domain.Candidate, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
	HealthCheck(ctx context.Context) error
}

// app is the composition root shared by all commands. Dependencies are built lazily
// so each command only connects to what it uses.
type app struct {
	env      string
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	closers  []func() error

	redis    *dbredis.Store
	kv       db.KVStore
	kvLoaded bool
	budget   *embeddinguc.BudgetTracker
	embedder domain.Embedder
	health   *health.Service
}

func newApp(env, configPath string) (*app, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	return &app{
		env:      env,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		health:   health.New(),
	}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func (a *app) retryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries: a.cfg.Retry.MaxRetries,
		BaseDelay:  time.Duration(a.cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(a.cfg.Retry.MaxDelayMs) * time.Millisecond,
	}
}

func (a *app) redisStore(ctx context.Context) (*dbredis.Store, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	d := a.cfg.Database
	store, err := dbredis.NewStore(dbredis.Config{
		Addrs:    d.Addrs,
		Username: d.Username,
		Password: d.Password,
		DB:       d.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: redis store: %w", domain.ErrIndex, err)
	}
	a.onClose(func() error { store.Close(); return nil })

	if err := store.WaitForReady(ctx, time.Duration(d.ReadinessTimeout)*time.Second); err != nil {
		return nil, fmt.Errorf("%w: database not ready: %w", domain.ErrIndex, err)
	}
	a.logger.Info("Connected to database", zap.Strings("addrs", d.Addrs))
	a.redis = store
	a.health.Add("database", health.CheckerFunc(store.Ping))
	return store, nil
}

// kvStore returns the embedding cache and budget backend, nil when disabled.
func (a *app) kvStore(ctx context.Context) (db.KVStore, error) {
	if a.kvLoaded {
		return a.kv, nil
	}
	switch a.cfg.Embedding.Cache.Backend {
	case "redis":
		store, err := a.redisStore(ctx)
		if err != nil {
			return nil, err
		}
		a.kv = store
	case "bolt":
		store, err := boltkv.Open(a.cfg.Embedding.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		a.onClose(store.Close)
		a.kv = store
	}
	a.kvLoaded = true
	return a.kv, nil
}

// vectorIndex opens the configured backend and makes sure the index exists.
func (a *app) vectorIndex(ctx context.Context) (vectorIndex, error) {
	if err := a.cfg.RequireIndex(); err != nil {
		return nil, err
	}
	ic := a.cfg.Index

	var (
		idx vectorIndex
		err error
	)
	switch ic.Backend {
	case "redis", "valkey":
		store, serr := a.redisStore(ctx)
		if serr != nil {
			return nil, serr
		}
		idx = redisindex.New(store, ic.Name, ic.Dimensions, redisindex.HNSWConfig{
			M:           ic.HNSWM,
			EFConstruct: ic.HNSWEFConstruct,
		})
	case "chromem":
		idx, err = chromemindex.New(chromemindex.Config{
			Path:       a.cfg.Chromem.Path,
			Compress:   a.cfg.Chromem.Compress,
			Name:       ic.Name,
			Dimensions: ic.Dimensions,
		})
	case "qdrant":
		q := a.cfg.Qdrant
		var repo *qdrantindex.Repo
		repo, err = qdrantindex.Dial(qdrantindex.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Name:       ic.Name,
			Dimensions: ic.Dimensions,
		})
		if err == nil {
			a.onClose(repo.Close)
			idx = repo
		}
	case "elasticsearch":
		es := a.cfg.Elasticsearch
		idx, err = esindex.New(esindex.Config{
			Addrs:      es.Addrs,
			Username:   es.Username,
			Password:   es.Password,
			APIKey:     es.APIKey,
			Name:       ic.Name,
			Dimensions: ic.Dimensions,
		})
	default:
		err = fmt.Errorf("%w: unknown index backend %q", domain.ErrConfig, ic.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", ic.Backend, err)
	}

	if err := a.retryPolicy().Do(ctx, "index.ensure", idx.EnsureIndex); err != nil {
		return nil, fmt.Errorf("ensure index %s: %w", ic.Name, err)
	}
	a.health.Add("index", idx)
	a.logger.Info("Vector index ready",
		zap.String("backend", ic.Backend),
		zap.String("name", ic.Name),
		zap.Int("dimensions", ic.Dimensions),
	)
	return idx, nil
}

// baseEmbedder builds the provider once; document and query chains share it.
func (a *app) baseEmbedder() (domain.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	if err := a.cfg.RequireEmbedding(); err != nil {
		return nil, err
	}
	e := a.cfg.Embedding
	switch e.Provider {
	case "openai":
		a.embedder = openaitr.NewEmbedder(openaitr.EmbedderConfig{
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: e.Dimensions,
		})
	case "fastembed":
		fe, err := fastembed.NewEmbedder(fastembed.Config{Model: e.Model, CacheDir: e.ModelCacheDir})
		if err != nil {
			return nil, fmt.Errorf("load local model: %w", err)
		}
		a.onClose(fe.Close)
		a.embedder = fe
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfig, e.Provider)
	}
	if hc, ok := a.embedder.(domain.HealthChecker); ok {
		a.health.Add("embedder", hc)
	}
	return a.embedder, nil
}

func (a *app) budgetTracker(ctx context.Context) (embeddinguc.BudgetChecker, error) {
	b := a.cfg.Embedding.Budget
	if b.DailyTokenLimit <= 0 && b.MonthlyTokenLimit <= 0 {
		// Untyped nil: a nil *BudgetTracker inside the interface would not be nil.
		return nil, nil
	}
	if a.budget != nil {
		return a.budget, nil
	}
	action, err := embeddinguc.ParseBudgetAction(b.Action)
	if err != nil {
		return nil, err
	}
	a.budget = embeddinguc.NewBudgetTracker(
		a.cfg.Embedding.Provider, b.DailyTokenLimit, b.MonthlyTokenLimit, action, a.logger,
	)

	kv, err := a.kvStore(ctx)
	if err != nil {
		return nil, err
	}
	if kv != nil {
		a.budget.WithStore(ctx, budgetrepo.New(kv, 0, 0))
	}
	return a.budget, nil
}

// buildEmbedder assembles the decorator chain: provider -> cache -> instrumented -> instruction.
func (a *app) buildEmbedder(ctx context.Context, instruction string) (domain.Embedder, error) {
	base, err := a.baseEmbedder()
	if err != nil {
		return nil, err
	}
	e := a.cfg.Embedding

	embedder := base
	kv, err := a.kvStore(ctx)
	if err != nil {
		return nil, err
	}
	if kv != nil {
		embedder = embcache.New(base, kv, e.Model, metrics.EmbeddingCacheTotal, a.logger)
	}

	budget, err := a.budgetTracker(ctx)
	if err != nil {
		return nil, err
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, e.Provider, e.Model, e.Dimensions, budget, a.logger)

	// Outermost so the cache key includes the instruction.
	if instruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder, nil
}

func (a *app) summarizer() (indexing.Summarizer, error) {
	if err := a.cfg.RequireSummarizer(); err != nil {
		return nil, err
	}
	s := a.cfg.Summarization
	if s.Provider != "openai" {
		return nil, nil
	}
	return openaitr.NewSummarizer(openaitr.SummarizerConfig{
		APIKey:    s.APIKey,
		BaseURL:   s.BaseURL,
		Model:     s.Model,
		MaxTokens: s.MaxTokens,
	}), nil
}

// requireIndexing fails fast on missing credentials for the store path.
func (a *app) requireIndexing() error {
	for _, check := range []func() error{
		a.cfg.RequireIndex, a.cfg.RequireEmbedding, a.cfg.RequireSummarizer,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) indexingService(ctx context.Context) (*indexing.Service, vectorIndex, error) {
	idx, err := a.vectorIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	embed, err := a.buildEmbedder(ctx, a.cfg.Embedding.DocumentInstruction)
	if err != nil {
		return nil, nil, err
	}
	summarizer, err := a.summarizer()
	if err != nil {
		return nil, nil, err
	}
	return indexing.New(idx, embed, summarizer, a.cfg.Index.BatchSize, a.retryPolicy(), a.logger), idx, nil
}

func (a *app) searchService(ctx context.Context) (*search.Service, vectorIndex, error) {
	idx, err := a.vectorIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	embed, err := a.buildEmbedder(ctx, a.cfg.Embedding.QueryInstruction)
	if err != nil {
		return nil, nil, err
	}
	return search.New(idx, embed, a.retryPolicy(), a.logger), idx, nil
}

// serveMetrics exposes /metrics for batch commands when metrics.port is set.
func (a *app) serveMetrics() {
	if a.cfg.Metrics.Port <= 0 {
		return
	}
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler(a.registry))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Metrics.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("Metrics server stopped", zap.Error(err))
		}
	}()
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	a.logger.Info("Serving metrics", zap.String("addr", srv.Addr))
}
