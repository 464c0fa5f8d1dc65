package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/estaterec/cache"
	"github.com/rushteam/estaterec/config"
	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/embedding"
	"github.com/rushteam/estaterec/search"
	"github.com/rushteam/estaterec/service"
	"github.com/rushteam/estaterec/store"
)

// app 持有进程级、只初始化一次的组件
type app struct {
	kv        core.KeyValueStore
	refresher *cache.Refresher
	svc       *service.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	kv, err := newKeyValueStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a := &app{kv: kv}

	listings, err := store.LoadListingsFile(cfg.Catalog.Path)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	catalog, err := store.NewMemoryListingStore(listings)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("index catalog: %w", err)
	}

	embedder, err := newEmbedder(cfg.Embedding, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	interactions := store.NewInteractionStore(kv, cfg.Store.InteractionPrefix)
	a.refresher = cache.NewRefresher(interactions, cache.New(),
		cache.WithTopK(cfg.Recommend.TopK),
		cache.WithTimeout(cfg.Recommend.RefreshTimeout),
		cache.WithPersistence(store.NewRecommendationStore(kv, cfg.Store.SnapshotPrefix)),
		cache.WithLogger(logger),
	)

	rankerOpts := []search.RankerOption{search.WithLogger(logger)}
	if cfg.Search.Workers > 0 {
		rankerOpts = append(rankerOpts, search.WithWorkers(cfg.Search.Workers))
	}
	if cfg.Search.CacheEmbeddings {
		rankerOpts = append(rankerOpts, search.WithListingCache(embedding.NewListingCache(embedder)))
	}
	ranker := search.NewRanker(embedder, rankerOpts...)
	aggregator := search.NewAggregator(ranker,
		search.WithThreshold(cfg.Search.StatsThreshold),
		search.WithFields(cfg.Search.StatsFields...),
	)

	svcOpts := []service.Option{
		service.WithPopularN(cfg.Recommend.PopularN),
		service.WithSearchTopK(cfg.Search.TopK),
		service.WithLogger(logger),
	}
	if b, ok := embedder.(*embedding.Breaker); ok {
		svcOpts = append(svcOpts, service.WithBreaker(b))
	}
	a.svc, err = service.New(ctx, service.Deps{
		Interactions: interactions,
		Listings:     catalog,
		Refresher:    a.refresher,
		Ranker:       ranker,
		Aggregator:   aggregator,
	}, svcOpts...)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.svc != nil {
		a.svc.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
}

func newKeyValueStore(ctx context.Context, cfg config.StoreConfig) (core.KeyValueStore, error) {
	switch cfg.Backend {
	case "redis":
		s, err := store.NewRedisStore(ctx, cfg.Addr, cfg.Password, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func newEmbedder(cfg config.EmbeddingConfig, logger zerolog.Logger) (core.Embedder, error) {
	var embedder core.Embedder
	switch cfg.Provider {
	case "openai":
		e, err := embedding.NewOpenAI(embedding.OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		embedder = e
	default:
		return embedding.NewHashing(cfg.Dimensions), nil
	}

	if !cfg.Breaker.Enabled {
		return embedder, nil
	}
	bc := embedding.DefaultBreakerConfig("embedding." + cfg.Provider)
	bc.FailureThreshold = cfg.Breaker.FailureThreshold
	if cfg.Breaker.Timeout > 0 {
		bc.Timeout = cfg.Breaker.Timeout
	}
	return embedding.NewBreaker(embedder, bc, logger), nil
}
