// Package search 实现基于句向量的房源语义搜索与统计。
package search

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/embedding"
	"github.com/rushteam/estaterec/metrics"
	"github.com/rushteam/estaterec/pkg/dsl"
)

// DefaultTopK 是搜索默认返回的房源数量
const DefaultTopK = 10

// Scored 是带相似度的房源
type Scored struct {
	Listing core.Listing
	Score   float64
}

// Ranker 对查询文本与房源描述做向量相似度排序。
//
// 每次查询对所有房源描述向量化（并发度由 workers 限制）；
// 配置 ListingCache 后，描述未变化的房源复用缓存向量。
type Ranker struct {
	embedder core.Embedder
	cache    *embedding.ListingCache
	workers  int
	logger   zerolog.Logger
}

// RankerOption 配置 Ranker
type RankerOption func(*Ranker)

// WithWorkers 设置房源向量化的并发数，默认 GOMAXPROCS
func WithWorkers(n int) RankerOption {
	return func(r *Ranker) { r.workers = n }
}

// WithListingCache 启用房源向量缓存
func WithListingCache(c *embedding.ListingCache) RankerOption {
	return func(r *Ranker) { r.cache = c }
}

// WithLogger 设置 logger
func WithLogger(l zerolog.Logger) RankerOption {
	return func(r *Ranker) { r.logger = l }
}

// NewRanker 创建语义排序器
func NewRanker(embedder core.Embedder, opts ...RankerOption) *Ranker {
	r := &Ranker{
		embedder: embedder,
		workers:  runtime.GOMAXPROCS(0),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	return r
}

// Search 返回与查询最相似的 topK 个房源，相似度降序，相同时按 id 升序。
// topK <= 0 时使用 DefaultTopK。
func (r *Ranker) Search(ctx context.Context, query string, corpus []core.Listing, topK int) ([]core.Listing, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.WithLabelValues("search").Observe(time.Since(start).Seconds()) }()

	if topK <= 0 {
		topK = DefaultTopK
	}
	scored, err := r.Score(ctx, query, corpus)
	if err != nil {
		return nil, err
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}
	out := make([]core.Listing, len(scored))
	for i, s := range scored {
		out[i] = s.Listing
	}
	return out, nil
}

// Score 计算查询与每个房源的余弦相似度，结果已排序。
// 空查询返回 INVALID_INPUT，向量化失败返回 UNAVAILABLE。
func (r *Ranker) Score(ctx context.Context, query string, corpus []core.Listing) ([]Scored, error) {
	if strings.TrimSpace(query) == "" {
		return nil, core.InvalidInput(core.ModuleSearch, "query text is required")
	}
	q, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, core.Unavailable(core.ModuleSearch, err, "embed query")
	}

	scored := make([]Scored, len(corpus))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, l := range corpus {
		i, l := i, l
		g.Go(func() error {
			vec, err := r.embedListing(gctx, l)
			if err != nil {
				return core.Unavailable(core.ModuleSearch, err, "embed listing "+l.ID)
			}
			scored[i] = Scored{Listing: l, Score: core.CosineSimilarity(q, vec)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error().Err(err).Int("corpus", len(corpus)).Msg("score listings failed")
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Listing.ID < scored[j].Listing.ID
	})
	return scored, nil
}

func (r *Ranker) embedListing(ctx context.Context, l core.Listing) ([]float32, error) {
	if r.cache != nil {
		return r.cache.Embed(ctx, l)
	}
	return r.embedder.Embed(ctx, l.Description)
}

// Filter 返回满足表达式的房源，f 为 nil 时原样返回
func Filter(corpus []core.Listing, f *dsl.Filter) []core.Listing {
	if f == nil {
		return corpus
	}
	out := make([]core.Listing, 0, len(corpus))
	for _, l := range corpus {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}
