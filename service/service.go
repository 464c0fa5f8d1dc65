// Package service 编排推荐引擎的请求流程：like/unlike 写入交互并异步刷新推荐，
// 推荐请求按用户是否有交互历史分流到热门或协同过滤，搜索与统计基于启动时加载的房源目录。
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rushteam/estaterec/cache"
	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/metrics"
	"github.com/rushteam/estaterec/pkg/dsl"
	"github.com/rushteam/estaterec/recall"
	"github.com/rushteam/estaterec/search"
)

// 推荐来源
const (
	SourcePopular       = "popular"
	SourceCollaborative = "collaborative"
)

const (
	idRule    = "required,max=128,printascii"
	queryRule = "required,max=512"
)

// Recommendation 是一次推荐请求的结果
type Recommendation struct {
	Source   string         `json:"source"`
	Pending  bool           `json:"pending"` // 老用户的推荐尚未计算，已触发刷新
	Listings []core.Listing `json:"listings"`
}

// Health 是服务的运行状态
type Health struct {
	Status         string     `json:"status"` // ok / degraded
	CachedUsers    int        `json:"cached_users"`
	CacheUpdatedAt *time.Time `json:"cache_updated_at"` // 尚未刷新过时为 null
	Embedder       string     `json:"embedder,omitempty"` // 向量化熔断器状态
}

// BreakerState 报告熔断器状态，由 embedding.Breaker 实现
type BreakerState interface {
	State() string
}

// Deps 是 Service 的依赖
type Deps struct {
	Interactions core.InteractionStore `validate:"required"`
	Listings     core.ListingStore     `validate:"required"`
	Refresher    *cache.Refresher      `validate:"required"`
	Ranker       *search.Ranker        `validate:"required"`
	Aggregator   *search.Aggregator    `validate:"required"`
}

// Service 是推荐引擎的门面
type Service struct {
	interactions core.InteractionStore
	listings     core.ListingStore
	refresher    *cache.Refresher
	hot          *recall.Hot
	ranker       *search.Ranker
	aggregator   *search.Aggregator

	// corpus 在 New 时加载一次，之后只读
	corpus []core.Listing

	breaker BreakerState

	popularN   int
	searchTopK int
	validate   *validator.Validate
	logger     zerolog.Logger
}

// Option 配置 Service
type Option func(*Service)

// WithPopularN 设置新用户返回的热门房源数
func WithPopularN(n int) Option {
	return func(s *Service) { s.popularN = n }
}

// WithSearchTopK 设置搜索返回的房源数
func WithSearchTopK(k int) Option {
	return func(s *Service) { s.searchTopK = k }
}

// WithBreaker 让 Health 报告向量化熔断器状态
func WithBreaker(b BreakerState) Option {
	return func(s *Service) { s.breaker = b }
}

// WithLogger 设置 logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New 创建 Service 并加载房源目录
func New(ctx context.Context, deps Deps, opts ...Option) (*Service, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(deps); err != nil {
		return nil, fmt.Errorf("service deps: %w", err)
	}

	s := &Service{
		interactions: deps.Interactions,
		listings:     deps.Listings,
		refresher:    deps.Refresher,
		ranker:       deps.Ranker,
		aggregator:   deps.Aggregator,
		popularN:     recall.DefaultPopularN,
		searchTopK:   search.DefaultTopK,
		validate:     v,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "service").Logger()
	s.hot = &recall.Hot{Interactions: s.interactions, Listings: s.listings, Logger: s.logger}

	corpus, err := s.listings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listing corpus: %w", err)
	}
	s.corpus = corpus
	s.logger.Info().Int("listings", len(corpus)).Msg("listing corpus loaded")
	return s, nil
}

func (s *Service) check(field, value, rule string) error {
	if err := s.validate.Var(value, rule); err != nil {
		return core.InvalidInput(core.ModuleService, "invalid %s: %v", field, err)
	}
	return nil
}

// Like 记录用户喜欢某个房源。重复 like 返回 false，不是错误。
// 新交互写入后异步刷新推荐。
func (s *Service) Like(ctx context.Context, userID, propertyID string) (bool, error) {
	if err := s.check("user_id", userID, idRule); err != nil {
		return false, err
	}
	if err := s.check("property_id", propertyID, idRule); err != nil {
		return false, err
	}
	if _, err := s.listings.Get(ctx, propertyID); err != nil {
		return false, err
	}

	created, err := s.interactions.Create(ctx, userID, propertyID)
	if err != nil {
		metrics.Interactions.WithLabelValues("create", "error").Inc()
		return false, err
	}
	if !created {
		metrics.Interactions.WithLabelValues("create", "duplicate").Inc()
		return false, nil
	}
	metrics.Interactions.WithLabelValues("create", "ok").Inc()
	s.refresher.Trigger()
	return true, nil
}

// Unlike 删除交互，不存在时同样返回 true
func (s *Service) Unlike(ctx context.Context, userID, propertyID string) (bool, error) {
	if err := s.check("user_id", userID, idRule); err != nil {
		return false, err
	}
	if err := s.check("property_id", propertyID, idRule); err != nil {
		return false, err
	}

	ok, err := s.interactions.Delete(ctx, userID, propertyID)
	if err != nil {
		metrics.Interactions.WithLabelValues("delete", "error").Inc()
		return false, err
	}
	metrics.Interactions.WithLabelValues("delete", "ok").Inc()
	s.refresher.Trigger()
	return ok, nil
}

// Liked 返回用户 like 过的房源 id（升序）
func (s *Service) Liked(ctx context.Context, userID string) ([]string, error) {
	if err := s.check("user_id", userID, idRule); err != nil {
		return nil, err
	}
	return s.interactions.ListByUser(ctx, userID)
}

// Bookmarked 返回用户 like 过的房源详情
func (s *Service) Bookmarked(ctx context.Context, userID string) ([]core.Listing, error) {
	ids, err := s.Liked(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, ids)
}

// Recommend 没有交互历史的用户返回热门房源，否则返回缓存的协同过滤结果。
// 老用户还没有缓存时返回空结果并标记 Pending。
func (s *Service) Recommend(ctx context.Context, userID string) (*Recommendation, error) {
	if err := s.check("user_id", userID, idRule); err != nil {
		return nil, err
	}
	known, err := s.interactions.HasAny(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !known {
		listings, err := s.hot.TopPopular(ctx, s.popularN)
		if err != nil {
			return nil, err
		}
		metrics.Recommendations.WithLabelValues(SourcePopular).Inc()
		return &Recommendation{Source: SourcePopular, Listings: listings}, nil
	}

	metrics.Recommendations.WithLabelValues(SourceCollaborative).Inc()
	ids, ok := s.refresher.Cache().Get(userID)
	if !ok {
		s.refresher.Trigger()
		return &Recommendation{Source: SourceCollaborative, Pending: true, Listings: []core.Listing{}}, nil
	}
	listings, err := s.join(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &Recommendation{Source: SourceCollaborative, Listings: listings}, nil
}

// RequestRefresh 异步刷新推荐缓存
func (s *Service) RequestRefresh() {
	s.refresher.Trigger()
}

// Property 返回房源详情，不存在时返回 NOT_FOUND
func (s *Service) Property(ctx context.Context, propertyID string) (core.Listing, error) {
	if err := s.check("property_id", propertyID, idRule); err != nil {
		return core.Listing{}, err
	}
	return s.listings.Get(ctx, propertyID)
}

// Search 语义搜索，filter 为可选的 CEL 表达式
func (s *Service) Search(ctx context.Context, query, filter string) ([]core.Listing, error) {
	if err := s.check("text", query, queryRule); err != nil {
		return nil, err
	}
	corpus := s.corpus
	if filter != "" {
		f, err := dsl.Compile(filter)
		if err != nil {
			return nil, err
		}
		corpus = search.Filter(corpus, f)
	}
	return s.ranker.Search(ctx, query, corpus, s.searchTopK)
}

// Stats 统计与查询相关的房源
func (s *Service) Stats(ctx context.Context, query string) (search.Stats, error) {
	if err := s.check("text", query, queryRule); err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(ctx, query, s.corpus)
}

// Health 返回推荐缓存与向量化的状态；熔断器打开时搜索不可用，状态为 degraded
func (s *Service) Health() Health {
	c := s.refresher.Cache()
	h := Health{Status: "ok", CachedUsers: c.Len()}
	if at := c.UpdatedAt(); !at.IsZero() {
		h.CacheUpdatedAt = &at
	}
	if s.breaker != nil {
		h.Embedder = s.breaker.State()
		if h.Embedder == "open" {
			h.Status = "degraded"
		}
	}
	return h
}

// Close 等待进行中的后台刷新结束
func (s *Service) Close() {
	s.refresher.Close()
}

func (s *Service) join(ctx context.Context, ids []string) ([]core.Listing, error) {
	listings, err := s.listings.BatchGet(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(listings) < len(ids) {
		s.logger.Warn().
			Int("ids", len(ids)).
			Int("joined", len(listings)).
			Msg("listings missing from catalog")
	}
	return listings, nil
}
