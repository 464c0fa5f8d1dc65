package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/metrics"
	"github.com/rushteam/estaterec/recall"
)

const refreshKey = "refresh"

// DefaultRefreshTimeout 是单次刷新的超时时间
const DefaultRefreshTimeout = 5 * time.Minute

// Refresher 重新计算所有用户的协同过滤推荐并整体替换 Cache。
//
// 约定：
//   - 同一时刻至多一次计算在进行；进行中收到的 Refresh/Trigger 直接复用这次结果
//   - 刷新读取开始时刻的交互日志，之后写入的交互等下一次刷新才可见
//   - 刷新没有外部取消，超时或失败时旧缓存保持不变
type Refresher struct {
	interactions core.InteractionStore
	cache        *Cache
	cf           *recall.UserBasedCF
	persist      core.RecommendationStore
	logger       zerolog.Logger
	timeout      time.Duration
	topK         int

	group singleflight.Group

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// RefresherOption 配置 Refresher
type RefresherOption func(*Refresher)

// WithTopK 设置每个用户的推荐数量，默认 recall.DefaultTopK，<= 0 时忽略
func WithTopK(k int) RefresherOption {
	return func(r *Refresher) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithTimeout 设置单次刷新的超时时间
func WithTimeout(d time.Duration) RefresherOption {
	return func(r *Refresher) { r.timeout = d }
}

// WithPersistence 每次刷新成功后把快照写入 store，启动时可用 Warm 预热
func WithPersistence(store core.RecommendationStore) RefresherOption {
	return func(r *Refresher) { r.persist = store }
}

// WithLogger 设置 logger
func WithLogger(l zerolog.Logger) RefresherOption {
	return func(r *Refresher) { r.logger = l }
}

// NewRefresher 创建刷新器
func NewRefresher(interactions core.InteractionStore, c *Cache, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		interactions: interactions,
		cache:        c,
		cf:           &recall.UserBasedCF{},
		logger:       zerolog.Nop(),
		timeout:      DefaultRefreshTimeout,
		topK:         recall.DefaultTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "refresher").Logger()
	return r
}

// Cache 返回被刷新的缓存
func (r *Refresher) Cache() *Cache { return r.cache }

// Refresh 同步刷新；已有刷新在进行时等待并返回那一次的结果。
func (r *Refresher) Refresh(ctx context.Context) error {
	_, err, shared := r.group.Do(refreshKey, func() (any, error) {
		return nil, r.run(ctx)
	})
	if shared {
		metrics.RefreshCoalesced.Inc()
	}
	return err
}

// Trigger 在后台发起一次刷新并立即返回，不阻塞调用方。
// Close 之后的 Trigger 被忽略。
func (r *Refresher) Trigger() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		// 错误已在 run 中记录
		_ = r.Refresh(context.Background())
	}()
}

// Warm 从持久化快照预热缓存；缓存已经被刷新过时不做任何事。
func (r *Refresher) Warm(ctx context.Context) error {
	if r.persist == nil {
		return nil
	}
	entries, err := r.persist.Load(ctx)
	if err != nil {
		return core.Unavailable(core.ModuleStore, err, "load recommendation snapshot")
	}
	if r.cache.Seed(entries) {
		metrics.CachedUsers.Set(float64(r.cache.Len()))
		r.logger.Info().Int("users", len(entries)).Msg("recommendation cache warmed from snapshot")
	}
	return nil
}

// Close 停止接受新的 Trigger，并等待后台刷新结束。
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Refresher) run(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	r.logger.Debug().Msg("refresh started")

	all, err := r.interactions.All(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		r.logger.Error().Err(err).Msg("refresh failed, keeping previous cache")
		return core.Unavailable(core.ModuleStore, err, "read interactions")
	}

	m := recall.BuildMatrix(all)
	users := m.Users()
	entries := make([]core.RecommendationEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, core.RecommendationEntry{
			UserID:      u,
			PropertyIDs: r.cf.Recommend(u, m, r.topK),
		})
	}

	r.cache.Replace(entries)
	metrics.CachedUsers.Set(float64(len(entries)))

	if r.persist != nil {
		if err := r.persist.Save(ctx, entries); err != nil {
			r.logger.Warn().Err(err).Msg("persist recommendation snapshot failed")
		}
	}

	elapsed := time.Since(start)
	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.RefreshDuration.Observe(elapsed.Seconds())
	r.logger.Info().
		Int("users", len(users)).
		Int("listings", len(m.Items())).
		Int("interactions", m.NNZ()).
		Dur("duration", elapsed).
		Msg("refresh complete")
	return nil
}
