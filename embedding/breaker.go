package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/metrics"
)

// BreakerConfig 是熔断配置
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // 半开状态允许的探测请求数
	Interval         time.Duration // 关闭状态下计数清零周期
	Timeout          time.Duration // 打开后多久进入半开
	FailureThreshold uint32        // 连续失败多少次打开
}

// DefaultBreakerConfig 返回默认熔断配置
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker 用熔断器包装 Embedder：上游连续失败后快速失败，返回 UNAVAILABLE，
// 避免每个搜索请求都卡在不可用的模型服务上。
type Breaker struct {
	next core.Embedder
	cb   *gobreaker.CircuitBreaker[[]float32]
}

// NewBreaker 创建熔断包装
func NewBreaker(next core.Embedder, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("embedding circuit breaker state changed")
		},
		// 调用方的输入错误与取消不计入上游失败
		IsSuccessful: func(err error) bool {
			return err == nil ||
				core.IsInvalidInput(err) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[[]float32](settings)}
}

var _ core.Embedder = (*Breaker)(nil)

func (b *Breaker) Dimensions() int { return b.next.Dimensions() }

// State 返回熔断器状态（closed / half-open / open）
func (b *Breaker) State() string { return b.cb.State().String() }

func (b *Breaker) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := b.cb.Execute(func() ([]float32, error) {
		return b.next.Embed(ctx, text)
	})
	if err == nil {
		return vec, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.EmbeddingErrors.WithLabelValues("breaker_open").Inc()
		return nil, core.WrapDomainError(core.ModuleEmbedding, core.ErrorCodeUnavailable, err, "embedding service unavailable")
	}
	if core.IsInvalidInput(err) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	metrics.EmbeddingErrors.WithLabelValues("upstream").Inc()
	return nil, core.Unavailable(core.ModuleEmbedding, err, "embed text")
}
