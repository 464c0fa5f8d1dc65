package search

import (
	"context"
	"math"
	"time"

	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/metrics"
)

// DefaultThreshold 是参与统计的最低相似度（严格大于）
const DefaultThreshold = 0.1

// AllRegions 是汇总所有地区的统计行。
// 目录中地区恰好为该值的房源与汇总行冲突，按无地区处理。
const AllRegions = "All"

// DefaultFields 是默认统计的目录列
var DefaultFields = []string{core.FieldPrice, core.FieldLandsize, core.FieldRooms}

// Summary 是一组数值的描述统计，无法定义的值为 nil（JSON null）。
// 所有值保留两位小数。
type Summary struct {
	Mean *float64 `json:"mean"`
	Max  *float64 `json:"max"`
	Min  *float64 `json:"min"`
	Std  *float64 `json:"std"`
}

// Stats 是 字段 -> 地区 -> 统计，每个字段额外包含 AllRegions 行
type Stats map[string]map[string]Summary

// Aggregator 按地区统计与查询相关的房源
type Aggregator struct {
	ranker    *Ranker
	threshold float64
	fields    []string
}

// AggregatorOption 配置 Aggregator
type AggregatorOption func(*Aggregator)

// WithThreshold 设置相似度阈值
func WithThreshold(t float64) AggregatorOption {
	return func(a *Aggregator) { a.threshold = t }
}

// WithFields 设置统计的字段
func WithFields(fields ...string) AggregatorOption {
	return func(a *Aggregator) { a.fields = fields }
}

// NewAggregator 创建统计器
func NewAggregator(ranker *Ranker, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		ranker:    ranker,
		threshold: DefaultThreshold,
		fields:    DefaultFields,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate 对相似度高于阈值的房源，按字段、地区计算 mean/max/min/std
func (a *Aggregator) Aggregate(ctx context.Context, query string, corpus []core.Listing) (Stats, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.WithLabelValues("stats").Observe(time.Since(start).Seconds()) }()

	scored, err := a.ranker.Score(ctx, query, corpus)
	if err != nil {
		return nil, err
	}
	if n := countRegion(scored, AllRegions); n > 0 {
		a.ranker.logger.Warn().
			Int("listings", n).
			Str("region", AllRegions).
			Msg("region name collides with the summary row, listings excluded from stats")
	}
	return Group(scored, a.threshold, a.fields), nil
}

// Group 是 Aggregate 的纯计算部分。
// 没有地区、地区为 AllRegions 或该字段缺失的房源不参与该字段的统计；
// 没有任何取值的字段输出空 map。
func Group(scored []Scored, threshold float64, fields []string) Stats {
	out := make(Stats, len(fields))
	for _, field := range fields {
		byRegion := make(map[string][]float64)
		var all []float64
		for _, s := range scored {
			if s.Score <= threshold {
				continue
			}
			region := s.Listing.Region
			if region == "" || region == AllRegions {
				continue
			}
			v, ok := s.Listing.Field(field)
			if !ok {
				continue
			}
			byRegion[region] = append(byRegion[region], v)
			all = append(all, v)
		}

		rows := make(map[string]Summary, len(byRegion)+1)
		for region, values := range byRegion {
			rows[region] = Summarize(values)
		}
		if len(all) > 0 {
			rows[AllRegions] = Summarize(all)
		}
		out[field] = rows
	}
	return out
}

func countRegion(scored []Scored, region string) int {
	n := 0
	for _, s := range scored {
		if s.Listing.Region == region {
			n++
		}
	}
	return n
}

// Summarize 计算描述统计；Std 为样本标准差（n-1），n < 2 时为 nil
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}
	sum, lo, hi := 0.0, values[0], values[0]
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(n)
	s := Summary{
		Mean: round2(mean),
		Max:  round2(hi),
		Min:  round2(lo),
	}
	if n >= 2 {
		var sq float64
		for _, v := range values {
			d := v - mean
			sq += d * d
		}
		s.Std = round2(math.Sqrt(sq / float64(n-1)))
	}
	return s
}

func round2(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
