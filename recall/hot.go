package recall

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rushteam/estaterec/core"
)

// DefaultPopularN 是新用户默认返回的热门房源数量
const DefaultPopularN = 10

// Hot 是热门召回源：按全局交互次数给房源排序，只服务没有交互历史的新用户。
type Hot struct {
	Interactions core.InteractionStore
	Listings     core.ListingStore
	Logger       zerolog.Logger
}

func (r *Hot) Name() string { return "recall.hot" }

// TopPopular 返回交互次数最多的 n 个房源（次数降序，房源 id 升序），并关联房源详情。
// 目录中不存在的房源被跳过，由排名更靠后的房源补足；只有可关联的房源不足 n 个时结果才少于 n。
func (r *Hot) TopPopular(ctx context.Context, n int) ([]core.Listing, error) {
	if n <= 0 {
		n = DefaultPopularN
	}
	interactions, err := r.Interactions.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}

	ranked := RankPopular(interactions, 0)
	listings := make([]core.Listing, 0, n)
	missing := 0
	// 按 n 个一批关联，缺失的房源由下一批补足
	for start := 0; start < len(ranked) && len(listings) < n; start += n {
		batch := ranked[start:min(start+n, len(ranked))]
		joined, err := r.Listings.BatchGet(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("join listings: %w", err)
		}
		missing += len(batch) - len(joined)
		listings = append(listings, joined[:min(len(joined), n-len(listings))]...)
	}
	if missing > 0 {
		r.Logger.Warn().
			Int("missing", missing).
			Int("joined", len(listings)).
			Msg("popular listings missing from catalog")
	}
	return listings, nil
}

// PopularCount 是房源及其交互次数
type PopularCount struct {
	PropertyID string
	Count      int
}

// CountPopular 按房源统计交互次数，结果按次数降序、房源 id 升序。
// 相同 (user, property) 只计一次。
func CountPopular(interactions []core.Interaction) []PopularCount {
	seen := make(map[core.Interaction]struct{}, len(interactions))
	counts := make(map[string]int)
	for _, in := range interactions {
		if _, dup := seen[in]; dup {
			continue
		}
		seen[in] = struct{}{}
		counts[in.PropertyID]++
	}

	out := make([]PopularCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, PopularCount{PropertyID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].PropertyID < out[j].PropertyID
	})
	return out
}

// RankPopular 返回前 n 个热门房源 id
func RankPopular(interactions []core.Interaction, n int) []string {
	counts := CountPopular(interactions)
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	ids := make([]string, len(counts))
	for i, c := range counts {
		ids[i] = c.PropertyID
	}
	return ids
}
