package core

import "context"

// Interaction 是一条用户对房源的正向信号（like）。
// 同一 (UserID, PropertyID) 至多存在一条。
type Interaction struct {
	UserID     string `json:"user_id"`
	PropertyID string `json:"property_id"`
}

// InteractionStore 是交互日志的领域接口。
//
// 语义：
//   - Create 遇到重复返回 (false, nil)，不是错误，也不会覆盖
//   - Delete 幂等，之前不存在同样返回 true
//   - 只有后端故障才返回 error
type InteractionStore interface {
	Create(ctx context.Context, userID, propertyID string) (bool, error)
	Delete(ctx context.Context, userID, propertyID string) (bool, error)

	// ListByUser 返回用户 like 过的房源 id（升序）
	ListByUser(ctx context.Context, userID string) ([]string, error)

	// HasAny 判断用户是否有任何交互（新用户 / 老用户）
	HasAny(ctx context.Context, userID string) (bool, error)

	// All 返回完整交互日志，按 (UserID, PropertyID) 升序
	All(ctx context.Context) ([]Interaction, error)
}

// RecommendationEntry 是单个用户的预计算推荐结果，只保存 id，读取时再关联房源。
type RecommendationEntry struct {
	UserID      string   `json:"user_id"`
	PropertyIDs []string `json:"property_id"`
}

// RecommendationStore 持久化推荐快照，用于进程重启后的预热。
// Save 必须整体替换旧快照（不合并）。
type RecommendationStore interface {
	Save(ctx context.Context, entries []RecommendationEntry) error
	Load(ctx context.Context) ([]RecommendationEntry, error)
}
