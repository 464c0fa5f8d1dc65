package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rushteam/estaterec/core"
)

// RecommendationStore 把推荐快照整体序列化到单个 key：{KeyPrefix}:snapshot。
// 单 key 覆盖写保证旧快照被整体替换，不会与新快照混合。
type RecommendationStore struct {
	store     core.Store
	KeyPrefix string
}

// NewRecommendationStore 创建推荐快照存储，keyPrefix 为空时使用 "reco"。
func NewRecommendationStore(s core.Store, keyPrefix string) *RecommendationStore {
	if keyPrefix == "" {
		keyPrefix = "reco"
	}
	return &RecommendationStore{store: s, KeyPrefix: keyPrefix}
}

var _ core.RecommendationStore = (*RecommendationStore)(nil)

func (a *RecommendationStore) key() string {
	return a.KeyPrefix + ":snapshot"
}

func (a *RecommendationStore) Save(ctx context.Context, entries []core.RecommendationEntry) error {
	if entries == nil {
		entries = []core.RecommendationEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	if err := a.store.Set(ctx, a.key(), data); err != nil {
		return fmt.Errorf("save recommendations: %w", err)
	}
	return nil
}

// Load 读取快照；从未保存过时返回空切片。
func (a *RecommendationStore) Load(ctx context.Context) ([]core.RecommendationEntry, error) {
	data, err := a.store.Get(ctx, a.key())
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []core.RecommendationEntry{}, nil
		}
		return nil, fmt.Errorf("load recommendations: %w", err)
	}

	var entries []core.RecommendationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return entries, nil
}
