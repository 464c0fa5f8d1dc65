package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/estaterec/core"
)

// InteractionStore 是基于 core.KeyValueStore 集合操作的交互日志实现。
//
// Key 布局：
//
//	{KeyPrefix}:user:{userID} -> set(propertyID)
//	{KeyPrefix}:users         -> set(userID)，只增不减，All 时跳过空集合
//
// 唯一约束由 SAdd 的返回值保证：重复 like 不会覆盖，也不会产生第二条记录。
type InteractionStore struct {
	store     core.KeyValueStore
	KeyPrefix string
}

// NewInteractionStore 创建交互日志存储，keyPrefix 为空时使用 "like"。
func NewInteractionStore(s core.KeyValueStore, keyPrefix string) *InteractionStore {
	if keyPrefix == "" {
		keyPrefix = "like"
	}
	return &InteractionStore{store: s, KeyPrefix: keyPrefix}
}

var _ core.InteractionStore = (*InteractionStore)(nil)

func (a *InteractionStore) userKey(userID string) string {
	return a.KeyPrefix + ":user:" + userID
}

func (a *InteractionStore) usersKey() string {
	return a.KeyPrefix + ":users"
}

// Create 先写用户索引再写 like：索引写入幂等，失败重试不会留下未被索引的 like。
func (a *InteractionStore) Create(ctx context.Context, userID, propertyID string) (bool, error) {
	if _, err := a.store.SAdd(ctx, a.usersKey(), userID); err != nil {
		return false, fmt.Errorf("index user: %w", err)
	}
	added, err := a.store.SAdd(ctx, a.userKey(userID), propertyID)
	if err != nil {
		return false, fmt.Errorf("create interaction: %w", err)
	}
	return added, nil
}

func (a *InteractionStore) Delete(ctx context.Context, userID, propertyID string) (bool, error) {
	if _, err := a.store.SRem(ctx, a.userKey(userID), propertyID); err != nil {
		return false, fmt.Errorf("delete interaction: %w", err)
	}
	return true, nil
}

func (a *InteractionStore) ListByUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := a.store.SMembers(ctx, a.userKey(userID))
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *InteractionStore) HasAny(ctx context.Context, userID string) (bool, error) {
	n, err := a.store.SCard(ctx, a.userKey(userID))
	if err != nil {
		return false, fmt.Errorf("count interactions: %w", err)
	}
	return n > 0, nil
}

func (a *InteractionStore) All(ctx context.Context) ([]core.Interaction, error) {
	users, err := a.store.SMembers(ctx, a.usersKey())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.Strings(users)

	out := make([]core.Interaction, 0, len(users))
	for _, userID := range users {
		ids, err := a.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			out = append(out, core.Interaction{UserID: userID, PropertyID: id})
		}
	}
	return out, nil
}
