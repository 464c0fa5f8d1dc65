// Package store 提供 core 领域接口的基础设施实现。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	likes := store.NewInteractionStore(kv, "like")
//	recos := store.NewRecommendationStore(kv, "reco")
package store
