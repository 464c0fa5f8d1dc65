// Package cache 保存每个用户最近一次计算出的协同过滤推荐结果，并负责异步刷新。
//
// 并发模型：单写者 + copy-and-swap。刷新在私有 map 上完成计算，
// 通过 atomic.Pointer 一次性替换整份快照；读者永远不会看到半新半旧的缓存，
// 读写之间除了指针交换外没有任何阻塞。
package cache

import (
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rushteam/estaterec/core"
)

// snapshot 一旦发布即不可变
type snapshot struct {
	entries map[string][]string
	version uint64
	seeded  bool
	builtAt time.Time
}

// Cache 是推荐结果缓存
type Cache struct {
	cur atomic.Pointer[snapshot]
}

// New 创建空缓存
func New() *Cache {
	c := &Cache{}
	c.cur.Store(&snapshot{entries: map[string][]string{}})
	return c
}

func newSnapshot(entries []core.RecommendationEntry, version uint64) *snapshot {
	m := make(map[string][]string, len(entries))
	for _, e := range entries {
		m[e.UserID] = slices.Clone(e.PropertyIDs)
	}
	return &snapshot{entries: m, version: version, builtAt: time.Now()}
}

// Replace 用 entries 整体替换缓存，不在 entries 中的用户被丢弃。
func (c *Cache) Replace(entries []core.RecommendationEntry) {
	next := newSnapshot(entries, 0)
	for {
		old := c.cur.Load()
		next.version = old.version + 1
		if c.cur.CompareAndSwap(old, next) {
			return
		}
	}
}

// Seed 仅在缓存从未被 Replace 或 Seed 过时写入（用于启动预热），返回是否写入。
// 已经完成过一次刷新时，持久化的旧快照不会覆盖更新的结果。
func (c *Cache) Seed(entries []core.RecommendationEntry) bool {
	old := c.cur.Load()
	if old.version != 0 || old.seeded {
		return false
	}
	next := newSnapshot(entries, 0)
	next.seeded = true
	return c.cur.CompareAndSwap(old, next)
}

// Get 返回用户的推荐房源 id；用户不在缓存中时第二个返回值为 false。
func (c *Cache) Get(userID string) ([]string, bool) {
	return c.View().Get(userID)
}

// Len 返回缓存中的用户数
func (c *Cache) Len() int { return len(c.cur.Load().entries) }

// UpdatedAt 返回当前快照的构建时间，空缓存返回零值
func (c *Cache) UpdatedAt() time.Time {
	s := c.cur.Load()
	if s.version == 0 && !s.seeded {
		return time.Time{}
	}
	return s.builtAt
}

// View 返回当前快照的只读视图；同一个 View 上的多次读取彼此一致。
func (c *Cache) View() View { return View{s: c.cur.Load()} }

// View 是某一时刻的缓存快照
type View struct {
	s *snapshot
}

// Get 返回副本，调用方可以随意修改
func (v View) Get(userID string) ([]string, bool) {
	ids, ok := v.s.entries[userID]
	if !ok {
		return nil, false
	}
	return slices.Clone(ids), true
}

// Version 每次 Replace 递增
func (v View) Version() uint64 { return v.s.version }

// Entries 返回快照中的全部条目（按用户 id 升序）
func (v View) Entries() []core.RecommendationEntry {
	out := make([]core.RecommendationEntry, 0, len(v.s.entries))
	for u, ids := range v.s.entries {
		out = append(out, core.RecommendationEntry{UserID: u, PropertyIDs: slices.Clone(ids)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
