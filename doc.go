// Package estaterec 是房源推荐与语义搜索引擎。
//
// 设计要点：
//   - 协同过滤：交互日志 → 稀疏交互矩阵 → 基于用户的 u2i 推荐，结果整体写入推荐缓存
//   - 新用户走热门兜底，老用户读缓存；like/unlike 后异步刷新，同一时刻只有一次计算
//   - 语义搜索与统计：查询与房源描述的句向量余弦相似度
package estaterec

import (
	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/service"
)

// 轻量 facade：便于直接 import "estaterec" 使用核心类型。
type (
	Service        = service.Service
	Recommendation = service.Recommendation
	Listing        = core.Listing
	Interaction    = core.Interaction
)

const (
	SourcePopular       = service.SourcePopular
	SourceCollaborative = service.SourceCollaborative
)
