package core

import (
	"context"
	"math"
)

// Embedder 是文本向量化的领域接口，对应预训练的句向量模型。
//
// 约定：
//   - 相同输入得到相同向量，无副作用
//   - 输出维度固定为 Dimensions()
//   - 调用可能较贵（模型推理 / 远程服务），失败时返回 UNAVAILABLE
//
// 实现：
//   - embedding.Hashing：本地特征哈希，用于离线/测试
//   - embedding.OpenAI：任意 OpenAI 兼容的 embedding 服务
//   - embedding.Breaker：熔断包装
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// CosineSimilarity 计算两个向量的余弦相似度，范围 [-1, 1]。
// 维度不一致或存在零向量时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
