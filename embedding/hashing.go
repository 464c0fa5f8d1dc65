// Package embedding 提供 core.Embedder 的实现：本地特征哈希、OpenAI 兼容服务、熔断包装与房源向量缓存。
package embedding

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/rushteam/estaterec/core"
)

// DefaultHashingDimensions 与 all-MiniLM-L6-v2 的输出维度一致
const DefaultHashingDimensions = 384

// Hashing 是确定性的特征哈希向量化：小写分词，每个词（以及相邻词对）
// 按 xxhash 落到固定维度的桶上并带符号累加，最后 L2 归一化。
// 不依赖任何模型文件，用于离线运行与测试；语义能力仅限于词汇重叠。
type Hashing struct {
	dims int
}

// NewHashing 创建哈希向量化器，dims <= 0 时使用 DefaultHashingDimensions
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &Hashing{dims: dims}
}

var _ core.Embedder = (*Hashing)(nil)

func (h *Hashing) Dimensions() int { return h.dims }

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, h.dims)
	tokens := Tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, h.dims)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *Hashing) add(vec []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)
	idx := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// Tokenize 按非字母数字切分并转小写
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
