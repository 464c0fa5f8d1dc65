package recall

import "sort"

// DefaultTopK 是每个用户预计算的推荐数量
const DefaultTopK = 10

// UserBasedCF 是基于用户的协同过滤（User-based Collaborative Filtering, u2i）。
//
// 核心思想："兴趣相似的用户，喜欢相似的物品"
//
// 算法流程：
//  1. 相似度 = 二值交互向量的点积（共同 like 的房源数），不做归一化，
//     交互多的用户不会因此被惩罚
//  2. 候选用户按相似度降序，相同相似度按用户 id 升序，排除自己
//  3. 依次遍历候选用户 like 过的房源（房源 id 升序），追加目标用户未 like、
//     且尚未入选的房源，直到凑满 K 个或候选用户耗尽
//  4. 候选耗尽时直接返回不足 K 个的结果，不做填充
//
// 复杂度：O(U) 次点积 + O(U log U) 排序，没有 ANN 索引，适合中等规模用户数。
type UserBasedCF struct{}

func (r *UserBasedCF) Name() string {
	return "recall.u2i"
}

// Neighbor 是一个候选用户及其与目标用户的相似度
type Neighbor struct {
	UserID     string
	Similarity int
}

// SimilarUsers 返回除目标用户外的所有用户，按相似度降序、用户 id 升序。
// 相似度为 0 的用户同样保留，排在最后。
func SimilarUsers(userID string, m *Matrix) []Neighbor {
	users := m.Users()
	out := make([]Neighbor, 0, len(users))
	for _, other := range users {
		if other == userID {
			continue
		}
		out = append(out, Neighbor{UserID: other, Similarity: m.Dot(userID, other)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Recommend 为 userID 生成至多 k 个新颖房源（目标用户未 like 过）。
// k <= 0、未知用户时返回空结果，候选不足时返回更短的结果。
func (r *UserBasedCF) Recommend(userID string, m *Matrix, k int) []string {
	if k <= 0 || m == nil || len(m.Row(userID)) == 0 {
		return []string{}
	}

	recs := make([]string, 0, k)
	seen := make(map[string]struct{}, k)
	for _, nb := range SimilarUsers(userID, m) {
		for _, it := range m.Row(nb.UserID) {
			if m.Has(userID, it) {
				continue
			}
			if _, ok := seen[it]; ok {
				continue
			}
			seen[it] = struct{}{}
			recs = append(recs, it)
			if len(recs) >= k {
				return recs
			}
		}
	}
	return recs
}
