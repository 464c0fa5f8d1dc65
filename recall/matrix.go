package recall

import (
	"sort"

	"github.com/rushteam/estaterec/core"
)

// Matrix 是稀疏的二值用户×房源交互矩阵：行为用户，列为房源，1 表示存在交互。
// 每次刷新时从交互日志重建，不持久化。
type Matrix struct {
	rows  map[string]map[string]struct{}
	users []string // 升序
	items []string // 升序
}

// BuildMatrix 从交互日志构建矩阵，按 (user, property) 去重。
func BuildMatrix(interactions []core.Interaction) *Matrix {
	m := &Matrix{rows: make(map[string]map[string]struct{})}
	itemSet := make(map[string]struct{})

	for _, in := range interactions {
		row := m.rows[in.UserID]
		if row == nil {
			row = make(map[string]struct{})
			m.rows[in.UserID] = row
		}
		row[in.PropertyID] = struct{}{}
		itemSet[in.PropertyID] = struct{}{}
	}

	m.users = make([]string, 0, len(m.rows))
	for u := range m.rows {
		m.users = append(m.users, u)
	}
	sort.Strings(m.users)

	m.items = make([]string, 0, len(itemSet))
	for it := range itemSet {
		m.items = append(m.items, it)
	}
	sort.Strings(m.items)
	return m
}

// Users 返回所有行（用户 id 升序），调用方不得修改。
func (m *Matrix) Users() []string { return m.users }

// Items 返回所有列（房源 id 升序），调用方不得修改。
func (m *Matrix) Items() []string { return m.items }

// Has 返回单元格的值
func (m *Matrix) Has(userID, propertyID string) bool {
	_, ok := m.rows[userID][propertyID]
	return ok
}

// Row 返回用户 like 过的房源 id（升序）；未知用户返回 nil。
func (m *Matrix) Row(userID string) []string {
	row := m.rows[userID]
	if len(row) == 0 {
		return nil
	}
	out := make([]string, 0, len(row))
	for it := range row {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

// Dot 返回两行的点积，即共同 like 的房源数。遍历较短的一行。
func (m *Matrix) Dot(u, v string) int {
	a, b := m.rows[u], m.rows[v]
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for it := range a {
		if _, ok := b[it]; ok {
			n++
		}
	}
	return n
}

// NNZ 返回非零单元格数量
func (m *Matrix) NNZ() int {
	n := 0
	for _, row := range m.rows {
		n += len(row)
	}
	return n
}
