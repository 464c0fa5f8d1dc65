package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rushteam/estaterec/core"
)

// MemoryListingStore 是只读的内存房源目录。
// 进程启动时加载一次，之后所有请求共享同一份不可变数据，无需加锁。
type MemoryListingStore struct {
	byID   map[string]core.Listing
	sorted []core.Listing
}

// NewMemoryListingStore 从房源列表构建目录，id 重复时返回错误。
func NewMemoryListingStore(listings []core.Listing) (*MemoryListingStore, error) {
	byID := make(map[string]core.Listing, len(listings))
	for _, l := range listings {
		if l.ID == "" {
			return nil, core.InvalidInput(core.ModuleStore, "listing without id")
		}
		if _, dup := byID[l.ID]; dup {
			return nil, core.InvalidInput(core.ModuleStore, "duplicate listing id %q", l.ID)
		}
		byID[l.ID] = l
	}
	sorted := make([]core.Listing, 0, len(byID))
	for _, l := range byID {
		sorted = append(sorted, l)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &MemoryListingStore{byID: byID, sorted: sorted}, nil
}

var _ core.ListingStore = (*MemoryListingStore)(nil)

func (s *MemoryListingStore) Get(ctx context.Context, id string) (core.Listing, error) {
	l, ok := s.byID[id]
	if !ok {
		return core.Listing{}, core.ErrListingNotFound
	}
	return l, nil
}

func (s *MemoryListingStore) BatchGet(ctx context.Context, ids []string) ([]core.Listing, error) {
	out := make([]core.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// List 返回内部切片本身，调用方不得修改。
func (s *MemoryListingStore) List(ctx context.Context) ([]core.Listing, error) {
	return s.sorted, nil
}

// Len 返回房源数量
func (s *MemoryListingStore) Len() int { return len(s.sorted) }

// LoadListingsFile 从 CSV 文件加载房源目录。
func LoadListingsFile(path string) ([]core.Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadListingsCSV(f)
}

// LoadListingsCSV 解析房源 CSV。必须包含 id 与 description 列；
// Regionname / Price / Landsize / Rooms 映射到专门字段，其余非空表头的列进入 Attrs。
func LoadListingsCSV(r io.Reader) ([]core.Listing, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if h != "" {
			cols[h] = i
		}
	}
	for _, required := range []string{core.FieldID, core.FieldDescription} {
		if _, ok := cols[required]; !ok {
			return nil, core.InvalidInput(core.ModuleStore, "catalog missing column %q", required)
		}
	}

	var out []core.Listing
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		out = append(out, parseListing(header, rec))
	}
	return out, nil
}

func parseListing(header, rec []string) core.Listing {
	l := core.Listing{Attrs: make(map[string]string)}
	for i, name := range header {
		if name == "" || i >= len(rec) {
			continue
		}
		val := rec[i]
		switch name {
		case core.FieldID:
			l.ID = strings.TrimSpace(val)
		case core.FieldDescription:
			l.Description = val
		case core.FieldRegion:
			l.Region = strings.TrimSpace(val)
		case core.FieldPrice:
			l.Price = numberPtr(val)
		case core.FieldLandsize:
			l.Landsize = numberPtr(val)
		case core.FieldRooms:
			l.Rooms = numberPtr(val)
		default:
			l.Attrs[name] = val
		}
	}
	return l
}

func numberPtr(raw string) *float64 {
	v, ok := core.ParseNumber(raw)
	if !ok {
		return nil
	}
	return &v
}
