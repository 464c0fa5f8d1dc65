package core

import (
	"context"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// 目录中有专门字段的列名
const (
	FieldID          = "id"
	FieldDescription = "description"
	FieldRegion      = "Regionname"
	FieldPrice       = "Price"
	FieldLandsize    = "Landsize"
	FieldRooms       = "Rooms"
)

// Listing 是房源目录中的一条只读记录。
// 数值字段缺失时为 nil；其余目录列原样保存在 Attrs 中。
type Listing struct {
	ID          string
	Description string
	Region      string
	Price       *float64
	Landsize    *float64
	Rooms       *float64
	Attrs       map[string]string
}

// Field 按目录列名读取数值字段，支持 Price / Landsize / Rooms 以及 Attrs 中可解析为数字的列。
func (l Listing) Field(name string) (float64, bool) {
	var p *float64
	switch name {
	case FieldPrice:
		p = l.Price
	case FieldLandsize:
		p = l.Landsize
	case FieldRooms:
		p = l.Rooms
	default:
		raw, ok := l.Attrs[name]
		if !ok {
			return 0, false
		}
		return ParseNumber(raw)
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// MarshalJSON 以目录列为 key 平铺输出，缺失的数值字段输出 null。
func (l Listing) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Attrs)+6)
	for k, v := range l.Attrs {
		out[k] = v
	}
	out[FieldID] = l.ID
	out[FieldDescription] = l.Description
	out[FieldRegion] = l.Region
	out[FieldPrice] = l.Price
	out[FieldLandsize] = l.Landsize
	out[FieldRooms] = l.Rooms
	return json.Marshal(out)
}

// ParseNumber 解析目录中的数值单元格；空串、nan 视为缺失。
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ListingStore 是房源目录的领域接口（只读）。
//
// 实现：
//   - store.MemoryListingStore：进程启动时一次性加载，之后只读
type ListingStore interface {
	// Get 读取单个房源，不存在时返回 NOT_FOUND
	Get(ctx context.Context, id string) (Listing, error)

	// BatchGet 按 ids 顺序返回存在的房源，缺失的 id 被跳过
	BatchGet(ctx context.Context, ids []string) ([]Listing, error)

	// List 返回全部房源（按 id 升序）
	List(ctx context.Context) ([]Listing, error)
}

// ErrListingNotFound 表示房源 id 不存在
var ErrListingNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "listing not found")
