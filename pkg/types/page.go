package types

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 2000
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortOrder is a single "field,direction" sort key
type SortOrder struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

func (o SortOrder) String() string {
	return o.Field + "," + string(o.Direction)
}

// Pageable describes which slice of a result set the caller wants
type Pageable struct {
	Page int         `json:"page"`
	Size int         `json:"size"`
	Sort []SortOrder `json:"sort,omitempty"`
}

// DefaultPageable returns the first page with the default size and no sort
func DefaultPageable() Pageable {
	return Pageable{Page: 0, Size: DefaultPageSize}
}

// Normalize clamps page and size into their allowed ranges
func (p Pageable) Normalize() Pageable {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	// Offset must stay representable
	if p.Page > math.MaxInt/p.Size {
		p.Page = math.MaxInt / p.Size
	}
	return p
}

// Offset is the number of rows skipped before this page
func (p Pageable) Offset() int {
	return p.Page * p.Size
}

// Validate rejects sort fields that are not sortable for kind
func (p Pageable) Validate(kind Kind) error {
	for _, o := range p.Sort {
		if !IsSortable(kind, o.Field) {
			return NewValidationError(kind, ErrKeySortInvalid, fmt.Sprintf("cannot sort by %q", o.Field))
		}
	}
	return nil
}

// ParseSort parses "field" or "field,asc|desc" values
func ParseSort(values []string) ([]SortOrder, error) {
	var orders []SortOrder
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		parts := strings.Split(v, ",")
		order := SortOrder{Field: strings.TrimSpace(parts[0]), Direction: SortAsc}
		if len(parts) > 1 {
			switch SortDirection(strings.ToLower(strings.TrimSpace(parts[1]))) {
			case SortAsc:
			case SortDesc:
				order.Direction = SortDesc
			default:
				return nil, fmt.Errorf("invalid sort direction %q", parts[1])
			}
		}
		if order.Field == "" {
			return nil, fmt.Errorf("invalid sort %q", v)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

var sortableFields = map[Kind][]string{
	KindFacility: {"id", "name"},
	KindRoom:     {"id", "room_number"},
	KindResident: {"id", "name", "phone_number", "email"},
}

// IsSortable reports whether field may be used as a sort key for kind
func IsSortable(kind Kind, field string) bool {
	for _, f := range sortableFields[kind] {
		if f == field {
			return true
		}
	}
	return false
}

// Page is one slice of a result set plus the total number of matches
type Page[T any] struct {
	Content  []T      `json:"content"`
	Total    int64    `json:"total"`
	Pageable Pageable `json:"pageable"`
}

// NewPage builds a page; content is never nil
func NewPage[T any](content []T, total int64, pageable Pageable) *Page[T] {
	if content == nil {
		content = []T{}
	}
	return &Page[T]{Content: content, Total: total, Pageable: pageable}
}

// TotalPages returns the number of pages at the current size
func (p *Page[T]) TotalPages() int {
	if p.Pageable.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Pageable.Size) - 1) / int64(p.Pageable.Size))
}
