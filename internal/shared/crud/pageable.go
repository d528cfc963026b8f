package crud

import "strings"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pageable is a 0-based page request with an optional sort.
type Pageable struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
}

// Normalize clamps page and size into their valid ranges and lowercases the direction.
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
	p.SortDir = strings.ToLower(strings.TrimSpace(p.SortDir))
	if p.SortDir != "desc" {
		p.SortDir = "asc"
	}
	return p
}

func (p Pageable) Offset() int { return p.Page * p.Size }

func (p Pageable) Desc() bool { return p.SortDir == "desc" }

// Page is the list envelope returned by list and search endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// NewPage converts items with fn and computes page metadata.
func NewPage[E any, T any](items []E, total int64, p Pageable, fn func(*E) T) *Page[T] {
	content := make([]T, 0, len(items))
	for i := range items {
		content = append(content, fn(&items[i]))
	}
	totalPages := 0
	if p.Size > 0 {
		totalPages = int((total + int64(p.Size) - 1) / int64(p.Size))
	}
	return &Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Page:          p.Page,
		Size:          p.Size,
		First:         p.Page == 0,
		Last:          p.Page >= totalPages-1,
	}
}

// Unpaged wraps a full listing in a single page.
func Unpaged[E any, T any](items []E, fn func(*E) T) *Page[T] {
	size := len(items)
	page := NewPage(items, int64(size), Pageable{Size: size}, fn)
	if size == 0 {
		page.Last = true
	}
	return page
}
