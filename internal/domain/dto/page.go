package dto

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page into a usable range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

type PageResult[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

func NewPageResult[T any](items []T, total int64, page Page) PageResult[T] {
	page = page.Normalize()
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items: items,
		Total: total,
		Page:  page.Page,
		Limit: page.Limit,
	}
}
