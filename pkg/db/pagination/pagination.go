package pagination

// Params is the page/limit query pair every list endpoint binds.
type Params struct {
	Page  int `form:"page,default=1" validate:"gte=1"`
	Limit int `form:"limit,default=10" validate:"gte=1,lte=100"`
}

// Normalize clamps out-of-range values instead of rejecting them, matching
// the storefront's lenient query handling.
func (p *Params) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta is the pagination block returned alongside list data.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func NewMeta(total int64, p Params) *Meta {
	pages := int(total) / p.Limit
	if int(total)%p.Limit != 0 {
		pages++
	}
	return &Meta{
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: pages,
	}
}
