package domain

// Gallery pagination bounds. Requests outside these bounds are clamped, never
// rejected.
const (
	GalleryDefaultLimit = 10
	GalleryMaxLimit     = 50
)

// GalleryQuery holds normalized pagination parameters.
type GalleryQuery struct {
	Page  int
	Limit int
}

// NormalizeGalleryQuery clamps page to >= 1 and limit to [1, GalleryMaxLimit].
// A non-positive limit falls back to the default page size.
func NormalizeGalleryQuery(page, limit int) GalleryQuery {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = GalleryDefaultLimit
	}
	if limit > GalleryMaxLimit {
		limit = GalleryMaxLimit
	}
	return GalleryQuery{Page: page, Limit: limit}
}

// Offset returns the row offset for the normalized query.
func (q GalleryQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// GalleryPagination carries derived page metadata for gallery responses.
type GalleryPagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewGalleryPagination computes page metadata for a total row count.
func NewGalleryPagination(q GalleryQuery, total int) GalleryPagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}
	return GalleryPagination{
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    q.Page < totalPages,
		HasPrev:    q.Page > 1,
	}
}
