package pkg

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 50
)

// Page 页码分页参数
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// NewPage 规范化分页参数
func NewPage(page, limit int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Window 对内存切片做分页，返回 [start, end)
func (p Page) Window(n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func (p Page) Of(total int64) Pagination {
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		pages++
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
