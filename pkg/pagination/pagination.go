package pagination

import (
	"strconv"

	"einvoice/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
	// MaxPage keeps the SQL offset far from integer overflow.
	MaxPage = 100000
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse reads page and limit (or page_size) from the query. Out of range
// values are clamped rather than rejected.
func Parse(c *gin.Context) Params {
	page := queryInt(c, DefaultPage, "page")
	limit := queryInt(c, DefaultLimit, "limit", "page_size")

	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Result wraps one page of items in the list envelope.
func (p Params) Result(items interface{}, total int64) response.Page {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return response.Page{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: pages,
	}
}

func queryInt(c *gin.Context, fallback int, keys ...string) int {
	for _, key := range keys {
		if raw, ok := c.GetQuery(key); ok {
			if n, err := strconv.Atoi(raw); err == nil {
				return n
			}
			return fallback
		}
	}
	return fallback
}
