package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Response wraps a paginated API response.
type Response struct {
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	pages := total / p.Limit
	if total%p.Limit != 0 {
		pages++
	}
	return &Response{
		Data:       data,
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
	}
}
