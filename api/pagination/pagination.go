// Package pagination defines the offset/limit query contract shared
// by all list endpoints.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Query is the pagination window requested by the caller.
type Query struct {
	Start int `form:"start"`
	Limit int `form:"limit"`
}

// Result wraps one page of data with the unpaged total.
type Result struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
}

// FromContext parses the pagination query parameters, applying the
// default and maximum window sizes.
func FromContext(c *gin.Context) *Query {
	start, _ := strconv.Atoi(c.Query("start"))
	if start < 0 {
		start = 0
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return &Query{
		Start: start,
		Limit: limit,
	}
}
