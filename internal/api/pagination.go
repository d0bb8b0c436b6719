package api

import (
	"strconv" // String conversion

	"github.com/gin-gonic/gin" // Gin web framework
)

const (
	defaultPage     = 1   // First page
	defaultPageSize = 20  // Entries per page when none is requested
	maxPageSize     = 100 // Upper bound on page_size
)

// pagination reads page and page_size, falling back to defaults for
// missing or out-of-range values
func pagination(c *gin.Context) (int, int) {
	page := defaultPage         // Default page
	pageSize := defaultPageSize // Default page size
	// If page exists in query
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// If page_size exists in query
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= maxPageSize {
			pageSize = v // Set page size if valid
		}
	}
	return page, pageSize
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
