package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// parseUserID reads a required positive user id
func parseUserID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("user_id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user_id '%s'", raw)
	}
	return id, nil
}

// -----------------------------------------------------------------------------

// queryInt reads an integer query parameter clamped to [lo, hi]
func queryInt(c *gin.Context, key string, def, lo, hi int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return min(max(v, lo), hi)
}
