package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sessionscrape/models"
)

// APIKeyContextKey is where an authenticated request's key is stored.
const APIKeyContextKey = "api_key"

// RejectFunc writes the body for a request a guard refuses. The guard aborts
// the chain after calling it.
type RejectFunc func(c *gin.Context, status int, detail models.ErrorDetail)

// RejectJSON answers in the /api/v1 response shape.
func RejectJSON(c *gin.Context, status int, detail models.ErrorDetail) {
	c.JSON(status, models.ScrapeResponse{Error: &detail})
}

// RejectLegacy answers in the {error} shape of POST /scrape.
func RejectLegacy(c *gin.Context, status int, detail models.ErrorDetail) {
	c.JSON(status, models.LegacyErrorResponse{Error: detail.Message})
}

// KeySet is the set of accepted API keys.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet, skipping empty keys.
func NewKeySet(keys []string) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// Guard returns API-key authentication middleware.
//
// Supports two header styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// An empty set lets every request through.
func (s KeySet) Guard(reject RejectFunc) gin.HandlerFunc {
	if len(s) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			reject(c, http.StatusUnauthorized, models.ErrorDetail{
				Code:    models.ErrCodeUnauthorized,
				Message: "missing API key: provide X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}
		if _, ok := s[key]; !ok {
			reject(c, http.StatusUnauthorized, models.ErrorDetail{
				Code:    models.ErrCodeUnauthorized,
				Message: "invalid API key",
			})
			c.Abort()
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
