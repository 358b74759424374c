package shared

import (
	"github.com/dukani-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// Context keys set by the admin auth middleware
const (
	ContextKeyAdminID   = "admin_id"
	ContextKeyUsername  = "username"
	ContextKeyIsSuper   = "admin_is_super"
	ContextKeyRequestID = "request_id"
)

// GetContextUint reads a uint set by middleware and responds on failure
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, key+" is invalid", nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, key+" is invalid", nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, key+" has an unexpected type", nil)
		return 0, false
	}
}
