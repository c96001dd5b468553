package shared

import (
	"strconv"

	"github.com/dujiao-next/lunar-gateway/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ContextKeyAdminID 认证中间件写入的管理员 ID。
const ContextKeyAdminID = "admin_id"

// AdminIDFromContext 读取当前管理员 ID，失败时已写出响应。
func AdminIDFromContext(c *gin.Context) (uint, bool) {
	raw, exists := c.Get(ContextKeyAdminID)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}
	id, known := contextUint(raw)
	if !known {
		RespondError(c, response.CodeInternal, "error.admin_id_type_invalid", nil)
		return 0, false
	}
	if id == 0 {
		RespondError(c, response.CodeUnauthorized, "error.admin_id_invalid", nil)
		return 0, false
	}
	return id, true
}

// contextUint 兼容 JWT 数字声明与字符串形式，负数视为 0。
func contextUint(raw interface{}) (uint, bool) {
	switch v := raw.(type) {
	case uint:
		return v, true
	case uint64:
		return uint(v), true
	case int:
		if v < 0 {
			return 0, true
		}
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, true
		}
		return uint(v), true
	case float64:
		if v < 0 {
			return 0, true
		}
		return uint(v), true
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, true
		}
		return uint(parsed), true
	default:
		return 0, false
	}
}
