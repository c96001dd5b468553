package admin

import (
	"github.com/dujiao-next/lunar-gateway/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetAuthzMe 获取当前管理员的角色
func (h *Handler) GetAuthzMe(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"admin_id": adminID,
		"roles":    roles,
	})
}

// ListGateways 列出已启用的网关
func (h *Handler) ListGateways(c *gin.Context) {
	gateways, err := h.GatewayService.ListActiveGateways()
	if err != nil {
		respondError(c, response.CodeInternal, "error.gateway_fetch_failed", err)
		return
	}
	response.Success(c, gateways)
}
