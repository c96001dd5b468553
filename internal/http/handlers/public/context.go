package public

import (
	handlershared "github.com/dujiao-next/lunar-gateway/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func parseOrderID(c *gin.Context) (uint, bool) {
	return handlershared.ParseUintParam(c, "id")
}
