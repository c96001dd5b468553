package router

import (
	"context"
	"net/http"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/cache"
	"github.com/dujiao-next/lunar-gateway/internal/logger"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/provider"

	"github.com/gin-gonic/gin"
)

const (
	healthPath         = "/health"
	healthCheckTimeout = 2 * time.Second

	componentOK       = "ok"
	componentDown     = "down"
	componentDisabled = "disabled"
)

// healthHandler 探活：数据库与 Redis 任一不可用返回 503；Redis 未启用不影响结果
func healthHandler(container *provider.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		components := gin.H{
			"database": databaseHealth(ctx, container),
			"redis":    redisHealth(ctx),
		}
		status, code := componentOK, http.StatusOK
		for _, state := range components {
			if state == componentDown {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "components": components})
	}
}

func databaseHealth(ctx context.Context, container *provider.Container) string {
	if container == nil || container.DB == nil {
		return componentDisabled
	}
	if err := models.Ping(ctx, container.DB); err != nil {
		logger.Warnw("health_database_down", "error", err)
		return componentDown
	}
	return componentOK
}

func redisHealth(ctx context.Context) string {
	enabled, err := cache.Ping(ctx)
	switch {
	case !enabled:
		return componentDisabled
	case err != nil:
		logger.Warnw("health_redis_down", "error", err)
		return componentDown
	default:
		return componentOK
	}
}
