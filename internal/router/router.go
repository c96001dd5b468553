package router

import (
	"fmt"
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/cache"
	"github.com/dujiao-next/lunar-gateway/internal/config"
	adminhandlers "github.com/dujiao-next/lunar-gateway/internal/http/handlers/admin"
	publichandlers "github.com/dujiao-next/lunar-gateway/internal/http/handlers/public"
	"github.com/dujiao-next/lunar-gateway/internal/http/response"
	"github.com/dujiao-next/lunar-gateway/internal/logger"
	"github.com/dujiao-next/lunar-gateway/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "lunar"
	}
	checkoutRule := RateLimitRule{
		Name:          "checkout",
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.RateLimit.WindowSeconds,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		BlockSeconds:  cfg.RateLimit.BlockSeconds,
	}
	checkoutLimiter := RateLimitMiddleware(cache.Client(), checkoutRule, KeyByIPAndParam("id"), c.Metrics)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log, healthPath, metricsPath(cfg)))
	r.Use(MetricsMiddleware(c.Metrics))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 付款人跳转与回跳
		lunar := apiV1.Group("/payments/lunar")
		{
			lunar.GET("/gateways", publicHandler.ListGateways)
			lunar.GET("/orders/:id/redirect", checkoutLimiter, publicHandler.RedirectToCheckout)
			lunar.GET("/orders/:id/return", checkoutLimiter, publicHandler.CompleteCheckoutReturn)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		authorized := admin.Use(JWTAuthMiddleware(c.AdminTokenService), AdminRBACMiddleware(c.AuthzService))
		{
			// 权限
			authorized.GET("/authz/me", adminHandler.GetAuthzMe)
			authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})

			// 网关
			authorized.GET("/gateways", adminHandler.ListGateways)

			// 支付记录与后续操作
			authorized.GET("/payments", adminHandler.GetAdminPayments)
			authorized.GET("/payments/:id", adminHandler.GetAdminPayment)
			authorized.POST("/payments/:id/capture", adminHandler.CaptureAdminPayment)
			authorized.POST("/payments/:id/void", adminHandler.VoidAdminPayment)
			authorized.POST("/payments/:id/refund", adminHandler.RefundAdminPayment)
			authorized.GET("/orders/:id/payments", adminHandler.GetAdminOrderPayments)
			authorized.DELETE("/payment-methods/:id", adminHandler.DeleteAdminPaymentMethod)
		}
	}

	// 健康检查
	r.GET(healthPath, healthHandler(c))

	// Prometheus 指标
	if cfg.Metrics.Enabled && c.Metrics != nil {
		r.GET(metricsPath(cfg), gin.WrapH(c.Metrics.Handler()))
	}

	return r
}

func metricsPath(cfg *config.Config) string {
	if path := strings.TrimSpace(cfg.Metrics.Path); path != "" {
		return path
	}
	return "/metrics"
}
