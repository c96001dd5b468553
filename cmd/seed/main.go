package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/authz"
	"github.com/dujiao-next/lunar-gateway/internal/config"
	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/logger"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/repository"
	"github.com/dujiao-next/lunar-gateway/internal/service"

	"github.com/google/uuid"
)

func main() {
	var (
		adminID  uint
		username string
		role     string
	)
	flag.UintVar(&adminID, "admin-id", 1, "后台管理员 ID")
	flag.StringVar(&username, "admin-name", "operator", "后台管理员名称")
	flag.StringVar(&role, "role", authz.RolePaymentOperator, "授予的角色")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 网关：优先使用配置中的定义，否则写入演示网关
	gatewayRepo := repository.NewPaymentGatewayRepository(models.DB)
	gatewayService := service.NewGatewayService(gatewayRepo)
	seeds := cfg.Gateways
	if len(seeds) == 0 {
		seeds = []config.GatewaySeed{
			{
				Code:       "lunar_card",
				Name:       "Lunar Card",
				MethodCode: string(constants.PaymentMethodCard),
				Active:     true,
				Config: map[string]interface{}{
					"app_key":      "demo-app-key",
					"public_key":   "demo-public-key",
					"capture_mode": "delayed",
				},
			},
			{
				Code:       "lunar_mobilepay",
				Name:       "Lunar MobilePay",
				MethodCode: string(constants.PaymentMethodMobilePay),
				Active:     true,
				Config: map[string]interface{}{
					"app_key":          "demo-app-key",
					"public_key":       "demo-public-key",
					"configuration_id": "demo-configuration",
					"capture_mode":     "instant",
				},
			},
		}
	}
	count, err := gatewayService.SyncFromConfig(seeds)
	if err != nil {
		stdLog.Fatalf("Failed to sync gateways: %v", err)
	}
	gateway, err := gatewayRepo.GetByCode(seeds[0].Code)
	if err != nil || gateway == nil {
		stdLog.Fatalf("Failed to load gateway %s: %v", seeds[0].Code, err)
	}

	// 演示订单
	orderRepo := repository.NewOrderRepository(models.DB)
	order := &models.Order{
		OrderNo:       "DEMO-" + strings.ToUpper(uuid.NewString()[:8]),
		Status:        constants.OrderStatusPendingPayment,
		GatewayID:     gateway.ID,
		Currency:      "DKK",
		TotalAmount:   models.MustMoney("249.00"),
		CustomerEmail: "buyer@example.com",
		ClientIP:      "127.0.0.1",
		Billing: models.BillingProfile{
			GivenName:    "Jens",
			FamilyName:   "Hansen",
			PostalCode:   "8000",
			CountryCode:  "DK",
			Locality:     "Aarhus",
			AddressLine1: "Søndergade 1",
		},
	}
	items := []models.OrderItem{
		{ProductID: 1, Title: "Ceramic Mug", Quantity: 2, UnitPrice: models.MustMoney("74.50"), TotalPrice: models.MustMoney("149.00")},
		{ProductID: 2, Title: "Tea Sampler", Quantity: 1, UnitPrice: models.MustMoney("100.00"), TotalPrice: models.MustMoney("100.00")},
	}
	if err := orderRepo.Create(order, items); err != nil {
		stdLog.Fatalf("Failed to create demo order: %v", err)
	}

	// 后台角色与令牌
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}
	if err := authzService.SetAdminRoles(adminID, []string{role}); err != nil {
		stdLog.Fatalf("Failed to assign admin role: %v", err)
	}
	token, expiresAt, err := service.NewAdminTokenService(cfg.JWT.SecretKey, cfg.JWT.ExpireHours).GenerateJWT(adminID, username)
	if err != nil {
		stdLog.Fatalf("Failed to issue admin token: %v", err)
	}

	base := strings.TrimRight(cfg.Checkout.PublicBaseURL, "/")
	fmt.Println("\n✅ Demo data created successfully!")
	fmt.Println("Summary:")
	fmt.Printf("- %d gateways synced\n", count)
	fmt.Printf("- Order #%d (%s) %s %s\n", order.ID, order.OrderNo, order.TotalAmount.String(), order.Currency)
	fmt.Printf("- Checkout: %s/api/v1/payments/lunar/orders/%d/redirect\n", base, order.ID)
	fmt.Printf("- Admin %d (%s) token, expires %s:\n  %s\n", adminID, role, expiresAt.Format("2006-01-02 15:04"), token)
}
