package service

import (
	"fmt"
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/config"
	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/payment/lunar"
	"github.com/dujiao-next/lunar-gateway/internal/repository"
)

// GatewayService 网关配置同步与展示
type GatewayService struct {
	gatewayRepo repository.PaymentGatewayRepository
}

// NewGatewayService 创建网关服务
func NewGatewayService(gatewayRepo repository.PaymentGatewayRepository) *GatewayService {
	return &GatewayService{gatewayRepo: gatewayRepo}
}

// GatewayView 对付款人展示的网关信息
type GatewayView struct {
	ID          uint   `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	MethodCode  string `json:"method_code"`
	Description string `json:"description"`
}

// SyncFromConfig 将配置文件中的网关定义写入数据库，配置非法时整体拒绝
func (s *GatewayService) SyncFromConfig(seeds []config.GatewaySeed) (int, error) {
	gateways := make([]models.PaymentGateway, 0, len(seeds))
	for _, seed := range seeds {
		code := strings.TrimSpace(seed.Code)
		if code == "" {
			return 0, newGatewayError(ErrConfiguration, "", "gateway code is required", nil)
		}
		methodCode := constants.PaymentMethodCode(strings.TrimSpace(seed.MethodCode))
		if methodCode == "" {
			methodCode = constants.PaymentMethodCard
		}
		if !methodCode.Valid() {
			return 0, newGatewayError(ErrConfiguration, "", fmt.Sprintf("gateway %s: unsupported payment method %s", code, methodCode), nil)
		}
		cfg, err := lunar.ParseConfig(seed.Config)
		if err != nil {
			return 0, newGatewayError(ErrConfiguration, "", "gateway "+code+" config invalid", err)
		}
		if err := lunar.ValidateConfig(cfg); err != nil {
			return 0, newGatewayError(ErrConfiguration, "", "gateway "+code+" config invalid", err)
		}
		if methodCode == constants.PaymentMethodMobilePay && cfg.ConfigurationID == "" {
			return 0, newGatewayError(ErrConfiguration, "", "gateway "+code+": MobilePay configuration id is required", nil)
		}
		name := strings.TrimSpace(seed.Name)
		if name == "" {
			name = "Lunar " + methodCode.Label()
		}
		gateways = append(gateways, models.PaymentGateway{
			Code:       code,
			Name:       name,
			MethodCode: string(methodCode),
			ConfigJSON: models.JSON(seed.Config),
			IsActive:   seed.Active,
		})
	}

	for i := range gateways {
		if err := s.gatewayRepo.Upsert(&gateways[i]); err != nil {
			return i, err
		}
		paymentLogger("gateway_code", gateways[i].Code, "gateway_id", gateways[i].ID, "active", gateways[i].IsActive).
			Infow("payment_gateway_synced")
	}
	return len(gateways), nil
}

// ListActiveGateways 启用的网关及其展示文案
func (s *GatewayService) ListActiveGateways() ([]GatewayView, error) {
	gateways, err := s.gatewayRepo.ListActive()
	if err != nil {
		return nil, err
	}
	views := make([]GatewayView, 0, len(gateways))
	for _, gateway := range gateways {
		var cfg *lunar.Config
		if parsed, err := lunar.ParseConfig(gateway.ConfigJSON); err == nil {
			cfg = parsed
		}
		methodCode := constants.PaymentMethodCode(gateway.MethodCode)
		views = append(views, GatewayView{
			ID:          gateway.ID,
			Code:        gateway.Code,
			Name:        gateway.Name,
			MethodCode:  gateway.MethodCode,
			Description: GatewayDescription(cfg, methodCode),
		})
	}
	return views, nil
}
