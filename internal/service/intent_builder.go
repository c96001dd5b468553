package service

import (
	"strconv"
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/payment/lunar"
)

// IntentOptions 构造支付意图时的请求级参数
type IntentOptions struct {
	RedirectURL string
	MethodCode  constants.PaymentMethodCode
	TestMode    bool
	SiteName    string
}

// BuildIntentRequest 根据订单与网关配置组装支付意图请求，不做任何 I/O
func BuildIntentRequest(order *models.Order, items []models.OrderItem, cfg *lunar.Config, opts IntentOptions) (*lunar.IntentRequest, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if cfg == nil || strings.TrimSpace(cfg.AppKey) == "" || strings.TrimSpace(cfg.PublicKey) == "" {
		return nil, newGatewayError(ErrConfiguration, "", "Lunar app key and public key are required", nil)
	}
	if !opts.MethodCode.Valid() {
		return nil, newGatewayError(ErrConfiguration, "", "unsupported payment method: "+string(opts.MethodCode), nil)
	}
	if opts.MethodCode == constants.PaymentMethodMobilePay && strings.TrimSpace(cfg.ConfigurationID) == "" {
		return nil, newGatewayError(ErrConfiguration, "", "MobilePay configuration id is required", nil)
	}

	currency := strings.ToUpper(strings.TrimSpace(order.Currency))
	req := &lunar.IntentRequest{
		Integration: lunar.Integration{
			Key:  cfg.PublicKey,
			Name: shopTitle(cfg, opts.SiteName),
			Logo: cfg.LogoURL,
		},
		Amount: lunar.Amount{
			Currency: currency,
			Decimal:  order.TotalAmount.String(),
		},
		Custom: lunar.Custom{
			OrderID:  order.OrderNo,
			Products: buildIntentProducts(items),
			Customer: lunar.Customer{
				Email:   order.CustomerEmail,
				IP:      order.ClientIP,
				Name:    order.Billing.FullName(),
				Address: order.Billing.FormattedAddress(),
			},
			Platform:           lunar.VersionTag{Name: constants.PlatformName, Version: constants.PlatformVersion},
			Ecommerce:          lunar.VersionTag{Name: constants.EcommerceName, Version: constants.EcommerceVersion},
			LunarPluginVersion: lunar.PluginVersion{Version: constants.LunarPluginVersion},
		},
		RedirectURL:            opts.RedirectURL,
		PreferredPaymentMethod: string(opts.MethodCode),
	}
	if strings.TrimSpace(req.Custom.OrderID) == "" {
		req.Custom.OrderID = strconv.FormatUint(uint64(order.ID), 10)
	}
	if cfg.ConfigurationID != "" {
		req.MobilePayConfiguration = &lunar.MobilePayConfiguration{
			ConfigurationID: cfg.ConfigurationID,
			Logo:            cfg.LogoURL,
		}
	}
	if opts.TestMode {
		req.Test = lunar.SandboxTestPayload(currency)
	}
	return req, nil
}

// GatewayDescription 网关对付款人展示的说明，未配置时按支付方式给出默认文案
func GatewayDescription(cfg *lunar.Config, methodCode constants.PaymentMethodCode) string {
	if cfg != nil && strings.TrimSpace(cfg.Description) != "" {
		return strings.TrimSpace(cfg.Description)
	}
	return "Secure payment with " + methodCode.Label() + " via © Lunar"
}

func shopTitle(cfg *lunar.Config, siteName string) string {
	if title := strings.TrimSpace(cfg.ShopTitle); title != "" {
		return title
	}
	if siteName = strings.TrimSpace(siteName); siteName != "" {
		return siteName
	}
	return constants.DefaultSiteName
}

func buildIntentProducts(items []models.OrderItem) []lunar.Product {
	products := make([]lunar.Product, 0, len(items))
	for _, item := range items {
		products = append(products, lunar.Product{
			ID:       strconv.FormatUint(uint64(item.ID), 10),
			Name:     item.Title,
			Quantity: item.Quantity,
		})
	}
	return products
}
