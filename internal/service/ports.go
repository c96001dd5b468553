package service

import (
	"context"
	"net/http"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/payment/lunar"
	"github.com/dujiao-next/lunar-gateway/internal/repository"
)

// RemoteProcessorClient 远端支付处理方的最小能力集
type RemoteProcessorClient interface {
	CreateIntent(ctx context.Context, req *lunar.IntentRequest) (string, error)
	FetchIntent(ctx context.Context, intentID string) (*lunar.Transaction, error)
	Capture(ctx context.Context, intentID string, amount lunar.Amount) (*lunar.OperationResult, error)
	Cancel(ctx context.Context, intentID string, amount lunar.Amount) (*lunar.OperationResult, error)
	Refund(ctx context.Context, intentID string, amount lunar.Amount) (*lunar.OperationResult, error)
}

// ProcessorClientFactory 按网关配置与模式创建客户端
type ProcessorClientFactory func(cfg *lunar.Config, testMode bool) (RemoteProcessorClient, error)

// NewLunarClientFactory 使用 Lunar HTTP 客户端的工厂
func NewLunarClientFactory(baseURL string, timeout time.Duration, httpClient *http.Client) ProcessorClientFactory {
	return func(cfg *lunar.Config, testMode bool) (RemoteProcessorClient, error) {
		if cfg == nil {
			return nil, lunar.ErrConfigInvalid
		}
		client, err := lunar.NewClient(lunar.ClientOptions{
			BaseURL:    baseURL,
			AppKey:     cfg.AppKey,
			TestMode:   testMode,
			Timeout:    timeout,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// OrderStore 订单读取与意图 ID 存取
type OrderStore interface {
	GetByID(id uint) (*models.Order, error)
	ListItems(orderID uint) ([]models.OrderItem, error)
	GetRemoteIntentID(orderID uint) (string, error)
	SetRemoteIntentID(orderID uint, intentID string) error
}

// PaymentStore 支付记录存取
type PaymentStore interface {
	CreateIfAbsent(payment *models.Payment) (*models.Payment, bool, error)
	GetByID(id uint) (*models.Payment, error)
	GetByRemoteID(remoteID string) (*models.Payment, error)
	ListByOrderID(orderID uint) ([]models.Payment, error)
	ListAdmin(filter repository.PaymentListFilter) ([]models.Payment, int64, error)
	SaveTransition(payment *models.Payment) error
}

// GatewayStore 网关配置读取
type GatewayStore interface {
	GetByID(id uint) (*models.PaymentGateway, error)
}

// PaymentMethodStore 已保存支付方式
type PaymentMethodStore interface {
	GetByID(id uint) (*models.PaymentMethod, error)
	Delete(id uint) error
}

// Locker 分布式互斥
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// PaymentEventPublisher 支付状态变化事件
type PaymentEventPublisher interface {
	PublishPaymentStateChanged(payment *models.Payment) error
}

// OperationRecorder 记录支付操作结果
type OperationRecorder interface {
	Observe(operation, result string)
}

type noopLocker struct{}

func (noopLocker) WithLock(_ context.Context, _ string, _ time.Duration, fn func() error) error {
	return fn()
}

type noopPublisher struct{}

func (noopPublisher) PublishPaymentStateChanged(*models.Payment) error { return nil }

type noopRecorder struct{}

func (noopRecorder) Observe(string, string) {}
