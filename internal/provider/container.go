package provider

import (
	"github.com/dujiao-next/lunar-gateway/internal/authz"
	"github.com/dujiao-next/lunar-gateway/internal/cache"
	"github.com/dujiao-next/lunar-gateway/internal/config"
	"github.com/dujiao-next/lunar-gateway/internal/logger"
	"github.com/dujiao-next/lunar-gateway/internal/metrics"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/queue"
	"github.com/dujiao-next/lunar-gateway/internal/repository"
	"github.com/dujiao-next/lunar-gateway/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	Metrics     *metrics.Recorder
	Locker      service.Locker

	// Repositories
	OrderRepo   repository.OrderRepository
	PaymentRepo repository.PaymentRepository
	GatewayRepo repository.PaymentGatewayRepository
	MethodRepo  repository.PaymentMethodRepository

	// Services
	AuthzService        *authz.Service
	AdminTokenService   *service.AdminTokenService
	GatewayService      *service.GatewayService
	OrderSummaryService *service.OrderSummaryService
	PaymentService      *service.PaymentService
	CheckoutService     *service.CheckoutService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New(cfg.Metrics.Namespace)
	}

	c := &Container{
		Config:      cfg,
		DB:          models.DB,
		QueueClient: queueClient,
		Metrics:     recorder,
		// 锁 key 自带 lunar: 命名空间，不再叠加缓存前缀
		Locker: newBusyLocker(cache.NewLocker(cache.Client(), "", 0)),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	// 3. 同步网关配置
	c.syncGateways()

	return c
}

func (c *Container) initRepositories() {
	db := c.DB
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.GatewayRepo = repository.NewPaymentGatewayRepository(db)
	c.MethodRepo = repository.NewPaymentMethodRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AdminTokenService = service.NewAdminTokenService(c.Config.JWT.SecretKey, c.Config.JWT.ExpireHours)
	c.GatewayService = service.NewGatewayService(c.GatewayRepo)
	c.OrderSummaryService = service.NewOrderSummaryService(c.OrderRepo, c.PaymentRepo)

	events := c.eventPublisher()
	recorder := c.operationRecorder()
	clientFactory := service.NewLunarClientFactory(c.Config.Lunar.APIBaseURL, c.Config.Lunar.Timeout(), nil)

	c.PaymentService = service.NewPaymentService(c.PaymentRepo, c.GatewayRepo, c.MethodRepo, clientFactory, c.Locker, events, recorder)
	c.CheckoutService = service.NewCheckoutService(c.OrderRepo, c.PaymentRepo, c.GatewayRepo, clientFactory, c.PaymentService, c.Locker, events, recorder, service.CheckoutOptions{
		PublicBaseURL:         c.Config.Checkout.PublicBaseURL,
		SiteName:              c.Config.Checkout.SiteName,
		HostedCheckoutURL:     c.Config.Lunar.HostedCheckoutURL,
		TestHostedCheckoutURL: c.Config.Lunar.TestHostedCheckoutURL,
		ReturnLockTTL:         c.Config.Lunar.ReturnLockTTL(),
	})
}

func (c *Container) syncGateways() {
	if len(c.Config.Gateways) == 0 {
		return
	}
	count, err := c.GatewayService.SyncFromConfig(c.Config.Gateways)
	if err != nil {
		logger.Errorw("provider_sync_gateways_failed", "error", err)
		panic(err)
	}
	logger.Infow("provider_gateways_synced", "count", count)
}

// eventPublisher 队列可用时异步投递，否则在请求内同步汇总订单
func (c *Container) eventPublisher() service.PaymentEventPublisher {
	if c.QueueClient.Enabled() {
		return c.QueueClient
	}
	return &inlineSummaryPublisher{summary: c.OrderSummaryService}
}

func (c *Container) operationRecorder() service.OperationRecorder {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics
}
