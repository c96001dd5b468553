package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/payment/lunar"

	"gorm.io/gorm"
)

// CheckoutOptions 收银跳转的站点级参数
type CheckoutOptions struct {
	PublicBaseURL         string
	SiteName              string
	HostedCheckoutURL     string
	TestHostedCheckoutURL string
	ReturnLockTTL         time.Duration
}

// CheckoutService 托管收银台跳转与回跳处理
type CheckoutService struct {
	orderRepo     OrderStore
	paymentRepo   PaymentStore
	gatewayRepo   GatewayStore
	clientFactory ProcessorClientFactory
	paymentSvc    *PaymentService
	locker        Locker
	events        PaymentEventPublisher
	recorder      OperationRecorder
	options       CheckoutOptions
}

// NewCheckoutService 创建收银服务
func NewCheckoutService(orderRepo OrderStore, paymentRepo PaymentStore, gatewayRepo GatewayStore, clientFactory ProcessorClientFactory, paymentSvc *PaymentService, locker Locker, events PaymentEventPublisher, recorder OperationRecorder, options CheckoutOptions) *CheckoutService {
	if locker == nil {
		locker = noopLocker{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	options.PublicBaseURL = strings.TrimRight(strings.TrimSpace(options.PublicBaseURL), "/")
	if strings.TrimSpace(options.HostedCheckoutURL) == "" {
		options.HostedCheckoutURL = lunar.DefaultHostedCheckoutURL
	}
	if strings.TrimSpace(options.TestHostedCheckoutURL) == "" {
		options.TestHostedCheckoutURL = lunar.DefaultTestHostedCheckoutURL
	}
	if options.ReturnLockTTL <= 0 {
		options.ReturnLockTTL = 30 * time.Second
	}
	return &CheckoutService{
		orderRepo:     orderRepo,
		paymentRepo:   paymentRepo,
		gatewayRepo:   gatewayRepo,
		clientFactory: clientFactory,
		paymentSvc:    paymentSvc,
		locker:        locker,
		events:        events,
		recorder:      recorder,
		options:       options,
	}
}

// StartCheckoutInput 跳转托管收银台请求
type StartCheckoutInput struct {
	OrderID  uint
	TestMode bool
	Context  context.Context
}

// RedirectTarget 托管收银台地址
type RedirectTarget struct {
	URL      string
	IntentID string
	TestMode bool
}

// CompleteReturnInput 回跳处理请求
type CompleteReturnInput struct {
	OrderID     uint
	TestMode    bool
	RemoteState string
	Context     context.Context
}

// PaymentOutcome 回跳处理结果
type PaymentOutcome struct {
	Payment      *models.Payment
	Duplicate    bool
	Captured     bool
	CaptureError error
}

// ReturnURL 订单固定的回跳地址
func (s *CheckoutService) ReturnURL(orderID uint) string {
	return fmt.Sprintf("%s/api/v1/payments/lunar/orders/%d/return", s.options.PublicBaseURL, orderID)
}

// StartCheckout 创建支付意图并返回托管收银台地址；失败时不落任何数据
func (s *CheckoutService) StartCheckout(input StartCheckoutInput) (*RedirectTarget, error) {
	ctx := contextOrBackground(input.Context)
	order, err := s.loadOrder(input.OrderID)
	if err != nil {
		return nil, err
	}
	gateway, cfg, err := s.loadGateway(order.GatewayID)
	if err != nil {
		if KindOf(err) == ErrConfiguration {
			paymentLogger("order_id", order.ID, "gateway_id", order.GatewayID).Errorw("lunar_gateway_config_invalid", "error", err)
			return nil, newGatewayError(ErrConfiguration, "", constants.PaymentIntentFailMsg, err)
		}
		return nil, err
	}
	items, err := s.orderRepo.ListItems(order.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}

	req, err := BuildIntentRequest(order, items, cfg, IntentOptions{
		RedirectURL: s.ReturnURL(order.ID),
		MethodCode:  constants.PaymentMethodCode(gateway.MethodCode),
		TestMode:    input.TestMode,
		SiteName:    s.options.SiteName,
	})
	if err != nil {
		paymentLogger("order_id", order.ID, "gateway_id", gateway.ID).Errorw("lunar_intent_build_failed", "error", err)
		return nil, newGatewayError(ErrConfiguration, "", constants.PaymentIntentFailMsg, err)
	}

	client, err := s.clientFactory(cfg, input.TestMode)
	if err != nil {
		return nil, newGatewayError(ErrConfiguration, "", constants.PaymentIntentFailMsg, err)
	}
	intentID, err := client.CreateIntent(ctx, req)
	intentID = strings.TrimSpace(intentID)
	if err != nil || intentID == "" {
		if err == nil {
			err = errors.New("empty payment intent id")
		}
		paymentLogger("order_id", order.ID, "gateway_id", gateway.ID, "test_mode", input.TestMode).
			Warnw("lunar_intent_create_failed", "error", err)
		s.recorder.Observe("intent", operationResultError)
		return nil, newGatewayError(ErrProcessor, "", constants.PaymentIntentFailMsg, err)
	}

	if err := s.orderRepo.SetRemoteIntentID(order.ID, intentID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	s.recorder.Observe("intent", operationResultSuccess)
	paymentLogger("order_id", order.ID, "gateway_id", gateway.ID, "remote_id", intentID, "test_mode", input.TestMode).
		Infow("lunar_intent_created")

	base := s.options.HostedCheckoutURL
	if input.TestMode {
		base = s.options.TestHostedCheckoutURL
	}
	return &RedirectTarget{
		URL:      lunar.HostedCheckoutURL(base, intentID),
		IntentID: intentID,
		TestMode: input.TestMode,
	}, nil
}

// CompleteReturn 处理付款人回跳：查询远端交易、校验并创建授权支付
// 同一订单串行处理，重复回跳返回已有支付且不访问远端
func (s *CheckoutService) CompleteReturn(input CompleteReturnInput) (*PaymentOutcome, error) {
	ctx := contextOrBackground(input.Context)
	if input.OrderID == 0 {
		return nil, ErrOrderNotFound
	}
	var outcome *PaymentOutcome
	err := s.locker.WithLock(ctx, fmt.Sprintf("lunar:return:%d", input.OrderID), s.options.ReturnLockTTL, func() error {
		result, err := s.completeReturn(ctx, input)
		if err != nil {
			return err
		}
		outcome = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Payment != nil && !outcome.Duplicate && s.shouldCaptureInstantly(outcome.Payment) {
		captured, captureErr := s.paymentSvc.CapturePayment(CapturePaymentInput{
			PaymentID: outcome.Payment.ID,
			Context:   ctx,
		})
		if captureErr != nil {
			// 捕获失败保留授权状态，由运营人工重试
			paymentLogger("order_id", input.OrderID, "payment_id", outcome.Payment.ID, "remote_id", outcome.Payment.RemoteID).
				Warnw("lunar_instant_capture_failed", "error", captureErr)
			outcome.CaptureError = captureErr
		} else {
			outcome.Payment = captured
			outcome.Captured = true
		}
	}
	return outcome, nil
}

func (s *CheckoutService) completeReturn(ctx context.Context, input CompleteReturnInput) (*PaymentOutcome, error) {
	intentID, err := s.orderRepo.GetRemoteIntentID(input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, newGatewayError(ErrMissingIntent, "", "No payment intent is stored for this order", nil)
	}

	existing, err := s.paymentRepo.GetByRemoteID(intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if existing != nil {
		return &PaymentOutcome{Payment: existing, Duplicate: true}, nil
	}

	order, err := s.loadOrder(input.OrderID)
	if err != nil {
		return nil, err
	}
	_, cfg, err := s.loadGateway(order.GatewayID)
	if err != nil {
		return nil, err
	}
	client, err := s.clientFactory(cfg, input.TestMode)
	if err != nil {
		return nil, newGatewayError(ErrConfiguration, intentID, "Lunar client could not be created", err)
	}

	log := paymentLogger("order_id", order.ID, "remote_id", intentID, "test_mode", input.TestMode)
	tx, err := client.FetchIntent(ctx, intentID)
	if err != nil {
		log.Warnw("lunar_transaction_fetch_failed", "error", err)
		s.recorder.Observe(constants.PaymentOperationAuthorize, operationResultError)
		return nil, newGatewayError(ErrProcessor, intentID, fmt.Sprintf("Transaction %s not found. %s", intentID, remoteErrorMessage(err)), err)
	}
	if !VerifyTransaction(tx, order.Currency, order.TotalAmount.Decimal) {
		log.Warnw("lunar_return_integrity_failed",
			"expected_currency", order.Currency,
			"expected_amount", order.TotalAmount.String(),
			"remote_currency", tx.Amount.Currency,
			"remote_amount", tx.Amount.Decimal,
			"authorised", tx.AuthorisationCreated,
		)
		s.recorder.Observe(constants.PaymentOperationAuthorize, operationResultRejected)
		return nil, newGatewayError(ErrIntegrity, intentID, "Payment could not be verified", nil)
	}

	mode := constants.GatewayModeLive
	if input.TestMode {
		mode = constants.GatewayModeTest
	}
	now := time.Now()
	payment, created, err := s.paymentRepo.CreateIfAbsent(&models.Payment{
		OrderID:      order.ID,
		GatewayID:    order.GatewayID,
		RemoteID:     intentID,
		RemoteState:  strings.TrimSpace(input.RemoteState),
		Amount:       order.Balance(),
		Currency:     strings.ToUpper(strings.TrimSpace(order.Currency)),
		State:        constants.PaymentStateAuthorization,
		GatewayMode:  mode,
		AuthorizedAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if !created {
		return &PaymentOutcome{Payment: payment, Duplicate: true}, nil
	}

	s.recorder.Observe(constants.PaymentOperationAuthorize, operationResultSuccess)
	log.Infow("lunar_payment_authorized", "payment_id", payment.ID, "amount", payment.Amount.String())
	if pubErr := s.events.PublishPaymentStateChanged(payment); pubErr != nil {
		log.Warnw("payment_state_event_enqueue_failed", "error", pubErr)
	}
	return &PaymentOutcome{Payment: payment}, nil
}

func (s *CheckoutService) shouldCaptureInstantly(payment *models.Payment) bool {
	if s.paymentSvc == nil || payment.State != constants.PaymentStateAuthorization {
		return false
	}
	gateway, err := s.gatewayRepo.GetByID(payment.GatewayID)
	if err != nil || gateway == nil {
		return false
	}
	cfg, err := parseGatewayConfig(gateway)
	if err != nil {
		return false
	}
	return cfg.IsInstantCapture()
}

func (s *CheckoutService) loadOrder(orderID uint) (*models.Order, error) {
	if orderID == 0 {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) loadGateway(gatewayID uint) (*models.PaymentGateway, *lunar.Config, error) {
	if gatewayID == 0 {
		return nil, nil, ErrGatewayNotFound
	}
	gateway, err := s.gatewayRepo.GetByID(gatewayID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if gateway == nil {
		return nil, nil, ErrGatewayNotFound
	}
	if !gateway.IsActive {
		return nil, nil, ErrGatewayInactive
	}
	cfg, err := parseGatewayConfig(gateway)
	if err != nil {
		return nil, nil, err
	}
	return gateway, cfg, nil
}
