package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/logger"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/payment/lunar"
	"github.com/dujiao-next/lunar-gateway/internal/repository"

	"go.uber.org/zap"
)

const paymentLockTTL = 30 * time.Second

// 指标结果标签
const (
	operationResultSuccess  = "success"
	operationResultDeclined = "declined"
	operationResultError    = "error"
	operationResultRejected = "rejected"
)

// PaymentService 支付生命周期服务（捕获 / 撤销 / 退款）
type PaymentService struct {
	paymentRepo   PaymentStore
	gatewayRepo   GatewayStore
	methodRepo    PaymentMethodStore
	clientFactory ProcessorClientFactory
	locker        Locker
	events        PaymentEventPublisher
	recorder      OperationRecorder
}

// NewPaymentService 创建支付服务，locker / events / recorder 可为 nil
func NewPaymentService(paymentRepo PaymentStore, gatewayRepo GatewayStore, methodRepo PaymentMethodStore, clientFactory ProcessorClientFactory, locker Locker, events PaymentEventPublisher, recorder OperationRecorder) *PaymentService {
	if locker == nil {
		locker = noopLocker{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &PaymentService{
		paymentRepo:   paymentRepo,
		gatewayRepo:   gatewayRepo,
		methodRepo:    methodRepo,
		clientFactory: clientFactory,
		locker:        locker,
		events:        events,
		recorder:      recorder,
	}
}

// CapturePaymentInput 捕获请求，Amount 为空表示全额
type CapturePaymentInput struct {
	PaymentID uint
	Amount    *models.Money
	Context   context.Context
}

// VoidPaymentInput 撤销授权请求，Amount 为空表示全额
type VoidPaymentInput struct {
	PaymentID uint
	Amount    *models.Money
	Context   context.Context
}

// RefundPaymentInput 退款请求，Amount 为空表示剩余可退金额
type RefundPaymentInput struct {
	PaymentID uint
	Amount    *models.Money
	Context   context.Context
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func paymentLockKey(paymentID uint) string {
	return fmt.Sprintf("lunar:payment:%d", paymentID)
}

// CapturePayment 捕获已授权的支付
func (s *PaymentService) CapturePayment(input CapturePaymentInput) (*models.Payment, error) {
	ctx := contextOrBackground(input.Context)
	var captured *models.Payment
	err := s.withPaymentLock(ctx, input.PaymentID, func() error {
		payment, err := s.loadPayment(input.PaymentID)
		if err != nil {
			return err
		}
		if payment.State != constants.PaymentStateAuthorization {
			return stateError(ErrCaptureFailed, payment, "captured")
		}
		amount, err := resolveOperationAmount(ErrCaptureFailed, payment, input.Amount, payment.Amount)
		if err != nil {
			return err
		}
		client, err := s.clientFor(payment)
		if err != nil {
			return err
		}
		result, err := client.Capture(ctx, payment.RemoteID, toRemoteAmount(payment.Currency, amount))
		if err != nil {
			return processorFailure("Capture", payment, err)
		}
		if !result.Completed() {
			return newGatewayError(ErrCaptureFailed, payment.RemoteID, declineMessage(result, "Capture failed"), nil)
		}

		now := time.Now()
		payment.State = constants.PaymentStateCompleted
		payment.Amount = amount
		payment.CompletedAt = &now
		if err := s.saveTransition(payment); err != nil {
			return err
		}
		captured = payment
		return nil
	})
	s.finishOperation(constants.PaymentOperationCapture, captured, err)
	if err != nil {
		return nil, err
	}
	return captured, nil
}

// VoidPayment 撤销授权
func (s *PaymentService) VoidPayment(input VoidPaymentInput) (*models.Payment, error) {
	ctx := contextOrBackground(input.Context)
	var voided *models.Payment
	err := s.withPaymentLock(ctx, input.PaymentID, func() error {
		payment, err := s.loadPayment(input.PaymentID)
		if err != nil {
			return err
		}
		if payment.State != constants.PaymentStateAuthorization {
			return stateError(ErrVoidFailed, payment, "voided")
		}
		amount, err := resolveOperationAmount(ErrVoidFailed, payment, input.Amount, payment.Amount)
		if err != nil {
			return err
		}
		client, err := s.clientFor(payment)
		if err != nil {
			return err
		}
		result, err := client.Cancel(ctx, payment.RemoteID, toRemoteAmount(payment.Currency, amount))
		if err != nil {
			return processorFailure("Void", payment, err)
		}
		if !result.Completed() {
			return newGatewayError(ErrVoidFailed, payment.RemoteID, declineMessage(result, "Void failed"), nil)
		}

		payment.State = constants.PaymentStateAuthorizationVoided
		if err := s.saveTransition(payment); err != nil {
			return err
		}
		voided = payment
		return nil
	})
	s.finishOperation(constants.PaymentOperationVoid, voided, err)
	if err != nil {
		return nil, err
	}
	return voided, nil
}

// RefundPayment 退款（支持多次部分退款）
func (s *PaymentService) RefundPayment(input RefundPaymentInput) (*models.Payment, error) {
	ctx := contextOrBackground(input.Context)
	var refunded *models.Payment
	err := s.withPaymentLock(ctx, input.PaymentID, func() error {
		payment, err := s.loadPayment(input.PaymentID)
		if err != nil {
			return err
		}
		if payment.State != constants.PaymentStateCompleted && payment.State != constants.PaymentStatePartiallyRefunded {
			return stateError(ErrRefundFailed, payment, "refunded")
		}
		remaining := payment.RefundableAmount()
		amount := remaining
		if input.Amount != nil {
			amount = *input.Amount
		}
		if !amount.IsPositive() || amount.GreaterThan(remaining.Decimal) {
			return newGatewayError(
				ErrInvalidRefundAmount,
				payment.RemoteID,
				fmt.Sprintf("Refund amount %s exceeds the refundable balance %s", amount.String(), remaining.String()),
				ErrInvalidAmount,
			)
		}
		client, err := s.clientFor(payment)
		if err != nil {
			return err
		}
		result, err := client.Refund(ctx, payment.RemoteID, toRemoteAmount(payment.Currency, amount))
		if err != nil {
			return processorFailure("Refund", payment, err)
		}
		if !result.Completed() {
			return newGatewayError(ErrRefundFailed, payment.RemoteID, declineMessage(result, "Refund failed"), nil)
		}

		payment.RefundedAmount = payment.RefundedAmount.Add(amount)
		if payment.RefundedAmount.Equal(payment.Amount) {
			payment.State = constants.PaymentStateRefunded
		} else {
			payment.State = constants.PaymentStatePartiallyRefunded
		}
		if err := s.saveTransition(payment); err != nil {
			return err
		}
		refunded = payment
		return nil
	})
	s.finishOperation(constants.PaymentOperationRefund, refunded, err)
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

// GetPayment 查询支付
func (s *PaymentService) GetPayment(id uint) (*models.Payment, error) {
	return s.loadPayment(id)
}

// ListOrderPayments 查询订单的全部支付
func (s *PaymentService) ListOrderPayments(orderID uint) ([]models.Payment, error) {
	if orderID == 0 {
		return nil, ErrOrderNotFound
	}
	payments, err := s.paymentRepo.ListByOrderID(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	return payments, nil
}

// ListAdminPayments 后台分页查询
func (s *PaymentService) ListAdminPayments(filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	filter.State = strings.TrimSpace(filter.State)
	filter.GatewayMode = strings.TrimSpace(filter.GatewayMode)
	filter.RemoteID = strings.TrimSpace(filter.RemoteID)
	return s.paymentRepo.ListAdmin(filter)
}

// DeletePaymentMethod 删除本地保存的支付方式，不调用远端
func (s *PaymentService) DeletePaymentMethod(id uint) error {
	if s.methodRepo == nil {
		return ErrPaymentMethodNotFound
	}
	method, err := s.methodRepo.GetByID(id)
	if err != nil {
		return err
	}
	if method == nil {
		return ErrPaymentMethodNotFound
	}
	if err := s.methodRepo.Delete(method.ID); err != nil {
		return err
	}
	paymentLogger("payment_method_id", method.ID, "gateway_id", method.GatewayID).Infow("payment_method_deleted")
	return nil
}

func (s *PaymentService) withPaymentLock(ctx context.Context, paymentID uint, fn func() error) error {
	if paymentID == 0 {
		return ErrPaymentInvalid
	}
	return s.locker.WithLock(ctx, paymentLockKey(paymentID), paymentLockTTL, fn)
}

func (s *PaymentService) loadPayment(id uint) (*models.Payment, error) {
	if id == 0 {
		return nil, ErrPaymentInvalid
	}
	payment, err := s.paymentRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// clientFor 按支付记录的网关与模式构造远端客户端
func (s *PaymentService) clientFor(payment *models.Payment) (RemoteProcessorClient, error) {
	gateway, err := s.gatewayRepo.GetByID(payment.GatewayID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if gateway == nil {
		return nil, ErrGatewayNotFound
	}
	cfg, err := parseGatewayConfig(gateway)
	if err != nil {
		return nil, err
	}
	client, err := s.clientFactory(cfg, payment.GatewayMode == constants.GatewayModeTest)
	if err != nil {
		return nil, newGatewayError(ErrConfiguration, payment.RemoteID, "Lunar client could not be created", err)
	}
	return client, nil
}

func (s *PaymentService) saveTransition(payment *models.Payment) error {
	if err := s.paymentRepo.SaveTransition(payment); err != nil {
		if errors.Is(err, repository.ErrPaymentVersionConflict) {
			return ErrPaymentConflict
		}
		return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	return nil
}

func (s *PaymentService) finishOperation(operation string, payment *models.Payment, err error) {
	if err != nil {
		s.recorder.Observe(operation, operationResult(err))
		return
	}
	s.recorder.Observe(operation, operationResultSuccess)
	log := paymentLogger("payment_id", payment.ID, "order_id", payment.OrderID, "remote_id", payment.RemoteID, "state", payment.State)
	log.Infow("payment_state_changed", "operation", operation)
	if pubErr := s.events.PublishPaymentStateChanged(payment); pubErr != nil {
		log.Warnw("payment_state_event_enqueue_failed", "error", pubErr)
	}
}

func operationResult(err error) string {
	switch {
	case errors.Is(err, ErrPaymentStateInvalid), errors.Is(err, ErrInvalidAmount):
		return operationResultRejected
	case errors.Is(err, ErrCaptureFailed), errors.Is(err, ErrVoidFailed), errors.Is(err, ErrRefundFailed):
		return operationResultDeclined
	default:
		return operationResultError
	}
}

func parseGatewayConfig(gateway *models.PaymentGateway) (*lunar.Config, error) {
	cfg, err := lunar.ParseConfig(gateway.ConfigJSON)
	if err != nil {
		return nil, newGatewayError(ErrConfiguration, "", "Lunar gateway configuration is invalid", err)
	}
	if err := lunar.ValidateConfig(cfg); err != nil {
		return nil, newGatewayError(ErrConfiguration, "", "Lunar gateway configuration is invalid", err)
	}
	return cfg, nil
}

func stateError(kind ErrorKind, payment *models.Payment, action string) error {
	return newGatewayError(
		kind,
		payment.RemoteID,
		fmt.Sprintf("Payment in state %s cannot be %s", payment.State, action),
		ErrPaymentStateInvalid,
	)
}

// resolveOperationAmount 为空取默认值；必须大于 0 且不超过上限
func resolveOperationAmount(kind ErrorKind, payment *models.Payment, requested *models.Money, limit models.Money) (models.Money, error) {
	if requested == nil {
		return limit, nil
	}
	amount := *requested
	if !amount.IsPositive() || amount.GreaterThan(limit.Decimal) {
		return models.Money{}, newGatewayError(
			kind,
			payment.RemoteID,
			fmt.Sprintf("Amount %s must be positive and not exceed %s", amount.String(), limit.String()),
			ErrInvalidAmount,
		)
	}
	return amount, nil
}

func toRemoteAmount(currency string, amount models.Money) lunar.Amount {
	return lunar.Amount{Currency: strings.ToUpper(strings.TrimSpace(currency)), Decimal: amount.String()}
}

func declineMessage(result *lunar.OperationResult, fallback string) string {
	if result != nil && strings.TrimSpace(result.DeclinedReason) != "" {
		return strings.TrimSpace(result.DeclinedReason)
	}
	return fallback
}

// processorFailure 远端异常统一包装为 ProcessorError 并记录告警
func processorFailure(operation string, payment *models.Payment, err error) error {
	message := fmt.Sprintf("%s failed. Transaction %s. %s", operation, payment.RemoteID, remoteErrorMessage(err))
	paymentLogger("payment_id", payment.ID, "remote_id", payment.RemoteID, "operation", strings.ToLower(operation)).
		Warnw("lunar_operation_exception", "error", err)
	return newGatewayError(ErrProcessor, payment.RemoteID, message, err)
}

func remoteErrorMessage(err error) string {
	var apiErr *lunar.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return strings.TrimSpace(apiErr.Message)
	}
	return err.Error()
}
