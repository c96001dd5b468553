package service

import (
	"fmt"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"
)

// OrderSummaryStore 订单收款汇总写入
type OrderSummaryStore interface {
	GetByID(id uint) (*models.Order, error)
	UpdatePaymentSummary(orderID uint, status string, paidAmount models.Money, paidAt *time.Time) error
}

// OrderSummaryService 根据支付记录重算订单已收金额与状态
type OrderSummaryService struct {
	orderRepo   OrderSummaryStore
	paymentRepo PaymentStore
}

// NewOrderSummaryService 创建订单汇总服务
func NewOrderSummaryService(orderRepo OrderSummaryStore, paymentRepo PaymentStore) *OrderSummaryService {
	return &OrderSummaryService{orderRepo: orderRepo, paymentRepo: paymentRepo}
}

// OrderPaymentSummary 汇总结果
type OrderPaymentSummary struct {
	Status     string
	PaidAmount models.Money
	PaidAt     *time.Time
}

// SyncOrder 重算并写回订单汇总，重复执行结果一致
func (s *OrderSummaryService) SyncOrder(orderID uint) (*OrderPaymentSummary, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	payments, err := s.paymentRepo.ListByOrderID(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	summary := SummarizePayments(payments)
	if err := s.orderRepo.UpdatePaymentSummary(orderID, summary.Status, summary.PaidAmount, summary.PaidAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	paymentLogger("order_id", orderID, "status", summary.Status, "paid_amount", summary.PaidAmount.String()).
		Infow("order_payment_summary_synced")
	return &summary, nil
}

// SummarizePayments 已捕获金额减去已退款金额即为已收；状态取最靠后的阶段
func SummarizePayments(payments []models.Payment) OrderPaymentSummary {
	var paid, refunded models.Money
	var paidAt *time.Time
	captured, authorized, voided := false, false, false
	for i := range payments {
		payment := payments[i]
		switch payment.State {
		case constants.PaymentStateCompleted, constants.PaymentStatePartiallyRefunded, constants.PaymentStateRefunded:
			captured = true
			paid = paid.Add(payment.Amount.Sub(payment.RefundedAmount))
			refunded = refunded.Add(payment.RefundedAmount)
			if payment.CompletedAt != nil && (paidAt == nil || payment.CompletedAt.Before(*paidAt)) {
				completedAt := *payment.CompletedAt
				paidAt = &completedAt
			}
		case constants.PaymentStateAuthorization:
			authorized = true
		case constants.PaymentStateAuthorizationVoided:
			voided = true
		}
	}

	summary := OrderPaymentSummary{Status: constants.OrderStatusPendingPayment, PaidAmount: paid, PaidAt: paidAt}
	switch {
	case captured && refunded.IsPositive() && !paid.IsPositive():
		summary.Status = constants.OrderStatusRefunded
	case captured && refunded.IsPositive():
		summary.Status = constants.OrderStatusPartiallyRefunded
	case captured:
		summary.Status = constants.OrderStatusPaid
	case authorized:
		summary.Status = constants.OrderStatusAuthorized
	case voided:
		summary.Status = constants.OrderStatusPaymentVoided
	}
	return summary
}
