package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"
)

func TestSummarizePayments(t *testing.T) {
	early := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	cases := []struct {
		name     string
		payments []models.Payment
		status   string
		paid     string
	}{
		{name: "no payments", status: constants.OrderStatusPendingPayment, paid: "0.00"},
		{name: "authorized", payments: []models.Payment{{State: constants.PaymentStateAuthorization, Amount: models.MustMoney("100")}}, status: constants.OrderStatusAuthorized, paid: "0.00"},
		{name: "voided", payments: []models.Payment{{State: constants.PaymentStateAuthorizationVoided, Amount: models.MustMoney("100")}}, status: constants.OrderStatusPaymentVoided, paid: "0.00"},
		{name: "captured", payments: []models.Payment{{State: constants.PaymentStateCompleted, Amount: models.MustMoney("100"), CompletedAt: &late}}, status: constants.OrderStatusPaid, paid: "100.00"},
		{name: "partially refunded", payments: []models.Payment{{State: constants.PaymentStatePartiallyRefunded, Amount: models.MustMoney("100"), RefundedAmount: models.MustMoney("30")}}, status: constants.OrderStatusPartiallyRefunded, paid: "70.00"},
		{name: "fully refunded", payments: []models.Payment{{State: constants.PaymentStateRefunded, Amount: models.MustMoney("100"), RefundedAmount: models.MustMoney("100")}}, status: constants.OrderStatusRefunded, paid: "0.00"},
		{
			name: "capture wins over stale authorization",
			payments: []models.Payment{
				{State: constants.PaymentStateAuthorization, Amount: models.MustMoney("100")},
				{State: constants.PaymentStateCompleted, Amount: models.MustMoney("40"), CompletedAt: &early},
			},
			status: constants.OrderStatusPaid,
			paid:   "40.00",
		},
	}
	for _, tc := range cases {
		summary := SummarizePayments(tc.payments)
		if summary.Status != tc.status || summary.PaidAmount.String() != tc.paid {
			t.Fatalf("%s: want %s/%s, got %s/%s", tc.name, tc.status, tc.paid, summary.Status, summary.PaidAmount)
		}
	}

	summary := SummarizePayments([]models.Payment{
		{State: constants.PaymentStateCompleted, Amount: models.MustMoney("10"), CompletedAt: &late},
		{State: constants.PaymentStateCompleted, Amount: models.MustMoney("10"), CompletedAt: &early},
	})
	if summary.PaidAt == nil || !summary.PaidAt.Equal(early) {
		t.Fatalf("paid_at should be the earliest capture, got %v", summary.PaidAt)
	}
}

func TestOrderSummaryServiceSyncOrder(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "SUM001", gateway.ID, "DKK", "100.00")
	payment := env.createAuthorizedPayment(t, order, "pi_sum_1", "100.00")
	svc := NewOrderSummaryService(env.orderRepo, env.paymentRepo)

	summary, err := svc.SyncOrder(order.ID)
	if err != nil || summary.Status != constants.OrderStatusAuthorized {
		t.Fatalf("sync authorized failed: %+v %v", summary, err)
	}

	if _, err := env.payments.CapturePayment(CapturePaymentInput{PaymentID: payment.ID}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if _, err := svc.SyncOrder(order.ID); err != nil {
		t.Fatalf("sync paid failed: %v", err)
	}
	reloaded, _ := env.orderRepo.GetByID(order.ID)
	if reloaded.Status != constants.OrderStatusPaid || !reloaded.PaidAmount.Equal(models.MustMoney("100.00")) || reloaded.PaidAt == nil {
		t.Fatalf("unexpected order after capture: status=%s paid=%s", reloaded.Status, reloaded.PaidAmount)
	}
	if !reloaded.Balance().IsZero() {
		t.Fatalf("balance should be zero after capture, got %s", reloaded.Balance())
	}

	if _, err := svc.SyncOrder(order.ID + 100); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}
}
