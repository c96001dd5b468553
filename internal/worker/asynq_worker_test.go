package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/provider"
	"github.com/dujiao-next/lunar-gateway/internal/queue"
	"github.com/dujiao-next/lunar-gateway/internal/repository"
	"github.com/dujiao-next/lunar-gateway/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTestConsumer(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:lunar_worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	container := &provider.Container{
		OrderRepo:           orderRepo,
		PaymentRepo:         paymentRepo,
		OrderSummaryService: service.NewOrderSummaryService(orderRepo, paymentRepo),
	}
	return NewConsumer(container), db
}

func TestHandlePaymentStateChangedSyncsOrder(t *testing.T) {
	consumer, db := setupWorkerTestConsumer(t)
	order := &models.Order{OrderNo: "WRK001", Status: constants.OrderStatusPendingPayment, Currency: "DKK", TotalAmount: models.MustMoney("100.00")}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	completedAt := time.Now()
	payment := &models.Payment{
		OrderID:        order.ID,
		GatewayID:      1,
		RemoteID:       "pi_worker_1",
		Amount:         models.MustMoney("100.00"),
		RefundedAmount: models.MustMoney("25.00"),
		Currency:       "DKK",
		State:          constants.PaymentStatePartiallyRefunded,
		CompletedAt:    &completedAt,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	task, err := queue.NewPaymentStateChangedTask(queue.PaymentStateChangedPayload{PaymentID: payment.ID, OrderID: order.ID, State: payment.State})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handlePaymentStateChanged(context.Background(), task); err != nil {
		t.Fatalf("handle task failed: %v", err)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.Status != constants.OrderStatusPartiallyRefunded || !reloaded.PaidAmount.Equal(models.MustMoney("75.00")) {
		t.Fatalf("unexpected order summary: status=%s paid=%s", reloaded.Status, reloaded.PaidAmount)
	}
}

func TestHandlePaymentStateChangedSkipsInvalidPayloads(t *testing.T) {
	consumer, _ := setupWorkerTestConsumer(t)

	if err := consumer.handlePaymentStateChanged(context.Background(), asynq.NewTask(queue.TaskPaymentStateChanged, []byte("{"))); err == nil {
		t.Fatalf("malformed payload should return error for retry")
	}
	task, _ := queue.NewPaymentStateChangedTask(queue.PaymentStateChangedPayload{PaymentID: 1})
	if err := consumer.handlePaymentStateChanged(context.Background(), task); err != nil {
		t.Fatalf("missing order id should be skipped, got %v", err)
	}
	missing, _ := queue.NewPaymentStateChangedTask(queue.PaymentStateChangedPayload{PaymentID: 1, OrderID: 404})
	if err := consumer.handlePaymentStateChanged(context.Background(), missing); err != nil {
		t.Fatalf("unknown order should be skipped, got %v", err)
	}
	var nilConsumer *Consumer
	if err := nilConsumer.handlePaymentStateChanged(context.Background(), task); err != nil {
		t.Fatalf("nil consumer should be a no-op, got %v", err)
	}
}
