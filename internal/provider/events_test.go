package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/cache"
	"github.com/dujiao-next/lunar-gateway/internal/config"
	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/metrics"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/queue"
	"github.com/dujiao-next/lunar-gateway/internal/repository"
	"github.com/dujiao-next/lunar-gateway/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func TestBusyLockerMapsLockTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if err := mr.Set("lunar:payment:9", "someone-else"); err != nil {
		t.Fatalf("seed lock failed: %v", err)
	}
	locker := newBusyLocker(cache.NewLocker(client, "", 100*time.Millisecond))

	called := false
	err := locker.WithLock(context.Background(), "lunar:payment:9", time.Second, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, service.ErrPaymentBusy) {
		t.Fatalf("expected ErrPaymentBusy, got %v", err)
	}
	if called {
		t.Fatalf("callback must not run without the lock")
	}

	mr.Del("lunar:payment:9")
	want := errors.New("boom")
	if err := locker.WithLock(context.Background(), "lunar:payment:9", time.Second, func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("callback error should pass through, got %v", err)
	}
}

func TestInlineSummaryPublisherSyncsOrder(t *testing.T) {
	dsn := fmt.Sprintf("file:provider_inline_publisher_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	order := &models.Order{
		OrderNo:     "INLINE-1",
		Status:      constants.OrderStatusPendingPayment,
		Currency:    "DKK",
		TotalAmount: models.MustMoney("40.00"),
	}
	if err := orderRepo.Create(order, nil); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	payment, _, err := paymentRepo.CreateIfAbsent(&models.Payment{
		OrderID:  order.ID,
		RemoteID: "pi_inline",
		Amount:   models.MustMoney("40.00"),
		Currency: "DKK",
		State:    constants.PaymentStateAuthorization,
	})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	publisher := &inlineSummaryPublisher{summary: service.NewOrderSummaryService(orderRepo, paymentRepo)}
	if err := publisher.PublishPaymentStateChanged(payment); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	updated, err := orderRepo.GetByID(order.ID)
	if err != nil || updated == nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if updated.Status != constants.OrderStatusAuthorized {
		t.Fatalf("order status want authorized got %s", updated.Status)
	}

	if err := publisher.PublishPaymentStateChanged(&models.Payment{OrderID: 9999}); !errors.Is(err, service.ErrOrderNotFound) {
		t.Fatalf("missing order should surface, got %v", err)
	}
	if err := (*inlineSummaryPublisher)(nil).PublishPaymentStateChanged(payment); err != nil {
		t.Fatalf("nil publisher should be a no-op, got %v", err)
	}
}

func TestContainerEventPublisherSelection(t *testing.T) {
	disabled, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	c := &Container{Config: &config.Config{}, QueueClient: disabled}
	if _, ok := c.eventPublisher().(*inlineSummaryPublisher); !ok {
		t.Fatalf("disabled queue should fall back to inline publisher")
	}

	c.QueueClient = nil
	if _, ok := c.eventPublisher().(*inlineSummaryPublisher); !ok {
		t.Fatalf("missing queue client should fall back to inline publisher")
	}

	if c.operationRecorder() != nil {
		t.Fatalf("recorder should be nil without metrics")
	}
	c.Metrics = metrics.New("provider_test")
	if c.operationRecorder() == nil {
		t.Fatalf("recorder should be set with metrics")
	}
}
