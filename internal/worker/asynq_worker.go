package worker

import (
	"context"
	"errors"

	"github.com/dujiao-next/lunar-gateway/internal/logger"
	"github.com/dujiao-next/lunar-gateway/internal/provider"
	"github.com/dujiao-next/lunar-gateway/internal/queue"
	"github.com/dujiao-next/lunar-gateway/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentStateChanged, c.handlePaymentStateChanged)
}

func (c *Consumer) handlePaymentStateChanged(_ context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_payment_state_changed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParsePaymentStateChangedPayload(task)
	if err != nil {
		logger.Warnw("worker_payment_state_changed_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_payment_state_changed_skip_invalid_payload", "payment_id", payload.PaymentID)
		return nil
	}
	if c.OrderSummaryService == nil {
		logger.Warnw("worker_payment_state_changed_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	summary, err := c.OrderSummaryService.SyncOrder(payload.OrderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_payment_state_changed_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		logger.Warnw("worker_payment_state_changed_sync_failed", "order_id", payload.OrderID, "payment_id", payload.PaymentID, "error", err)
		return err
	}
	logger.Infow("worker_payment_state_changed_synced",
		"order_id", payload.OrderID,
		"payment_id", payload.PaymentID,
		"payment_state", payload.State,
		"order_status", summary.Status,
	)
	return nil
}
