package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/cache"
	"github.com/dujiao-next/lunar-gateway/internal/logger"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/service"
)

// inlineSummaryPublisher 无队列部署时直接刷新订单支付汇总
type inlineSummaryPublisher struct {
	summary *service.OrderSummaryService
}

func (p *inlineSummaryPublisher) PublishPaymentStateChanged(payment *models.Payment) error {
	if p == nil || p.summary == nil || payment == nil || payment.OrderID == 0 {
		return nil
	}
	if _, err := p.summary.SyncOrder(payment.OrderID); err != nil {
		logger.Warnw("inline_order_summary_failed",
			"order_id", payment.OrderID,
			"payment_id", payment.ID,
			"error", err,
		)
		return err
	}
	return nil
}

// busyLocker 将锁等待超时转换为业务层的 ErrPaymentBusy
type busyLocker struct {
	locker *cache.Locker
}

func newBusyLocker(locker *cache.Locker) *busyLocker {
	return &busyLocker{locker: locker}
}

func (l *busyLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	err := l.locker.WithLock(ctx, key, ttl, fn)
	if errors.Is(err, cache.ErrLockNotAcquired) {
		return fmt.Errorf("%w: %s", service.ErrPaymentBusy, key)
	}
	return err
}
