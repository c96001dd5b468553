package queue

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/config"
	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// 订单汇总按当前支付记录重算，重放安全
	paymentEventMaxRetry = 10
	// 同一次状态迁移的重复投递在该窗口内去重
	paymentEventRetention = time.Hour
	defaultConcurrency    = 10
	defaultRedisHost      = "127.0.0.1"
	defaultRedisPort      = 6379
)

// Client 支付事件投递客户端，未启用时所有方法为空操作
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{queue: DefaultQueue}, nil
	}
	return &Client{client: asynq.NewClient(buildRedisOpt(cfg)), queue: DefaultQueue}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// EnqueuePaymentStateChanged 投递支付状态变化事件，重复的迁移事件视为成功
func (c *Client) EnqueuePaymentStateChanged(payload PaymentStateChangedPayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewPaymentStateChangedTask(payload)
	if err != nil {
		return err
	}
	options := append([]asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(paymentEventMaxRetry),
		asynq.TaskID(paymentEventTaskID(payload)),
		asynq.Retention(paymentEventRetention),
	}, opts...)
	if _, err := c.client.Enqueue(task, options...); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue %s for payment %d failed: %w", TaskPaymentStateChanged, payload.PaymentID, err)
	}
	return nil
}

// PublishPaymentStateChanged 将支付记录的当前状态作为事件推送
func (c *Client) PublishPaymentStateChanged(payment *models.Payment) error {
	if payment == nil {
		return nil
	}
	return c.EnqueuePaymentStateChanged(PaymentStateChangedPayload{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		State:     payment.State,
		Version:   payment.Version,
	})
}

// paymentEventTaskID 每次状态迁移版本号递增，同一版本只投递一次
func paymentEventTaskID(payload PaymentStateChangedPayload) string {
	return fmt.Sprintf("payment:%d:v%d:%s", payload.PaymentID, payload.Version, payload.State)
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: defaultConcurrency,
		Queues:      map[string]int{DefaultQueue: 1},
	}
	if cfg != nil && cfg.Concurrency > 0 {
		serverCfg.Concurrency = cfg.Concurrency
	}
	if cfg != nil && len(cfg.Queues) > 0 {
		serverCfg.Queues = cfg.Queues
	}
	return buildRedisOpt(cfg), serverCfg
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: net.JoinHostPort(defaultRedisHost, strconv.Itoa(defaultRedisPort))}
	if cfg == nil {
		return opt
	}
	host, port := defaultRedisHost, defaultRedisPort
	if trimmed := strings.TrimSpace(cfg.Host); trimmed != "" {
		host = trimmed
	}
	if cfg.Port > 0 {
		port = cfg.Port
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
