package queue

import (
	"encoding/json"

	"github.com/dujiao-next/lunar-gateway/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentStateChanged 支付状态变化任务
	TaskPaymentStateChanged = constants.TaskPaymentStateChanged
)

// PaymentStateChangedPayload 支付状态变化任务载荷
type PaymentStateChangedPayload struct {
	PaymentID uint   `json:"payment_id"`
	OrderID   uint   `json:"order_id"`
	State     string `json:"state"`
	Version   int    `json:"version"`
}

// NewPaymentStateChangedTask 创建支付状态变化任务
func NewPaymentStateChangedTask(payload PaymentStateChangedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentStateChanged, body), nil
}

// ParsePaymentStateChangedPayload 解析支付状态变化任务载荷
func ParsePaymentStateChangedPayload(task *asynq.Task) (PaymentStateChangedPayload, error) {
	var payload PaymentStateChangedPayload
	if task == nil {
		return payload, nil
	}
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
