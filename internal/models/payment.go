package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment 支付记录（只在回跳校验通过后创建）
type Payment struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                         // 主键
	OrderID        uint           `gorm:"index;not null" json:"order_id"`                               // 订单ID
	GatewayID      uint           `gorm:"index;not null" json:"gateway_id"`                             // 支付网关ID
	RemoteID       string         `gorm:"type:varchar(191);uniqueIndex;not null" json:"remote_id"`      // 远端交易（意图）ID
	RemoteState    string         `gorm:"type:varchar(64)" json:"remote_state,omitempty"`               // 回跳携带的远端状态（仅记录）
	Amount         Money          `gorm:"type:decimal(20,2);not null" json:"amount"`                    // 支付金额
	RefundedAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"` // 已退款金额
	Currency       string         `gorm:"type:varchar(3);not null" json:"currency"`                     // 币种
	State          string         `gorm:"index;not null" json:"state"`                                  // 支付状态
	GatewayMode    string         `gorm:"type:varchar(16)" json:"gateway_mode"`                         // test / live
	Version        int            `gorm:"not null;default:0" json:"-"`                                  // 乐观锁版本
	AuthorizedAt   *time.Time     `json:"authorized_at"`                                                // 授权时间
	CompletedAt    *time.Time     `json:"completed_at"`                                                 // 捕获时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                      // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// RefundableAmount 剩余可退金额
func (p *Payment) RefundableAmount() Money {
	return p.Amount.Sub(p.RefundedAmount)
}
