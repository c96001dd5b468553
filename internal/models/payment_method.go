package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentMethod 付款人保存的支付方式（远端不持有对应资源）
type PaymentMethod struct {
	ID        uint           `gorm:"primarykey" json:"id"`                    // 主键
	GatewayID uint           `gorm:"index;not null" json:"gateway_id"`        // 支付网关ID
	OrderID   uint           `gorm:"index" json:"order_id"`                   // 关联订单ID
	Type      string         `gorm:"type:varchar(32);not null" json:"type"`   // 类型（card/mobilePay）
	Label     string         `gorm:"type:varchar(120)" json:"label"`          // 展示名称
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                 // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                          // 软删除时间
}

// TableName 指定表名
func (PaymentMethod) TableName() string {
	return "payment_methods"
}
