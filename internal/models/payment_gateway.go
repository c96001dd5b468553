package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentGateway 支付网关配置（同一份配置同时服务正式与沙箱流程）
type PaymentGateway struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                // 主键
	Code       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`   // 网关代码
	Name       string         `gorm:"not null" json:"name"`                                // 网关名称
	MethodCode string         `gorm:"type:varchar(32);not null" json:"method_code"`        // 支付方式（card/mobilePay）
	ConfigJSON JSON           `gorm:"type:json" json:"-"`                                  // 网关配置（含密钥，不对外输出）
	IsActive   bool           `gorm:"not null" json:"is_active"`                           // 是否启用
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                             // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间
}

// TableName 指定表名
func (PaymentGateway) TableName() string {
	return "payment_gateways"
}
