package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// BillingProfile 账单地址快照
type BillingProfile struct {
	GivenName          string `gorm:"type:varchar(120)" json:"given_name,omitempty"`          // 名
	FamilyName         string `gorm:"type:varchar(120)" json:"family_name,omitempty"`         // 姓
	PostalCode         string `gorm:"type:varchar(32)" json:"postal_code,omitempty"`          // 邮编
	CountryCode        string `gorm:"type:varchar(8)" json:"country_code,omitempty"`          // 国家代码
	AdministrativeArea string `gorm:"type:varchar(120)" json:"administrative_area,omitempty"` // 省/州
	Locality           string `gorm:"type:varchar(120)" json:"locality,omitempty"`            // 城市
	AddressLine1       string `gorm:"type:varchar(255)" json:"address_line1,omitempty"`       // 地址行 1
	AddressLine2       string `gorm:"type:varchar(255)" json:"address_line2,omitempty"`       // 地址行 2
}

// FullName 姓 + 名
func (b BillingProfile) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(b.FamilyName) + " " + strings.TrimSpace(b.GivenName))
}

// FormattedAddress 拼接非空地址字段
func (b BillingProfile) FormattedAddress() string {
	parts := make([]string, 0, 6)
	for _, part := range []string{b.PostalCode, b.CountryCode, b.AdministrativeArea, b.Locality, b.AddressLine1, b.AddressLine2} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}

// Order 订单表（由宿主平台创建，支付模块只读写 Data 中的意图 ID）
type Order struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                     // 主键
	OrderNo       string         `gorm:"uniqueIndex;not null" json:"order_no"`                     // 订单编号
	Status        string         `gorm:"index;not null" json:"status"`                             // 订单状态
	GatewayID     uint           `gorm:"index" json:"gateway_id"`                                  // 下单时选择的支付网关
	Currency      string         `gorm:"type:varchar(3);not null" json:"currency"`                 // 币种（ISO 4217）
	TotalAmount   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 订单总额
	PaidAmount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"paid_amount"`  // 已收金额
	CustomerEmail string         `gorm:"index" json:"customer_email"`                              // 客户邮箱
	ClientIP      string         `gorm:"type:varchar(64)" json:"client_ip,omitempty"`              // 下单客户端IP
	Billing       BillingProfile `gorm:"embedded;embeddedPrefix:billing_" json:"billing"`         // 账单信息
	Data          JSON           `gorm:"type:json" json:"-"`                                       // 扩展数据（支付意图 ID 等）
	PaidAt        *time.Time     `gorm:"index" json:"paid_at"`                                     // 支付时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                  // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// Balance 待支付余额（总额 - 已收，不小于 0）
func (o *Order) Balance() Money {
	balance := o.TotalAmount.Sub(o.PaidAmount)
	if balance.IsNegative() {
		return Money{}
	}
	return balance
}
