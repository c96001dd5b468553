package repository

import "time"

// PaymentListFilter 后台支付列表过滤条件
type PaymentListFilter struct {
	Page        int
	PageSize    int
	OrderID     uint
	GatewayID   uint
	State       string
	GatewayMode string
	RemoteID    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
