package service

import (
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/payment/lunar"

	"github.com/shopspring/decimal"
)

// VerifyTransaction 校验远端交易已授权且币种、金额与订单完全一致
// 金额按定点十进制比较，无法解析时视为不一致
func VerifyTransaction(tx *lunar.Transaction, expectedCurrency string, expectedAmount decimal.Decimal) bool {
	if tx == nil || !tx.AuthorisationCreated {
		return false
	}
	currency := strings.TrimSpace(tx.Amount.Currency)
	if currency == "" || !strings.EqualFold(currency, strings.TrimSpace(expectedCurrency)) {
		return false
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(tx.Amount.Decimal))
	if err != nil {
		return false
	}
	return amount.Equal(expectedAmount)
}
