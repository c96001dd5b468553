package admin

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/http/handlers/shared"
	"github.com/dujiao-next/lunar-gateway/internal/http/response"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/repository"
	"github.com/dujiao-next/lunar-gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentOperationRequest 捕获/撤销/退款请求，金额为空表示按默认金额
type PaymentOperationRequest struct {
	Amount string `json:"amount"`
}

// AdminPaymentItem 支付记录返回
type AdminPaymentItem struct {
	models.Payment
	RefundableAmount models.Money `json:"refundable_amount"`
}

func toAdminPaymentItem(payment models.Payment) AdminPaymentItem {
	item := AdminPaymentItem{Payment: payment}
	if payment.State == constants.PaymentStateCompleted || payment.State == constants.PaymentStatePartiallyRefunded {
		item.RefundableAmount = payment.RefundableAmount()
	}
	return item
}

// GetAdminPayments 获取支付记录列表
func (h *Handler) GetAdminPayments(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter, err := buildAdminPaymentFilter(c, page, pageSize)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	payments, total, err := h.PaymentService.ListAdminPayments(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.payment_fetch_failed", err)
		return
	}
	items := make([]AdminPaymentItem, 0, len(payments))
	for _, payment := range payments {
		items = append(items, toAdminPaymentItem(payment))
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// GetAdminPayment 获取支付记录详情
func (h *Handler) GetAdminPayment(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.payment_invalid", nil)
		return
	}
	payment, err := h.PaymentService.GetPayment(id)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			respondError(c, response.CodeNotFound, "error.payment_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.payment_fetch_failed", err)
		return
	}
	response.Success(c, toAdminPaymentItem(*payment))
}

// GetAdminOrderPayments 获取订单下的支付记录
func (h *Handler) GetAdminOrderPayments(c *gin.Context) {
	orderID, ok := parseIDParam(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.order_invalid", nil)
		return
	}
	payments, err := h.PaymentService.ListOrderPayments(orderID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.payment_fetch_failed", err)
		return
	}
	items := make([]AdminPaymentItem, 0, len(payments))
	for _, payment := range payments {
		items = append(items, toAdminPaymentItem(payment))
	}
	response.Success(c, items)
}

// CaptureAdminPayment 捕获已授权支付
func (h *Handler) CaptureAdminPayment(c *gin.Context) {
	id, amount, ok := parsePaymentOperation(c)
	if !ok {
		return
	}
	payment, err := h.PaymentService.CapturePayment(service.CapturePaymentInput{
		PaymentID: id,
		Amount:    amount,
		Context:   c.Request.Context(),
	})
	if err != nil {
		respondPaymentOperationError(c, err, "error.payment_capture_failed")
		return
	}
	h.auditPaymentOperation(c, constants.PaymentOperationCapture, payment)
	response.Success(c, toAdminPaymentItem(*payment))
}

// VoidAdminPayment 撤销授权
func (h *Handler) VoidAdminPayment(c *gin.Context) {
	id, amount, ok := parsePaymentOperation(c)
	if !ok {
		return
	}
	payment, err := h.PaymentService.VoidPayment(service.VoidPaymentInput{
		PaymentID: id,
		Amount:    amount,
		Context:   c.Request.Context(),
	})
	if err != nil {
		respondPaymentOperationError(c, err, "error.payment_void_failed")
		return
	}
	h.auditPaymentOperation(c, constants.PaymentOperationVoid, payment)
	response.Success(c, toAdminPaymentItem(*payment))
}

// RefundAdminPayment 退款（可部分退款）
func (h *Handler) RefundAdminPayment(c *gin.Context) {
	id, amount, ok := parsePaymentOperation(c)
	if !ok {
		return
	}
	payment, err := h.PaymentService.RefundPayment(service.RefundPaymentInput{
		PaymentID: id,
		Amount:    amount,
		Context:   c.Request.Context(),
	})
	if err != nil {
		respondPaymentOperationError(c, err, "error.payment_refund_failed")
		return
	}
	h.auditPaymentOperation(c, constants.PaymentOperationRefund, payment)
	response.Success(c, toAdminPaymentItem(*payment))
}

// DeleteAdminPaymentMethod 删除已保存的支付方式（仅本地）
func (h *Handler) DeleteAdminPaymentMethod(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.payment_method_invalid", nil)
		return
	}
	if err := h.PaymentService.DeletePaymentMethod(id); err != nil {
		if errors.Is(err, service.ErrPaymentMethodNotFound) {
			respondError(c, response.CodeNotFound, "error.payment_method_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.payment_update_failed", err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

func (h *Handler) auditPaymentOperation(c *gin.Context, operation string, payment *models.Payment) {
	adminID, _ := c.Get("admin_id")
	requestLog(c).Infow("admin_payment_operation",
		"admin_id", adminID,
		"operation", operation,
		"payment_id", payment.ID,
		"remote_id", payment.RemoteID,
		"state", payment.State,
	)
}

// parsePaymentOperation 解析路径 ID 与可选金额，失败时已写出响应
func parsePaymentOperation(c *gin.Context) (uint, *models.Money, bool) {
	id, ok := parseIDParam(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.payment_invalid", nil)
		return 0, nil, false
	}
	var req PaymentOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, nil, false
	}
	raw := strings.TrimSpace(req.Amount)
	if raw == "" {
		return id, nil, true
	}
	// 不对运营输入的金额做舍入
	amount, err := models.ParseExactMoney(raw)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.payment_amount_invalid", nil)
		return 0, nil, false
	}
	return id, &amount, true
}

func buildAdminPaymentFilter(c *gin.Context, page, pageSize int) (repository.PaymentListFilter, error) {
	filter := repository.PaymentListFilter{
		Page:        page,
		PageSize:    pageSize,
		State:       strings.TrimSpace(c.Query("state")),
		GatewayMode: strings.TrimSpace(c.Query("gateway_mode")),
		RemoteID:    strings.TrimSpace(c.Query("remote_id")),
	}
	var err error
	if filter.OrderID, err = parseOptionalUint(c.Query("order_id")); err != nil {
		return filter, err
	}
	if filter.GatewayID, err = parseOptionalUint(c.Query("gateway_id")); err != nil {
		return filter, err
	}
	if filter.CreatedFrom, err = parseOptionalTime(c.Query("created_from")); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseOptionalTime(c.Query("created_to")); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseOptionalUint(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// parseOptionalTime 支持 RFC3339 与 YYYY-MM-DD
func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
