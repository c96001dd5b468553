package public

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	handlershared "github.com/dujiao-next/lunar-gateway/internal/http/handlers/shared"
	"github.com/dujiao-next/lunar-gateway/internal/http/response"
	"github.com/dujiao-next/lunar-gateway/internal/service"

	"github.com/gin-gonic/gin"
)

const captureFailedNotice = "error.payment_capture_pending"

// ReturnQuery 回跳查询参数，仅作记录
type ReturnQuery struct {
	PaymentStatus string `form:"payment_status"`
}

// RedirectToCheckout 创建支付意图并跳转到托管收银台
func (h *Handler) RedirectToCheckout(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.order_invalid", nil)
		return
	}

	target, err := h.CheckoutService.StartCheckout(service.StartCheckoutInput{
		OrderID:  orderID,
		TestMode: h.resolveTestMode(c),
		Context:  c.Request.Context(),
	})
	if err != nil {
		h.respondCheckoutFailure(c, orderID, err, checkoutStartRules, "error.payment_intent_failed")
		return
	}

	requestLog(c).Infow("lunar_checkout_redirect",
		"order_id", orderID,
		"intent_id", target.IntentID,
		"test_mode", target.TestMode,
	)
	c.Redirect(http.StatusFound, target.URL)
}

// CompleteCheckoutReturn 处理付款人从托管收银台返回
func (h *Handler) CompleteCheckoutReturn(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.order_invalid", nil)
		return
	}
	var query ReturnQuery
	_ = c.ShouldBindQuery(&query)

	outcome, err := h.CheckoutService.CompleteReturn(service.CompleteReturnInput{
		OrderID:     orderID,
		TestMode:    h.resolveTestMode(c),
		RemoteState: strings.TrimSpace(query.PaymentStatus),
		Context:     c.Request.Context(),
	})
	if err != nil {
		h.respondCheckoutFailure(c, orderID, err, checkoutReturnRules, "error.payment_return_failed")
		return
	}
	// 即时捕获失败时支付仍停在 authorization，通知付款人
	notice := ""
	if outcome.CaptureError != nil {
		notice = captureFailedNotice
		requestLog(c).Warnw("lunar_return_capture_pending",
			"order_id", orderID,
			"payment_id", outcome.Payment.ID,
			"error", outcome.CaptureError,
		)
	}

	if completeURL := buildCheckoutURL(h.completeBaseURL(), orderID, notice); completeURL != "" {
		c.Redirect(http.StatusFound, completeURL)
		return
	}
	data := gin.H{
		"order_id":   orderID,
		"payment_id": outcome.Payment.ID,
		"state":      outcome.Payment.State,
		"duplicate":  outcome.Duplicate,
		"captured":   outcome.Captured,
	}
	if notice != "" {
		data["notice"] = notice
		data["notice_msg"] = handlershared.Message(notice)
	}
	response.Success(c, data)
}

// ListGateways 列出可选的 Lunar 网关
func (h *Handler) ListGateways(c *gin.Context) {
	gateways, err := h.GatewayService.ListActiveGateways()
	if err != nil {
		respondError(c, response.CodeInternal, "error.gateway_fetch_failed", err)
		return
	}
	response.Success(c, gateways)
}

// resolveTestMode 仅在允许时读取测试模式 cookie
func (h *Handler) resolveTestMode(c *gin.Context) bool {
	if h.Config == nil || !h.Config.Lunar.AllowTestMode {
		return false
	}
	value, err := c.Cookie(constants.TestModeCookieName)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// respondCheckoutFailure 有通知页时带 notice 跳回，否则返回 JSON 错误
func (h *Handler) respondCheckoutFailure(c *gin.Context, orderID uint, err error, rules []mappedHandlerError, fallbackKey string) {
	rule, matched := resolveMappedError(err, rules, response.CodeInternal, fallbackKey)
	log := requestLog(c).With("order_id", orderID, "notice", rule.key, "error", err)
	if matched {
		log.Warnw("lunar_checkout_failed")
	} else {
		log.Errorw("lunar_checkout_failed")
	}

	if noticeURL := buildCheckoutURL(h.noticeBaseURL(), orderID, rule.key); noticeURL != "" {
		c.Redirect(http.StatusFound, noticeURL)
		return
	}
	respondError(c, rule.code, rule.key, nil)
}

func (h *Handler) noticeBaseURL() string {
	if h.Config == nil {
		return ""
	}
	return h.Config.Checkout.NoticeURL
}

func (h *Handler) completeBaseURL() string {
	if h.Config == nil {
		return ""
	}
	return h.Config.Checkout.CompleteURL
}

// buildCheckoutURL 在配置地址上追加 order_id 与 notice 参数
func buildCheckoutURL(base string, orderID uint, notice string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	query.Set("order_id", strconv.FormatUint(uint64(orderID), 10))
	if notice != "" {
		query.Set("notice", notice)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
