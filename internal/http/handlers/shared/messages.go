package shared

// 错误文案目录，key 与日志、通知参数保持一致
var messages = map[string]string{
	"error.bad_request":                "Bad request",
	"error.unauthorized":               "Unauthorized",
	"error.forbidden":                  "Forbidden",
	"error.jwt_secret_missing":         "Authentication is not configured",
	"error.auth_header_missing":        "Authorization header missing",
	"error.auth_header_invalid":        "Authorization header invalid",
	"error.token_invalid":              "Token invalid",
	"error.admin_id_invalid":           "Admin id invalid",
	"error.admin_id_type_invalid":      "Admin id type invalid",
	"error.too_many_requests":          "Too many requests, please try again later",
	"error.order_invalid":              "Order id invalid",
	"error.order_not_found":            "Order not found",
	"error.order_fetch_failed":         "Order could not be loaded",
	"error.payment_invalid":            "Payment id invalid",
	"error.payment_not_found":          "Payment not found",
	"error.payment_fetch_failed":       "Payment could not be loaded",
	"error.payment_state_invalid":      "Payment state does not allow this operation",
	"error.payment_amount_invalid":     "Amount invalid",
	"error.payment_busy":               "Payment is being processed, please retry shortly",
	"error.payment_conflict":           "Payment was modified concurrently, please reload",
	"error.payment_update_failed":      "Payment could not be saved",
	"error.payment_method_not_found":   "Payment method not found",
	"error.payment_method_invalid":     "Payment method id invalid",
	"error.gateway_not_found":          "Payment gateway not found",
	"error.gateway_inactive":           "Payment gateway is not active",
	"error.gateway_fetch_failed":       "Payment gateways could not be loaded",
	"error.payment_intent_failed":      "An error occurred creating payment intent. Please try again or contact system administrator.",
	"error.payment_missing_intent":     "No payment intent found for this order",
	"error.payment_verification_error": "Payment could not be verified",
	"error.payment_processor_error":    "Payment processor error",
	"error.payment_capture_failed":     "Capture failed",
	"error.payment_void_failed":        "Void failed",
	"error.payment_refund_failed":      "Refund failed",
	"error.payment_refund_invalid":     "Refund amount invalid",
	"error.payment_return_failed":      "Payment could not be completed",
	"error.payment_capture_pending":    "Payment authorized but capture failed. The shop will complete it manually.",
	"error.internal":                   "Internal server error",
}

// Message 查询错误文案，未登记的 key 原样返回
func Message(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}
