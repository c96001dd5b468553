package admin

import (
	"errors"

	"github.com/dujiao-next/lunar-gateway/internal/http/handlers/shared"
	"github.com/dujiao-next/lunar-gateway/internal/http/response"
	"github.com/dujiao-next/lunar-gateway/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return shared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	shared.RespondError(c, code, key, err)
}

func respondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	shared.RespondErrorWithMsg(c, code, msg, err)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

// 处理方拒绝或异常时消息中带交易 ID，便于运营排查，原样返回
var paymentOperationMessageKinds = []service.ErrorKind{
	service.ErrCaptureFailed,
	service.ErrVoidFailed,
	service.ErrRefundFailed,
}

var paymentOperationErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentInvalid, code: response.CodeBadRequest, key: "error.payment_invalid"},
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound, key: "error.payment_not_found"},
	{target: service.ErrGatewayNotFound, code: response.CodeNotFound, key: "error.gateway_not_found"},
	{target: service.ErrPaymentStateInvalid, code: response.CodeBadRequest, key: "error.payment_state_invalid"},
	{target: service.ErrInvalidRefundAmount, code: response.CodeBadRequest, key: "error.payment_refund_invalid"},
	{target: service.ErrInvalidAmount, code: response.CodeBadRequest, key: "error.payment_amount_invalid"},
	{target: service.ErrPaymentBusy, code: response.CodeTooManyRequests, key: "error.payment_busy"},
	{target: service.ErrPaymentConflict, code: response.CodeConflict, key: "error.payment_conflict"},
	{target: service.ErrConfiguration, code: response.CodeInternal, key: "error.payment_processor_error"},
	{target: service.ErrPaymentUpdateFailed, code: response.CodeInternal, key: "error.payment_update_failed"},
}

// respondPaymentOperationError 状态/金额错误走映射规则，处理方失败透出带交易 ID 的消息
func respondPaymentOperationError(c *gin.Context, err error, fallbackKey string) {
	for _, rule := range paymentOperationErrorRules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	for _, kind := range paymentOperationMessageKinds {
		if errors.Is(err, kind) {
			requestLog(c).Warnw("admin_payment_operation_failed", "kind", string(kind), "error", err)
			respondErrorWithMsg(c, response.CodeBadGateway, service.DisplayMessage(err), nil)
			return
		}
	}
	respondError(c, response.CodeInternal, fallbackKey, err)
}
