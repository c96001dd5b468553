package public

import (
	"errors"

	"github.com/dujiao-next/lunar-gateway/internal/http/response"
	"github.com/dujiao-next/lunar-gateway/internal/service"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

// resolveMappedError 返回首个命中的规则，未命中时使用兜底 code/key。
func resolveMappedError(err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) (mappedHandlerError, bool) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			return rule, true
		}
	}
	return mappedHandlerError{target: err, code: fallbackCode, key: fallbackKey}, false
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var checkoutCommonErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrGatewayNotFound, code: response.CodeNotFound, key: "error.gateway_not_found"},
	{target: service.ErrGatewayInactive, code: response.CodeBadRequest, key: "error.gateway_inactive"},
	{target: service.ErrPaymentBusy, code: response.CodeTooManyRequests, key: "error.payment_busy"},
}

var checkoutStartErrorRules = []mappedHandlerError{
	{target: service.ErrConfiguration, code: response.CodeInternal, key: "error.payment_intent_failed"},
	{target: service.ErrProcessor, code: response.CodeBadGateway, key: "error.payment_intent_failed"},
}

// 完整性校验失败只暴露通用文案，差异细节仅写日志
var checkoutReturnErrorRules = []mappedHandlerError{
	{target: service.ErrMissingIntent, code: response.CodeBadRequest, key: "error.payment_missing_intent"},
	{target: service.ErrIntegrity, code: response.CodeBadRequest, key: "error.payment_verification_error"},
	{target: service.ErrProcessor, code: response.CodeBadGateway, key: "error.payment_processor_error"},
	{target: service.ErrConfiguration, code: response.CodeInternal, key: "error.payment_processor_error"},
	{target: service.ErrPaymentConflict, code: response.CodeConflict, key: "error.payment_conflict"},
}

var (
	checkoutStartRules  = concatMappedHandlerErrors(checkoutCommonErrorRules, checkoutStartErrorRules)
	checkoutReturnRules = concatMappedHandlerErrors(checkoutCommonErrorRules, checkoutReturnErrorRules)
)
