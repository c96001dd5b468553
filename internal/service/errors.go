package service

import (
	"errors"
	"strings"
)

// ErrorKind 网关错误分类，可直接作为 errors.Is 的目标
type ErrorKind string

func (k ErrorKind) Error() string {
	return string(k)
}

// 网关错误分类
const (
	ErrConfiguration       ErrorKind = "gateway configuration invalid"
	ErrProcessor           ErrorKind = "payment processor error"
	ErrIntegrity           ErrorKind = "transaction integrity check failed"
	ErrMissingIntent       ErrorKind = "payment intent missing"
	ErrCaptureFailed       ErrorKind = "capture failed"
	ErrVoidFailed          ErrorKind = "void failed"
	ErrRefundFailed        ErrorKind = "refund failed"
	ErrInvalidRefundAmount ErrorKind = "invalid refund amount"
)

// GatewayError 携带分类、远端交易 ID 与可展示消息的错误
type GatewayError struct {
	Kind     ErrorKind
	RemoteID string
	Message  string
	Err      error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = string(e.Kind)
	}
	// 消息已带远端原因时不再重复追加
	if e.Err != nil && !strings.Contains(msg, remoteErrorMessage(e.Err)) {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is 按分类匹配
func (e *GatewayError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && e != nil && e.Kind == kind
}

// KindOf 取出错误分类，非网关错误返回空串
func KindOf(err error) ErrorKind {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Kind
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind
	}
	return ""
}

// DisplayMessage 面向付款人/运营的消息
func DisplayMessage(err error) string {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) && strings.TrimSpace(gatewayErr.Message) != "" {
		return gatewayErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newGatewayError(kind ErrorKind, remoteID, message string, err error) *GatewayError {
	return &GatewayError{Kind: kind, RemoteID: remoteID, Message: message, Err: err}
}

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderFetchFailed      = errors.New("order fetch failed")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrPaymentInvalid        = errors.New("payment invalid")
	ErrPaymentStateInvalid   = errors.New("payment state invalid")
	ErrPaymentConflict       = errors.New("payment modified concurrently")
	ErrPaymentUpdateFailed   = errors.New("payment update failed")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrGatewayNotFound       = errors.New("payment gateway not found")
	ErrGatewayInactive       = errors.New("payment gateway inactive")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrPaymentBusy           = errors.New("payment is being processed")
)
