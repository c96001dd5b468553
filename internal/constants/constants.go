package constants

// 订单状态常量
const (
	OrderStatusPendingPayment    = "pending_payment"
	OrderStatusAuthorized        = "authorized"
	OrderStatusPaid              = "paid"
	OrderStatusPartiallyRefunded = "partially_refunded"
	OrderStatusRefunded          = "refunded"
	OrderStatusPaymentVoided     = "payment_voided"
)

// 支付状态常量
const (
	PaymentStateNew                 = "new"
	PaymentStateAuthorization       = "authorization"
	PaymentStateCompleted           = "completed"
	PaymentStatePartiallyRefunded   = "partially_refunded"
	PaymentStateRefunded            = "refunded"
	PaymentStateAuthorizationVoided = "authorization_voided"
)

// 支付网关模式标记
const (
	GatewayModeTest = "test"
	GatewayModeLive = "live"
)

// PaymentMethodCode 支付方式代码（决定托管收银台展示的支付流程）
type PaymentMethodCode string

const (
	PaymentMethodCard      PaymentMethodCode = "card"
	PaymentMethodMobilePay PaymentMethodCode = "mobilePay"
)

// Valid 是否为已知支付方式
func (c PaymentMethodCode) Valid() bool {
	switch c {
	case PaymentMethodCard, PaymentMethodMobilePay:
		return true
	default:
		return false
	}
}

// Label 对付款人展示的支付方式名称
func (c PaymentMethodCode) Label() string {
	if c == PaymentMethodMobilePay {
		return "MobilePay"
	}
	return "card"
}

// 订单扩展数据键
const (
	OrderDataKeyLunarIntentID = "_lunar_intent_id"
)

// 测试模式 Cookie
const (
	TestModeCookieName = "lunar_testmode"
)

// 平台信息（随支付意图上报，仅用于展示）
const (
	PlatformName         = "Dujiao-Next"
	PlatformVersion      = "1.0.0"
	EcommerceName        = "Dujiao-Next Checkout"
	EcommerceVersion     = "1.0.0"
	LunarPluginVersion   = "1.0.0"
	DefaultSiteName      = "Dujiao-Next"
	PaymentIntentFailMsg = "An error occurred creating payment intent. Please try again or contact system administrator."
)

// 队列与任务
const (
	QueueDefault            = "default"
	TaskPaymentStateChanged = "payment:state_changed"
)

// 支付操作（日志与指标标签）
const (
	PaymentOperationAuthorize = "authorize"
	PaymentOperationCapture   = "capture"
	PaymentOperationVoid      = "void"
	PaymentOperationRefund    = "refund"
)
