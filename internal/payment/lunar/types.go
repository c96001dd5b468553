package lunar

// 远端操作完成状态
const StateCompleted = "completed"

// Amount 金额（定点十进制字符串，不经过浮点）。
type Amount struct {
	Currency string `json:"currency"`
	Decimal  string `json:"decimal"`
}

// IntentRequest 创建支付意图请求。
type IntentRequest struct {
	Integration            Integration             `json:"integration"`
	Amount                 Amount                  `json:"amount"`
	Custom                 Custom                  `json:"custom"`
	RedirectURL            string                  `json:"redirectUrl"`
	PreferredPaymentMethod string                  `json:"preferredPaymentMethod"`
	MobilePayConfiguration *MobilePayConfiguration `json:"mobilePayConfiguration,omitempty"`
	Test                   *TestPayload            `json:"test,omitempty"`
}

// Integration 商户集成信息。
type Integration struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// Custom 随意图透传的元数据，不参与校验。
type Custom struct {
	OrderID            string        `json:"orderId"`
	Products           []Product     `json:"products"`
	Customer           Customer      `json:"customer"`
	Platform           VersionTag    `json:"platform"`
	Ecommerce          VersionTag    `json:"ecommerce"`
	LunarPluginVersion PluginVersion `json:"lunarPluginVersion"`
}

// Product 商品行。
type Product struct {
	ID       string `json:"ID"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Customer 付款人信息。
type Customer struct {
	Email   string `json:"email"`
	IP      string `json:"IP"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// VersionTag 名称与版本。
type VersionTag struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PluginVersion 插件版本。
type PluginVersion struct {
	Version string `json:"version"`
}

// MobilePayConfiguration MobilePay 钱包配置。
type MobilePayConfiguration struct {
	ConfigurationID string `json:"configurationID"`
	Logo            string `json:"logo"`
}

// TestPayload 沙箱确定性成功载荷。
type TestPayload struct {
	Card        TestCard `json:"card"`
	Fingerprint string   `json:"fingerprint"`
	TDS         TestTDS  `json:"tds"`
}

// TestCard 模拟卡片。
type TestCard struct {
	Scheme  string `json:"scheme"`
	Code    string `json:"code"`
	Status  string `json:"status"`
	Limit   Amount `json:"limit"`
	Balance Amount `json:"balance"`
}

// TestTDS 模拟 3-D Secure 结果。
type TestTDS struct {
	Fingerprint string `json:"fingerprint"`
	Challenge   bool   `json:"challenge"`
	Status      string `json:"status"`
}

// SandboxTestPayload 构造固定的沙箱成功载荷。
func SandboxTestPayload(currency string) *TestPayload {
	return &TestPayload{
		Card: TestCard{
			Scheme:  "supported",
			Code:    "valid",
			Status:  "valid",
			Limit:   Amount{Currency: currency, Decimal: "25000.99"},
			Balance: Amount{Currency: currency, Decimal: "25000.99"},
		},
		Fingerprint: "success",
		TDS: TestTDS{
			Fingerprint: "success",
			Challenge:   true,
			Status:      "authenticated",
		},
	}
}

// Transaction 远端交易（通过意图 ID 经鉴权查询获得）。
type Transaction struct {
	ID                   string
	AuthorisationCreated bool
	Amount               Amount
	Raw                  map[string]interface{}
}

// OperationResult 捕获/撤销/退款结果。
type OperationResult struct {
	State          string
	DeclinedReason string
	Raw            map[string]interface{}
}

// Completed 远端是否报告完成。
func (r *OperationResult) Completed() bool {
	return r != nil && r.State == StateCompleted
}
