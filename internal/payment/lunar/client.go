package lunar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrConfigInvalid   = errors.New("lunar config invalid")
	ErrRequestFailed   = errors.New("lunar request failed")
	ErrResponseInvalid = errors.New("lunar response invalid")
)

const (
	DefaultAPIBaseURL            = "https://api.lunar.money/v1"
	DefaultHostedCheckoutURL     = "https://pay.lunar.money/?id="
	DefaultTestHostedCheckoutURL = "https://hosted-checkout-git-develop-lunar-app.vercel.app/?id="

	defaultTimeout = 12 * time.Second
	testModeHeader = "X-Lunar-Testmode"
)

// APIError 远端返回的非 2xx 响应。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lunar api status %d", e.StatusCode)
	}
	return fmt.Sprintf("lunar api status %d: %s", e.StatusCode, e.Message)
}

// Unwrap 归类为响应异常。
func (e *APIError) Unwrap() error {
	return ErrResponseInvalid
}

// ClientOptions 客户端参数。
type ClientOptions struct {
	BaseURL    string
	AppKey     string
	TestMode   bool
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client Lunar Payments API 客户端，每个实例绑定一个 app key 与模式。
type Client struct {
	baseURL    string
	appKey     string
	testMode   bool
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient 创建客户端。
func NewClient(opts ClientOptions) (*Client, error) {
	appKey := strings.TrimSpace(opts.AppKey)
	if appKey == "" {
		return nil, fmt.Errorf("%w: app_key is required", ErrConfigInvalid)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		appKey:     appKey,
		testMode:   opts.TestMode,
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// TestMode 是否沙箱客户端。
func (c *Client) TestMode() bool {
	return c.testMode
}

// CreateIntent 创建支付意图，返回意图 ID。
func (c *Client) CreateIntent(ctx context.Context, req *IntentRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("%w: intent request is nil", ErrConfigInvalid)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: encode intent failed", ErrRequestFailed)
	}
	raw, err := c.call(ctx, http.MethodPost, "/payments", body)
	if err != nil {
		return "", err
	}
	intentID := strings.TrimSpace(readString(raw, "paymentId"))
	if intentID == "" {
		return "", fmt.Errorf("%w: missing paymentId", ErrResponseInvalid)
	}
	return intentID, nil
}

// FetchIntent 查询意图对应的远端交易。
func (c *Client) FetchIntent(ctx context.Context, intentID string) (*Transaction, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, fmt.Errorf("%w: intent id is empty", ErrConfigInvalid)
	}
	raw, err := c.call(ctx, http.MethodGet, "/payments/"+url.PathEscape(intentID), nil)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		ID:                   strings.TrimSpace(readString(raw, "id")),
		AuthorisationCreated: readBool(raw, "authorisationCreated"),
		Amount: Amount{
			Currency: strings.TrimSpace(readString(raw, "amount", "currency")),
			Decimal:  strings.TrimSpace(readString(raw, "amount", "decimal")),
		},
		Raw: raw,
	}
	if tx.ID == "" {
		tx.ID = intentID
	}
	return tx, nil
}

// Capture 捕获已授权金额。
func (c *Client) Capture(ctx context.Context, intentID string, amount Amount) (*OperationResult, error) {
	return c.operate(ctx, intentID, "capture", "captureState", amount)
}

// Cancel 撤销授权。
func (c *Client) Cancel(ctx context.Context, intentID string, amount Amount) (*OperationResult, error) {
	return c.operate(ctx, intentID, "cancel", "cancelState", amount)
}

// Refund 退款。
func (c *Client) Refund(ctx context.Context, intentID string, amount Amount) (*OperationResult, error) {
	return c.operate(ctx, intentID, "refund", "refundState", amount)
}

func (c *Client) operate(ctx context.Context, intentID, action, stateKey string, amount Amount) (*OperationResult, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, fmt.Errorf("%w: intent id is empty", ErrConfigInvalid)
	}
	if strings.TrimSpace(amount.Currency) == "" || strings.TrimSpace(amount.Decimal) == "" {
		return nil, fmt.Errorf("%w: %s amount is invalid", ErrConfigInvalid, action)
	}
	body, err := json.Marshal(map[string]interface{}{"amount": amount})
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s failed", ErrRequestFailed, action)
	}
	raw, err := c.call(ctx, http.MethodPost, "/payments/"+url.PathEscape(intentID)+"/"+action, body)
	if err != nil {
		return nil, err
	}
	state := strings.TrimSpace(readString(raw, stateKey))
	if state == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrResponseInvalid, stateKey)
	}
	return &OperationResult{
		State:          state,
		DeclinedReason: strings.TrimSpace(readString(raw, "declinedReason", "error")),
		Raw:            raw,
	}, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, body []byte) (map[string]interface{}, error) {
	respBody, statusCode, err := c.doJSONRequest(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	raw, decodeErr := decodeRawMap(respBody)
	if statusCode < 200 || statusCode >= 300 {
		return nil, &APIError{StatusCode: statusCode, Message: ResponseErrorMessage(respBody)}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func (c *Client) doJSONRequest(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.appKey)
	if c.testMode {
		req.Header.Set(testModeHeader, "true")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: http request failed: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	return respBody, resp.StatusCode, nil
}

func (c *Client) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// HostedCheckoutURL 拼接托管收银台地址。
func HostedCheckoutURL(base, intentID string) string {
	return base + url.QueryEscape(strings.TrimSpace(intentID))
}

// ResponseErrorMessage 将错误响应整理为一条消息：
// text > declinedReason.error > 字段错误列表 "field:message"。
func ResponseErrorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var decoded interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return string(trimmed)
	}
	switch v := decoded.(type) {
	case map[string]interface{}:
		if text := strings.TrimSpace(readString(v, "text")); text != "" {
			return text
		}
		if reason := strings.TrimSpace(readString(v, "declinedReason", "error")); reason != "" {
			return reason
		}
		if message := strings.TrimSpace(readString(v, "message")); message != "" {
			return message
		}
		return fieldErrors(mapValues(v))
	case []interface{}:
		return fieldErrors(v)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func fieldErrors(items []interface{}) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		field := readString(entry, "field")
		message := readString(entry, "message")
		if !ok || field == "" || message == "" {
			parts = append(parts, "General error")
			continue
		}
		parts = append(parts, field+":"+message)
	}
	return strings.Join(parts, " ")
}

func mapValues(raw map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	values := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		values = append(values, raw[key])
	}
	return values
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func readString(raw map[string]interface{}, path ...string) string {
	if raw == nil {
		return ""
	}
	var current interface{} = raw
	for _, seg := range path {
		if idx, err := strconv.Atoi(seg); err == nil {
			arr, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return ""
			}
			current = arr[idx]
			continue
		}
		next, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = next[seg]
	}
	if current == nil {
		return ""
	}
	switch v := current.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// readBool 只认 JSON 布尔 true。
func readBool(raw map[string]interface{}, key string) bool {
	if raw == nil {
		return false
	}
	v, ok := raw[key].(bool)
	return ok && v
}
