package lunar

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// 捕获模式
const (
	CaptureModeInstant = "instant"
	CaptureModeDelayed = "delayed"
)

// Config Lunar 网关配置。
type Config struct {
	AppKey          string `json:"app_key"`
	PublicKey       string `json:"public_key"`
	LogoURL         string `json:"logo_url"`
	ConfigurationID string `json:"configuration_id"`
	CaptureMode     string `json:"capture_mode"`
	ShopTitle       string `json:"shop_title"`
	Description     string `json:"description"`
}

// ParseConfig 解析配置。
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.normalize()
	return &cfg, nil
}

// ValidateConfig 校验配置，app_key 与 public_key 缺一不可。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.AppKey == "" {
		return fmt.Errorf("%w: app_key is required", ErrConfigInvalid)
	}
	if cfg.PublicKey == "" {
		return fmt.Errorf("%w: public_key is required", ErrConfigInvalid)
	}
	switch cfg.CaptureMode {
	case CaptureModeInstant, CaptureModeDelayed:
	default:
		return fmt.Errorf("%w: capture_mode %q is not supported", ErrConfigInvalid, cfg.CaptureMode)
	}
	if cfg.LogoURL != "" {
		if _, err := url.ParseRequestURI(cfg.LogoURL); err != nil {
			return fmt.Errorf("%w: logo_url is invalid", ErrConfigInvalid)
		}
	}
	return nil
}

// IsInstantCapture 是否在回跳后立即捕获。
func (c *Config) IsInstantCapture() bool {
	return c != nil && c.CaptureMode == CaptureModeInstant
}

func (c *Config) normalize() {
	c.AppKey = strings.TrimSpace(c.AppKey)
	c.PublicKey = strings.TrimSpace(c.PublicKey)
	c.LogoURL = strings.TrimSpace(c.LogoURL)
	c.ConfigurationID = strings.TrimSpace(c.ConfigurationID)
	c.CaptureMode = strings.ToLower(strings.TrimSpace(c.CaptureMode))
	if c.CaptureMode == "" {
		c.CaptureMode = CaptureModeDelayed
	}
	c.ShopTitle = strings.TrimSpace(c.ShopTitle)
	c.Description = strings.TrimSpace(c.Description)
}
