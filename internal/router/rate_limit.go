package router

import (
	"strconv"
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/http/handlers/shared"
	"github.com/dujiao-next/lunar-gateway/internal/http/response"
	"github.com/dujiao-next/lunar-gateway/internal/logger"
	"github.com/dujiao-next/lunar-gateway/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则；BlockSeconds > 0 时超限后整段时间拒绝
type RateLimitRule struct {
	Name          string
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	BlockSeconds  int
}

func (r RateLimitRule) active() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

// KEYS[1] 计数 key，KEYS[2] 封禁 key；返回 {count, ttl, blocked}
var rateLimitScript = redis.NewScript(`
local blockedTTL = redis.call("TTL", KEYS[2])
if blockedTTL > 0 then
	return {0, blockedTTL, 1}
end
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
if current > tonumber(ARGV[2]) and tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], "1", "EX", ARGV[3])
	redis.call("DEL", KEYS[1])
	return {current, tonumber(ARGV[3]), 1}
end
return {current, ttl, 0}
`)

// RateLimitMiddleware Redis 频率限制中间件；Redis 不可用时放行
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc, recorder *metrics.Recorder) gin.HandlerFunc {
	if client == nil || !rule.active() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		key := rateLimitKey(c, rule.Prefix, keyFunc)
		values, err := rateLimitScript.Run(c.Request.Context(), client, []string{key, key + ":blocked"},
			rule.WindowSeconds, rule.MaxRequests, rule.BlockSeconds).Int64Slice()
		if err != nil || len(values) < 3 {
			logger.Warnw("rate_limit_unavailable", "rule", rule.Name, "key", key, "error", err)
			c.Next()
			return
		}

		count, ttlSeconds, blocked := values[0], values[1], values[2]
		if blocked == 0 && count <= int64(rule.MaxRequests) {
			c.Next()
			return
		}

		retryAfter := int(ttlSeconds)
		if retryAfter < 1 {
			retryAfter = rule.WindowSeconds
		}
		recorder.ObserveRateLimited(rule.Name)
		logger.Warnw("rate_limit_rejected", "rule", rule.Name, "key", key, "retry_after", retryAfter)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		response.Error(c, response.CodeTooManyRequests, shared.Message("error.too_many_requests"))
		c.Abort()
	}
}

func rateLimitKey(c *gin.Context, prefix string, keyFunc RateLimitKeyFunc) string {
	key := ""
	if keyFunc != nil {
		key = strings.TrimSpace(keyFunc(c))
	}
	if key == "" {
		key = c.ClientIP()
	}
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndParam 使用路径参数 + IP 作为限流 key，同一付款人对不同订单各自计数
func KeyByIPAndParam(name string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.TrimSpace(c.Param(name))
		if value == "" {
			return c.ClientIP()
		}
		return value + "|" + c.ClientIP()
	}
}
