package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid 管理端令牌无效
var ErrTokenInvalid = errors.New("admin token invalid")

// JWTClaims 管理端 JWT 声明
type JWTClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AdminTokenService 签发与解析管理端令牌
type AdminTokenService struct {
	secretKey string
	ttl       time.Duration
}

// NewAdminTokenService 创建令牌服务
func NewAdminTokenService(secretKey string, expireHours int) *AdminTokenService {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &AdminTokenService{
		secretKey: strings.TrimSpace(secretKey),
		ttl:       time.Duration(expireHours) * time.Hour,
	}
}

// GenerateJWT 生成 JWT Token
func (s *AdminTokenService) GenerateJWT(adminID uint, username string) (string, time.Time, error) {
	if s == nil || s.secretKey == "" || adminID == 0 {
		return "", time.Time{}, ErrTokenInvalid
	}
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := JWTClaims{
		AdminID:  adminID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseJWT 解析 JWT Token
func (s *AdminTokenService) ParseJWT(tokenString string) (*JWTClaims, error) {
	if s == nil || s.secretKey == "" {
		return nil, ErrTokenInvalid
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.AdminID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
