package repository

import (
	"errors"
	"strings"

	"github.com/dujiao-next/lunar-gateway/internal/models"

	"gorm.io/gorm"
)

// PaymentGatewayRepository 支付网关数据访问接口
type PaymentGatewayRepository interface {
	GetByID(id uint) (*models.PaymentGateway, error)
	GetByCode(code string) (*models.PaymentGateway, error)
	ListActive() ([]models.PaymentGateway, error)
	Upsert(gateway *models.PaymentGateway) error
}

// GormPaymentGatewayRepository GORM 实现
type GormPaymentGatewayRepository struct {
	db *gorm.DB
}

// NewPaymentGatewayRepository 创建支付网关仓库
func NewPaymentGatewayRepository(db *gorm.DB) *GormPaymentGatewayRepository {
	return &GormPaymentGatewayRepository{db: db}
}

// GetByID 根据 ID 获取网关
func (r *GormPaymentGatewayRepository) GetByID(id uint) (*models.PaymentGateway, error) {
	var gateway models.PaymentGateway
	if err := r.db.First(&gateway, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gateway, nil
}

// GetByCode 根据代码获取网关
func (r *GormPaymentGatewayRepository) GetByCode(code string) (*models.PaymentGateway, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var gateway models.PaymentGateway
	result := r.db.Where("code = ?", code).Limit(1).Find(&gateway)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &gateway, nil
}

// ListActive 已启用网关
func (r *GormPaymentGatewayRepository) ListActive() ([]models.PaymentGateway, error) {
	var gateways []models.PaymentGateway
	if err := r.db.Where("is_active = ?", true).Order("id asc").Find(&gateways).Error; err != nil {
		return nil, err
	}
	return gateways, nil
}

// Upsert 按代码创建或更新网关
func (r *GormPaymentGatewayRepository) Upsert(gateway *models.PaymentGateway) error {
	if gateway == nil || strings.TrimSpace(gateway.Code) == "" {
		return errors.New("payment gateway code is required")
	}
	existing, err := r.GetByCode(gateway.Code)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.Create(gateway).Error
	}
	gateway.ID = existing.ID
	gateway.CreatedAt = existing.CreatedAt
	return r.db.Save(gateway).Error
}
