package repository

import (
	"errors"

	"github.com/dujiao-next/lunar-gateway/internal/models"

	"gorm.io/gorm"
)

// PaymentMethodRepository 支付方式数据访问接口
type PaymentMethodRepository interface {
	GetByID(id uint) (*models.PaymentMethod, error)
	Delete(id uint) error
}

// GormPaymentMethodRepository GORM 实现
type GormPaymentMethodRepository struct {
	db *gorm.DB
}

// NewPaymentMethodRepository 创建支付方式仓库
func NewPaymentMethodRepository(db *gorm.DB) *GormPaymentMethodRepository {
	return &GormPaymentMethodRepository{db: db}
}

// GetByID 根据 ID 获取支付方式
func (r *GormPaymentMethodRepository) GetByID(id uint) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	if err := r.db.First(&method, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &method, nil
}

// Delete 软删除支付方式
func (r *GormPaymentMethodRepository) Delete(id uint) error {
	return r.db.Delete(&models.PaymentMethod{}, id).Error
}
