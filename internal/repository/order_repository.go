package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByRemoteIntentID(intentID string) (*models.Order, error)
	ListItems(orderID uint) ([]models.OrderItem, error)
	GetRemoteIntentID(orderID uint) (string, error)
	SetRemoteIntentID(orderID uint, intentID string) error
	UpdatePaymentSummary(orderID uint, status string, paidAmount models.Money, paidAt *time.Time) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID 根据 ID 获取订单（含订单项）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByRemoteIntentID 根据当前支付意图 ID 查找订单
func (r *GormOrderRepository) GetByRemoteIntentID(intentID string) (*models.Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, nil
	}
	var order models.Order
	expr := jsonTextExpr(r.db, "data", constants.OrderDataKeyLunarIntentID)
	result := r.db.Where(expr+" = ?", intentID).Order("id desc").Limit(1).Find(&order)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &order, nil
}

// ListItems 获取订单项
func (r *GormOrderRepository) ListItems(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetRemoteIntentID 读取订单当前的支付意图 ID，订单不存在返回 gorm.ErrRecordNotFound
func (r *GormOrderRepository) GetRemoteIntentID(orderID uint) (string, error) {
	var order models.Order
	if err := r.db.Select("id", "data").First(&order, orderID).Error; err != nil {
		return "", err
	}
	return order.Data.GetString(constants.OrderDataKeyLunarIntentID), nil
}

// SetRemoteIntentID 写入（覆盖）订单支付意图 ID，保留 Data 中其他键
func (r *GormOrderRepository) SetRemoteIntentID(orderID uint, intentID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "data").First(&order, orderID).Error; err != nil {
			return err
		}
		data := models.JSON{}
		for key, value := range order.Data {
			data[key] = value
		}
		data[constants.OrderDataKeyLunarIntentID] = strings.TrimSpace(intentID)
		return tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]interface{}{
			"data":       data,
			"updated_at": time.Now(),
		}).Error
	})
}

// UpdatePaymentSummary 同步订单收款汇总
func (r *GormOrderRepository) UpdatePaymentSummary(orderID uint, status string, paidAmount models.Money, paidAt *time.Time) error {
	updates := map[string]interface{}{
		"status":      status,
		"paid_amount": paidAmount,
		"updated_at":  time.Now(),
	}
	if paidAt != nil {
		updates["paid_at"] = paidAt
	}
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
}
