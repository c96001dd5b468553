package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrPaymentVersionConflict 支付记录已被并发修改
var ErrPaymentVersionConflict = errors.New("payment version conflict")

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	CreateIfAbsent(payment *models.Payment) (*models.Payment, bool, error)
	GetByID(id uint) (*models.Payment, error)
	GetByRemoteID(remoteID string) (*models.Payment, error)
	ListByOrderID(orderID uint) ([]models.Payment, error)
	ListAdmin(filter PaymentListFilter) ([]models.Payment, int64, error)
	SaveTransition(payment *models.Payment) error
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// CreateIfAbsent 同一远端 ID 只创建一次；已存在时返回已有记录与 created=false。
// 订单行加锁保证同一订单的回跳串行写入，remote_id 唯一索引兜底。
func (r *GormPaymentRepository) CreateIfAbsent(payment *models.Payment) (*models.Payment, bool, error) {
	if payment == nil {
		return nil, false, errors.New("payment is nil")
	}
	payment.RemoteID = strings.TrimSpace(payment.RemoteID)
	if payment.RemoteID == "" {
		return nil, false, errors.New("payment remote id is empty")
	}

	var existing *models.Payment
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&order, payment.OrderID).Error; err != nil {
			return err
		}
		found, err := r.WithTx(tx).GetByRemoteID(payment.RemoteID)
		if err != nil {
			return err
		}
		if found != nil {
			existing = found
			return nil
		}
		return tx.Create(payment).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			found, getErr := r.GetByRemoteID(payment.RemoteID)
			if getErr != nil {
				return nil, false, getErr
			}
			if found != nil {
				return found, false, nil
			}
		}
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return payment, true, nil
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByRemoteID 根据远端交易 ID 获取支付记录
func (r *GormPaymentRepository) GetByRemoteID(remoteID string) (*models.Payment, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return nil, nil
	}
	var payment models.Payment
	result := r.db.Where("remote_id = ?", remoteID).Order("id desc").Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// ListByOrderID 获取订单支付记录
func (r *GormPaymentRepository) ListByOrderID(orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("order_id = ?", orderID).Order("id desc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListAdmin 后台支付列表
func (r *GormPaymentRepository) ListAdmin(filter PaymentListFilter) ([]models.Payment, int64, error) {
	query := r.db.Model(&models.Payment{})
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.GatewayID != 0 {
		query = query.Where("gateway_id = ?", filter.GatewayID)
	}
	if state := strings.TrimSpace(filter.State); state != "" {
		query = query.Where("state = ?", state)
	}
	if mode := strings.TrimSpace(filter.GatewayMode); mode != "" {
		query = query.Where("gateway_mode = ?", mode)
	}
	if remoteID := strings.TrimSpace(filter.RemoteID); remoteID != "" {
		query = query.Where("remote_id = ?", remoteID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var payments []models.Payment
	if err := query.Order("id desc").Scopes(paginate(filter.Page, filter.PageSize)).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// SaveTransition 按版本号写回状态迁移结果，版本不匹配返回 ErrPaymentVersionConflict
func (r *GormPaymentRepository) SaveTransition(payment *models.Payment) error {
	if payment == nil || payment.ID == 0 {
		return errors.New("payment is invalid")
	}
	now := time.Now()
	result := r.db.Model(&models.Payment{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]interface{}{
			"state":           payment.State,
			"amount":          payment.Amount,
			"refunded_amount": payment.RefundedAmount,
			"completed_at":    payment.CompletedAt,
			"version":         payment.Version + 1,
			"updated_at":      now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentVersionConflict
	}
	payment.Version++
	payment.UpdatedAt = now
	return nil
}
