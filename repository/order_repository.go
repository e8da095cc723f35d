package repository

import (
	"context"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Create inserts a new order. ErrDuplicate means another delivery already
	// created the order for the same (customer_ref, payment_intent_ref).
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, customerRef, paymentIntentRef string) (*models.Order, error)
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByPaymentRef(ctx context.Context, customerRef, paymentIntentRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("customer_ref = ? AND payment_intent_ref = ?", customerRef, paymentIntentRef).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}
