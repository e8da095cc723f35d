package repository

import (
	"context"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	// Create returns ErrDuplicate when the order already has a notification.
	Create(ctx context.Context, n *models.Notification) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r *notificationRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&n).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}
