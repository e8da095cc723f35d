package repository

import (
	"context"

	"checkout-service/models"

	"gorm.io/gorm"
)

type PendingCheckoutRepository interface {
	Create(ctx context.Context, p *models.PendingCheckout) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.PendingCheckout, error)
	MarkCompleted(ctx context.Context, sessionID string) error
}

type gormPendingCheckoutRepo struct {
	db *gorm.DB
}

func NewGormPendingCheckoutRepo(db *gorm.DB) PendingCheckoutRepository {
	return &gormPendingCheckoutRepo{db: db}
}

func (r *gormPendingCheckoutRepo) Create(ctx context.Context, p *models.PendingCheckout) error {
	if p.Status == "" {
		p.Status = models.PendingStatusOpen
	}
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *gormPendingCheckoutRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.PendingCheckout, error) {
	var p models.PendingCheckout
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormPendingCheckoutRepo) MarkCompleted(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingCheckout{}).
		Where("session_id = ?", sessionID).
		Update("status", models.PendingStatusCompleted).Error
}
