package repository

import (
	"context"

	"checkout-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventLedger remembers which webhook event ids were fully reconciled, so a
// redelivery can be acknowledged without touching Stripe. It is an
// optimization only; order uniqueness is enforced by the orders table.
type EventLedger interface {
	// Lookup returns ErrNotFound for an unseen event id.
	Lookup(ctx context.Context, eventID string) (*models.WebhookEventRecord, error)
	// Record is idempotent; recording a known event id is not an error.
	Record(ctx context.Context, rec *models.WebhookEventRecord) error
}

type gormEventLedger struct {
	db *gorm.DB
}

func NewGormEventLedger(db *gorm.DB) EventLedger {
	return &gormEventLedger{db: db}
}

func (l *gormEventLedger) Lookup(ctx context.Context, eventID string) (*models.WebhookEventRecord, error) {
	var rec models.WebhookEventRecord
	if err := l.db.WithContext(ctx).Where("event_id = ?", eventID).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (l *gormEventLedger) Record(ctx context.Context, rec *models.WebhookEventRecord) error {
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(rec).Error
}

// NopEventLedger disables the fast path.
type NopEventLedger struct{}

func (NopEventLedger) Lookup(context.Context, string) (*models.WebhookEventRecord, error) {
	return nil, ErrNotFound
}

func (NopEventLedger) Record(context.Context, *models.WebhookEventRecord) error { return nil }
