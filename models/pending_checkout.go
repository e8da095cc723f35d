package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PendingStatusOpen      = "open"
	PendingStatusCompleted = "completed"
)

// PendingCheckout keeps the cart server-side between session creation and the
// webhook, so the order does not depend on Stripe customer metadata.
type PendingCheckout struct {
	SessionID    string          `gorm:"type:varchar(255);primaryKey"`
	CustomerRef  string          `gorm:"type:varchar(255);index;not null"`
	CartSnapshot []CartItem      `gorm:"type:jsonb;serializer:json;not null"`
	Total        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency     string          `gorm:"type:varchar(10)"`
	Status       string          `gorm:"type:varchar(20);not null"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime"`
}
