package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

// Order is materialized once per completed Stripe checkout. The composite
// unique index on (customer_ref, payment_intent_ref) is what makes concurrent
// webhook redeliveries safe.
type Order struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	CustomerRef      string          `json:"customer_ref" gorm:"type:varchar(255);not null;uniqueIndex:ux_orders_payment_ref,priority:1"`
	PaymentIntentRef string          `json:"payment_intent_ref" gorm:"type:varchar(255);not null;uniqueIndex:ux_orders_payment_ref,priority:2"`
	SessionID        string          `json:"session_id" gorm:"type:varchar(255);index"`
	EventID          string          `json:"event_id" gorm:"type:varchar(255)"`
	CartSnapshot     []CartItem      `json:"cart" gorm:"type:jsonb;serializer:json;not null"`
	PaymentStatus    string          `json:"payment_status" gorm:"type:varchar(32);not null"`
	TotalAmount      decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Currency         string          `json:"currency" gorm:"type:varchar(10)"`
	Status           string          `json:"status" gorm:"type:varchar(20);not null"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}
