package models

import "time"

// WebhookEventRecord marks a Stripe event id as fully reconciled.
type WebhookEventRecord struct {
	EventID     string    `gorm:"type:varchar(255);primaryKey" dynamodbav:"event_id"`
	EventType   string    `gorm:"type:varchar(100);not null;index" dynamodbav:"event_type"`
	OrderID     string    `gorm:"type:varchar(64)" dynamodbav:"order_id,omitempty"`
	ProcessedAt time.Time `gorm:"autoCreateTime" dynamodbav:"processed_at"`
}
