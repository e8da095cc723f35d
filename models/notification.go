package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is owned by the order it references; at most one per order.
type Notification struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserRef   string    `json:"user_ref" gorm:"type:varchar(255);index;not null"`
	OrderID   uuid.UUID `json:"order_id" gorm:"type:uuid;uniqueIndex;not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
