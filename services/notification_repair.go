package services

import (
	"context"
	"encoding/json"
	"fmt"

	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationRepairer re-creates notifications whose first write failed.
type NotificationRepairer interface {
	RepairNotification(ctx context.Context, orderID uuid.UUID) error
}

// NewRepairHandler decodes NotificationRepairRequest messages from SQS.
// Malformed messages are logged and acknowledged so they do not loop; a
// failed repair is returned so SQS redelivers it.
func NewRepairHandler(repairer NotificationRepairer, logger *zap.Logger) awspkg.MessageHandler {
	return func(ctx context.Context, body string) error {
		var req models.NotificationRepairRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			logger.Error("Dropping malformed repair message", zap.Error(err))
			return nil
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			logger.Error("Dropping repair message with invalid order id", zap.String("order_id", req.OrderID))
			return nil
		}

		if err := repairer.RepairNotification(ctx, orderID); err != nil {
			return fmt.Errorf("repair notification for order %s: %w", orderID, err)
		}
		logger.Info("Notification repaired",
			zap.String("order_id", orderID.String()),
			zap.String("event_id", req.EventID),
		)
		return nil
	}
}
