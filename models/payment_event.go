package models

// Stripe event types the webhook cares about.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventPaymentIntentFailed = "payment_intent.payment_failed"
	EventCheckoutExpired     = "checkout.session.expired"
)

const (
	PaymentStatusPaid              = "paid"
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// PaymentEvent is the authenticated, provider-neutral view of a webhook delivery.
type PaymentEvent struct {
	EventID               string `json:"event_id"`
	Type                  string `json:"type"`
	SessionID             string `json:"session_id,omitempty"`
	CustomerRef           string `json:"customer_ref,omitempty"`
	PaymentStatus         string `json:"payment_status,omitempty"`
	PaymentIntentRef      string `json:"payment_intent_ref,omitempty"`
	AmountTotalMinorUnits int64  `json:"amount_total"`
	Currency              string `json:"currency,omitempty"`
	RawPayload            []byte `json:"-"`
	SignatureHeader       string `json:"-"`
}

// IsCheckoutCompleted reports whether the event should materialize an order.
func (e *PaymentEvent) IsCheckoutCompleted() bool {
	return e.Type == EventCheckoutCompleted
}

// OrderCreatedEvent is published to SNS once an order is persisted. The shape
// matches the notification service's EventPayload.
type OrderCreatedEvent struct {
	EventType string                 `json:"event_type"`
	Recipient string                 `json:"recipient,omitempty"`
	Data      map[string]interface{} `json:"data"`
}

// NotificationRepairRequest is queued when a notification could not be saved.
type NotificationRepairRequest struct {
	OrderID string `json:"order_id"`
	EventID string `json:"event_id,omitempty"`
}
