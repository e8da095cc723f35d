package services

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "checkout-service/errors"
	"checkout-service/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

// EventAuthenticator verifies Stripe-Signature headers and normalizes the
// event into a PaymentEvent.
type EventAuthenticator struct {
	secret    string
	tolerance time.Duration
}

func NewEventAuthenticator(secret string, tolerance time.Duration) *EventAuthenticator {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &EventAuthenticator{secret: secret, tolerance: tolerance}
}

// Verify checks the signature over the exact bytes received. The payload must
// not have been decoded and re-encoded in between.
func (a *EventAuthenticator) Verify(payload []byte, sigHeader string) (*models.PaymentEvent, error) {
	if sigHeader == "" {
		return nil, apperrors.Wrap(apperrors.ErrAuthentication, fmt.Errorf("missing Stripe-Signature header"))
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, a.secret, webhook.ConstructEventOptions{
		Tolerance:                a.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuthentication, err)
	}

	pe := &models.PaymentEvent{
		EventID:         event.ID,
		Type:            string(event.Type),
		RawPayload:      payload,
		SignatureHeader: sigHeader,
	}
	if !pe.IsCheckoutCompleted() && event.Type != models.EventCheckoutExpired {
		return pe, nil
	}

	if event.Data == nil {
		return nil, apperrors.Wrap(apperrors.ErrAuthentication, fmt.Errorf("event %s has no data", event.ID))
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuthentication, fmt.Errorf("decode checkout session: %w", err))
	}

	pe.SessionID = sess.ID
	pe.PaymentStatus = string(sess.PaymentStatus)
	pe.AmountTotalMinorUnits = sess.AmountTotal
	pe.Currency = string(sess.Currency)
	if sess.Customer != nil {
		pe.CustomerRef = sess.Customer.ID
	}
	if sess.PaymentIntent != nil {
		pe.PaymentIntentRef = sess.PaymentIntent.ID
	}
	return pe, nil
}
