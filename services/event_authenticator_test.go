package services

import (
	"testing"
	"time"

	apperrors "checkout-service/errors"
	"checkout-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_AcceptsFreshSignature(t *testing.T) {
	auth := NewEventAuthenticator(testWebhookSecret, 5*time.Minute)
	payload := completedEventJSON("evt_1", "cs_1", "cus_1", "pi_1", 10000)

	ev, err := auth.Verify(payload, signHeader(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.EventID)
	assert.True(t, ev.IsCheckoutCompleted())
	assert.Equal(t, "cs_1", ev.SessionID)
	assert.Equal(t, "cus_1", ev.CustomerRef)
	assert.Equal(t, "pi_1", ev.PaymentIntentRef)
	assert.Equal(t, models.PaymentStatusPaid, ev.PaymentStatus)
	assert.Equal(t, int64(10000), ev.AmountTotalMinorUnits)
	assert.Equal(t, "usd", ev.Currency)
	assert.Equal(t, payload, ev.RawPayload)
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	auth := NewEventAuthenticator(testWebhookSecret, 5*time.Minute)
	payload := completedEventJSON("evt_1", "cs_1", "cus_1", "pi_1", 10000)
	header := signHeader(payload, testWebhookSecret, time.Now())

	for _, i := range []int{0, len(payload) / 2, len(payload) - 1} {
		tampered := append([]byte(nil), payload...)
		tampered[i] ^= 0x01
		_, err := auth.Verify(tampered, header)
		assert.ErrorIs(t, err, apperrors.ErrAuthentication, "byte %d", i)
	}
}

func TestVerify_RejectsReserializedPayload(t *testing.T) {
	auth := NewEventAuthenticator(testWebhookSecret, 5*time.Minute)
	payload := completedEventJSON("evt_1", "cs_1", "cus_1", "pi_1", 10000)
	header := signHeader(payload, testWebhookSecret, time.Now())

	pretty := append([]byte("{\n  "), payload[1:]...)
	_, err := auth.Verify(pretty, header)
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	auth := NewEventAuthenticator(testWebhookSecret, 5*time.Minute)
	payload := completedEventJSON("evt_1", "cs_1", "cus_1", "pi_1", 10000)

	_, err := auth.Verify(payload, signHeader(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
}

func TestVerify_RejectsStaleTimestamp(t *testing.T) {
	auth := NewEventAuthenticator(testWebhookSecret, 5*time.Minute)
	payload := completedEventJSON("evt_1", "cs_1", "cus_1", "pi_1", 10000)

	_, err := auth.Verify(payload, signHeader(payload, testWebhookSecret, time.Now().Add(-10*time.Minute)))
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
}

func TestVerify_RejectsMissingHeader(t *testing.T) {
	auth := NewEventAuthenticator(testWebhookSecret, 0)
	_, err := auth.Verify(completedEventJSON("evt_1", "cs_1", "cus_1", "pi_1", 1), "")
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
}

func TestVerify_OtherEventTypes(t *testing.T) {
	auth := NewEventAuthenticator(testWebhookSecret, 5*time.Minute)
	payload := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_9","object":"payment_intent"}}}`)

	ev, err := auth.Verify(payload, signHeader(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, models.EventPaymentIntentFailed, ev.Type)
	assert.False(t, ev.IsCheckoutCompleted())
	assert.Empty(t, ev.CustomerRef)
}
