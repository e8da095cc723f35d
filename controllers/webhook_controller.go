package controllers

import (
	"context"
	"io"
	"net/http"

	"checkout-service/logger"
	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// Stripe events are a few KiB; anything this large is not one.
	maxWebhookBodyBytes = 64 << 10

	signatureHeader = "Stripe-Signature"
)

// WebhookVerifier authenticates a raw webhook delivery.
type WebhookVerifier interface {
	Verify(payload []byte, sigHeader string) (*models.PaymentEvent, error)
}

// EventReconciler applies an authenticated event.
type EventReconciler interface {
	Reconcile(ctx context.Context, event *models.PaymentEvent) (*services.ReconcileResult, error)
}

type WebhookController struct {
	Verifier   WebhookVerifier
	Reconciler EventReconciler
	Metrics    services.MetricsRecorder
	Logger     *zap.Logger
}

func NewWebhookController(verifier WebhookVerifier, reconciler EventReconciler, metrics services.MetricsRecorder, logger *zap.Logger) *WebhookController {
	return &WebhookController{Verifier: verifier, Reconciler: reconciler, Metrics: metrics, Logger: logger}
}

// StripeWebhook handles POST /payment/webhook. The body is read as raw bytes
// and never bound through gin, since the signature covers the exact bytes.
// Once the delivery is authenticated the response is always 200: processing
// errors are logged and counted, and a redelivery is safe to replay.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	// A dropped connection must not abort reconciliation half-way; the
	// reconciler applies its own deadline.
	ctx := context.WithoutCancel(requestContext(c))
	log := logger.FromContext(ctx, wc.Logger)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		wc.reject(c, log, err)
		return
	}

	event, err := wc.Verifier.Verify(payload, c.GetHeader(signatureHeader))
	if err != nil {
		wc.reject(c, log, err)
		return
	}

	log = log.With(zap.String("event_id", event.EventID), zap.String("event_type", event.Type))
	log.Info("Processing Stripe webhook")

	result, err := wc.Reconciler.Reconcile(ctx, event)
	switch {
	case err != nil:
		log.Error("Webhook reconciliation failed", zap.Error(err))
	case result.Order != nil:
		log.Info("Webhook reconciled",
			zap.String("outcome", string(result.Outcome)),
			zap.String("order_id", result.Order.ID.String()),
		)
	default:
		log.Info("Webhook acknowledged", zap.String("outcome", string(result.Outcome)))
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (wc *WebhookController) reject(c *gin.Context, log *zap.Logger, err error) {
	services.RecordCountAsync(wc.Metrics, awspkg.MetricWebhookRejected)
	respondError(c, log, http.StatusBadRequest, "invalid webhook", err)
}
