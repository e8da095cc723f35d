package services

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "checkout-service/errors"
	"checkout-service/logger"
	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/repository"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

const (
	// Stripe caps metadata values at 500 characters.
	maxMetadataValueLen = 500

	cartMetadataKey     = "cart"
	customerMetadataKey = "customer_ref"
)

// CheckoutService opens hosted Stripe Checkout sessions for a cart.
type CheckoutService struct {
	stripe      StripeGateway
	pending     repository.PendingCheckoutRepository
	frontendURL string
	metrics     MetricsRecorder
	logger      *zap.Logger
}

func NewCheckoutService(
	gateway StripeGateway,
	pending repository.PendingCheckoutRepository,
	frontendURL string,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		stripe:      gateway,
		pending:     pending,
		frontendURL: frontendURL,
		metrics:     metrics,
		logger:      logger,
	}
}

// CreateSession prices the cart, creates a Stripe customer carrying the cart
// and a payment-mode Checkout Session for it, and records a PendingCheckout.
func (s *CheckoutService) CreateSession(ctx context.Context, items []models.CartItem) (*models.CheckoutSession, error) {
	log := logger.FromContext(ctx, s.logger)

	total, err := TotalPrice(items)
	if err != nil {
		return nil, err
	}
	currency, err := cartCurrency(items)
	if err != nil {
		return nil, err
	}
	snapshot := models.CloneCart(items)

	customerParams := &stripe.CustomerParams{}
	if cartJSON, err := json.Marshal(snapshot); err == nil && len(cartJSON) <= maxMetadataValueLen {
		customerParams.AddMetadata(cartMetadataKey, string(cartJSON))
	} else {
		log.Info("Cart too large for customer metadata, relying on pending checkout",
			zap.Int("items", len(snapshot)),
		)
	}

	cust, err := s.stripe.CreateCustomer(ctx, customerParams)
	if err != nil {
		return nil, s.sessionFailed(log, "Failed to create Stripe customer", err)
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, s.sessionParams(cust.ID, snapshot, currency))
	if err != nil {
		return nil, s.sessionFailed(log, "Failed to create Stripe checkout session", err)
	}

	pending := &models.PendingCheckout{
		SessionID:    sess.ID,
		CustomerRef:  cust.ID,
		CartSnapshot: snapshot,
		Total:        total,
		Currency:     currency,
		Status:       models.PendingStatusOpen,
	}
	if err := s.pending.Create(ctx, pending); err != nil {
		// The customer metadata is still there for the reconciler to fall back on.
		log.Error("Failed to persist pending checkout",
			zap.String("session_id", sess.ID),
			zap.String("customer_ref", cust.ID),
			zap.Error(err),
		)
	}

	RecordCountAsync(s.metrics, awspkg.MetricCheckoutSessions)
	log.Info("Checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("customer_ref", cust.ID),
		zap.String("total", total.StringFixed(2)),
		zap.String("currency", currency),
	)

	return &models.CheckoutSession{
		ProviderCustomerRef: cust.ID,
		SessionID:           sess.ID,
		CartSnapshot:        snapshot,
		RedirectURL:         sess.URL,
	}, nil
}

func (s *CheckoutService) sessionParams(customerID string, items []models.CartItem, currency string) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if item.ImageRef != "" {
			product.Images = stripe.StringSlice([]string{item.ImageRef})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(ToMinorUnits(item.UnitPrice)),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(customerID),
		LineItems:  lineItems,
		SuccessURL: stripe.String(s.frontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.frontendURL + "/cancel"),
	}
	params.AddMetadata(customerMetadataKey, customerID)
	return params
}

func (s *CheckoutService) sessionFailed(log *zap.Logger, msg string, err error) error {
	log.Error(msg, zap.Error(err))
	RecordCountAsync(s.metrics, awspkg.MetricCheckoutSessionFailures)
	return apperrors.Wrap(apperrors.ErrSessionCreationFailed, fmt.Errorf("%s: %w", msg, err))
}
