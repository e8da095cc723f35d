package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "checkout-service/errors"
	"checkout-service/logger"
	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome describes what a Reconcile call did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

const (
	orderCreatedEventType    = "order_created"
	defaultSideEffectTimeout = 5 * time.Second
)

// ReconcileResult carries the order the event resolved to. Order is nil for
// ignored events.
type ReconcileResult struct {
	Order   *models.Order
	Outcome Outcome
}

// RepairQueue accepts notification repair requests; *aws.SQSConsumer satisfies it.
type RepairQueue interface {
	SendMessage(ctx context.Context, body string) error
}

// ReconcilerDeps wires the reconciler. Ledger, Publisher, Repairs and Metrics
// are optional.
type ReconcilerDeps struct {
	Stripe        StripeGateway
	Orders        repository.OrderRepository
	Notifications repository.NotificationRepository
	Pending       repository.PendingCheckoutRepository
	Ledger        repository.EventLedger
	Publisher     awspkg.SNSPublisher
	TopicArn      string
	Repairs       RepairQueue
	Metrics       MetricsRecorder
	Timeout       time.Duration

	// SideEffectTimeout bounds the SNS publish and pending checkout update
	// that follow order creation. Defaults to 5s.
	SideEffectTimeout time.Duration
	Logger            *zap.Logger
}

// OrderReconciler turns completed checkout events into exactly one Order and
// one Notification. Uniqueness under concurrent redelivery comes from the
// store's unique indexes, not from in-process locking.
type OrderReconciler struct {
	stripe        StripeGateway
	orders        repository.OrderRepository
	notifications repository.NotificationRepository
	pending       repository.PendingCheckoutRepository
	ledger        repository.EventLedger
	publisher     awspkg.SNSPublisher
	topicArn      string
	repairs       RepairQueue
	metrics       MetricsRecorder
	timeout       time.Duration

	// bounds publish and pending update after order creation
	sideEffectTimeout time.Duration
	logger            *zap.Logger
	now               func() time.Time
}

func NewOrderReconciler(deps ReconcilerDeps) *OrderReconciler {
	ledger := deps.Ledger
	if ledger == nil {
		ledger = repository.NopEventLedger{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sideEffectTimeout := deps.SideEffectTimeout
	if sideEffectTimeout <= 0 {
		sideEffectTimeout = defaultSideEffectTimeout
	}
	return &OrderReconciler{
		stripe:        deps.Stripe,
		orders:        deps.Orders,
		notifications: deps.Notifications,
		pending:       deps.Pending,
		ledger:        ledger,
		publisher:     deps.Publisher,
		topicArn:      deps.TopicArn,
		repairs:       deps.Repairs,
		metrics:       deps.Metrics,
		timeout:       deps.Timeout,

		sideEffectTimeout: sideEffectTimeout,
		logger:            log,
		now:               time.Now,
	}
}

// NotificationMessage is the text stored for a new order.
func NotificationMessage(orderID uuid.UUID) string {
	return fmt.Sprintf("Your order %s has been placed and is being processed.", orderID)
}

// Reconcile processes one authenticated event. Events other than
// checkout.session.completed are ignored. Delivering the same completed
// event any number of times, concurrently or not, yields one Order.
//
// An ErrNotificationPersistFailed error is returned together with a non-nil
// result: the order exists and the notification is left for repair.
func (r *OrderReconciler) Reconcile(ctx context.Context, event *models.PaymentEvent) (*ReconcileResult, error) {
	if !event.IsCheckoutCompleted() {
		r.logger.Debug("Ignoring webhook event", zap.String("event_id", event.EventID), zap.String("event_type", event.Type))
		return &ReconcileResult{Outcome: OutcomeIgnored}, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	log := logger.FromContext(ctx, r.logger).With(
		zap.String("event_id", event.EventID),
		zap.String("session_id", event.SessionID),
	)

	if order := r.fromLedger(ctx, log, event.EventID); order != nil {
		log.Info("Skipping already reconciled event", zap.String("order_id", order.ID.String()))
		RecordCountAsync(r.metrics, awspkg.MetricDuplicateDeliveries)
		return &ReconcileResult{Order: order, Outcome: OutcomeDuplicate}, nil
	}

	customerRef, items, err := r.resolveCart(ctx, log, event)
	if err != nil {
		return nil, r.failed(ctx, err)
	}
	log = log.With(zap.String("customer_ref", customerRef))

	paymentRef := event.PaymentIntentRef
	if paymentRef == "" {
		// Sessions that need no payment carry no intent; the session id is unique too.
		paymentRef = event.SessionID
	}
	if paymentRef == "" {
		return nil, r.failed(ctx, apperrors.Wrap(apperrors.ErrReconciliation, fmt.Errorf("event %s has neither payment intent nor session", event.EventID)))
	}

	existing, err := r.orders.FindByPaymentRef(ctx, customerRef, paymentRef)
	switch {
	case err == nil:
		log.Info("Order already exists for payment", zap.String("order_id", existing.ID.String()))
		return r.duplicate(ctx, log, event, existing)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, r.failed(ctx, apperrors.Wrap(apperrors.ErrReconciliation, err))
	}

	order := &models.Order{
		ID:               uuid.New(),
		CustomerRef:      customerRef,
		PaymentIntentRef: paymentRef,
		SessionID:        event.SessionID,
		EventID:          event.EventID,
		CartSnapshot:     items,
		PaymentStatus:    event.PaymentStatus,
		TotalAmount:      FromMinorUnits(event.AmountTotalMinorUnits),
		Currency:         event.Currency,
		Status:           models.OrderStatusProcessing,
		CreatedAt:        r.now().UTC(),
	}
	if err := r.orders.Create(ctx, order); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, r.failed(ctx, apperrors.Wrap(apperrors.ErrReconciliation, err))
		}
		// A concurrent delivery inserted first; its goroutine owns the side effects.
		winner, ferr := r.orders.FindByPaymentRef(ctx, customerRef, paymentRef)
		if ferr != nil {
			return nil, r.failed(ctx, apperrors.Wrap(apperrors.ErrReconciliation, ferr))
		}
		log.Info("Lost order creation race", zap.String("order_id", winner.ID.String()))
		RecordCountAsync(r.metrics, awspkg.MetricDuplicateDeliveries)
		return &ReconcileResult{Order: winner, Outcome: OutcomeDuplicate}, nil
	}

	log = log.With(zap.String("order_id", order.ID.String()))
	log.Info("Order created",
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.String("currency", order.Currency),
		zap.Int("items", len(order.CartSnapshot)),
	)
	RecordCountAsync(r.metrics, awspkg.MetricOrdersCreated)

	result := &ReconcileResult{Order: order, Outcome: OutcomeCreated}
	notifyErr := r.createNotification(ctx, order)
	if notifyErr != nil {
		r.notificationFailed(ctx, log, event.EventID, order, notifyErr)
	} else {
		r.recordEvent(ctx, log, event, order)
	}
	r.afterCreate(ctx, log, order)
	return result, notifyErr
}

// afterCreate runs the best-effort side effects of a new order, each on its
// own deadline detached from the reconcile context.
func (r *OrderReconciler) afterCreate(ctx context.Context, log *zap.Logger, order *models.Order) {
	base := context.WithoutCancel(ctx)

	pubCtx, cancel := context.WithTimeout(base, r.sideEffectTimeout)
	r.publishOrderCreated(pubCtx, log, order)
	cancel()

	pendingCtx, cancel := context.WithTimeout(base, r.sideEffectTimeout)
	r.markPendingCompleted(pendingCtx, log, order.SessionID)
	cancel()
}

// RepairNotification creates the missing notification of an existing order.
// It is a no-op when the notification already exists.
func (r *OrderReconciler) RepairNotification(ctx context.Context, orderID uuid.UUID) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	order, err := r.orders.FindByID(ctx, orderID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconciliation, fmt.Errorf("load order %s: %w", orderID, err))
	}
	return r.ensureNotification(ctx, order)
}

func (r *OrderReconciler) fromLedger(ctx context.Context, log *zap.Logger, eventID string) *models.Order {
	rec, err := r.ledger.Lookup(ctx, eventID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn("Event ledger lookup failed", zap.Error(err))
		}
		return nil
	}
	orderID, err := uuid.Parse(rec.OrderID)
	if err != nil {
		return nil
	}
	order, err := r.orders.FindByID(ctx, orderID)
	if err != nil {
		// Fall back to the full pipeline; the unique index still guards it.
		log.Warn("Ledger points at unreadable order", zap.String("order_id", rec.OrderID), zap.Error(err))
		return nil
	}
	return order
}

// resolveCart prefers the PendingCheckout recorded at session creation and
// falls back to the cart stored on the Stripe customer.
func (r *OrderReconciler) resolveCart(ctx context.Context, log *zap.Logger, event *models.PaymentEvent) (string, []models.CartItem, error) {
	if event.SessionID != "" && r.pending != nil {
		p, err := r.pending.FindBySessionID(ctx, event.SessionID)
		switch {
		case err == nil:
			customerRef := event.CustomerRef
			if customerRef == "" {
				customerRef = p.CustomerRef
			}
			return customerRef, models.CloneCart(p.CartSnapshot), nil
		case !errors.Is(err, repository.ErrNotFound):
			log.Warn("Pending checkout lookup failed, falling back to customer metadata", zap.Error(err))
		}
	}

	if event.CustomerRef == "" {
		return "", nil, apperrors.Wrap(apperrors.ErrCustomerLookupFailed, fmt.Errorf("event %s carries no customer", event.EventID))
	}
	cust, err := r.stripe.GetCustomer(ctx, event.CustomerRef)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, apperrors.Wrap(apperrors.ErrReconciliation, fmt.Errorf("customer lookup: %w", ctx.Err()))
		}
		return "", nil, apperrors.Wrap(apperrors.ErrCustomerLookupFailed, err)
	}
	raw, ok := cust.Metadata[cartMetadataKey]
	if !ok || raw == "" {
		return "", nil, apperrors.Wrap(apperrors.ErrCustomerLookupFailed, fmt.Errorf("customer %s has no cart metadata", event.CustomerRef))
	}
	var items []models.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrCustomerLookupFailed, fmt.Errorf("decode cart metadata: %w", err))
	}
	return event.CustomerRef, items, nil
}

func (r *OrderReconciler) duplicate(ctx context.Context, log *zap.Logger, event *models.PaymentEvent, order *models.Order) (*ReconcileResult, error) {
	RecordCountAsync(r.metrics, awspkg.MetricDuplicateDeliveries)
	result := &ReconcileResult{Order: order, Outcome: OutcomeDuplicate}

	if err := r.ensureNotification(ctx, order); err != nil {
		r.notificationFailed(ctx, log, event.EventID, order, err)
		return result, err
	}
	r.markPendingCompleted(ctx, log, order.SessionID)
	r.recordEvent(ctx, log, event, order)
	return result, nil
}

func (r *OrderReconciler) ensureNotification(ctx context.Context, order *models.Order) error {
	_, err := r.notifications.FindByOrderID(ctx, order.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.Wrap(apperrors.ErrNotificationPersistFailed, err)
	}
	return r.createNotification(ctx, order)
}

func (r *OrderReconciler) createNotification(ctx context.Context, order *models.Order) error {
	n := &models.Notification{
		UserRef: order.CustomerRef,
		OrderID: order.ID,
		Message: NotificationMessage(order.ID),
	}
	err := r.notifications.Create(ctx, n)
	if err == nil || errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrNotificationPersistFailed, err)
}

func (r *OrderReconciler) notificationFailed(ctx context.Context, log *zap.Logger, eventID string, order *models.Order, err error) {
	log.Error("Failed to persist notification, order kept", zap.Error(err))
	RecordCountAsync(r.metrics, awspkg.MetricNotificationFailures)

	if r.repairs == nil {
		return
	}
	body, _ := json.Marshal(models.NotificationRepairRequest{OrderID: order.ID.String(), EventID: eventID})
	if qerr := r.repairs.SendMessage(context.WithoutCancel(ctx), string(body)); qerr != nil {
		log.Error("Failed to enqueue notification repair", zap.Error(qerr))
	}
}

func (r *OrderReconciler) publishOrderCreated(ctx context.Context, log *zap.Logger, order *models.Order) {
	if r.publisher == nil || r.topicArn == "" {
		return
	}
	payload, _ := json.Marshal(models.OrderCreatedEvent{
		EventType: orderCreatedEventType,
		Recipient: order.CustomerRef,
		Data: map[string]interface{}{
			"order_id":     order.ID.String(),
			"customer_ref": order.CustomerRef,
			"session_id":   order.SessionID,
			"total":        order.TotalAmount.StringFixed(2),
			"currency":     order.Currency,
			"items":        len(order.CartSnapshot),
		},
	})
	if err := r.publisher.Publish(ctx, r.topicArn, payload); err != nil {
		log.Error("Failed to publish order event to SNS", zap.Error(err))
		return
	}
	log.Info("Order event published to SNS", zap.String("event_type", orderCreatedEventType))
}

func (r *OrderReconciler) markPendingCompleted(ctx context.Context, log *zap.Logger, sessionID string) {
	if r.pending == nil || sessionID == "" {
		return
	}
	if err := r.pending.MarkCompleted(ctx, sessionID); err != nil {
		log.Warn("Failed to mark pending checkout completed", zap.Error(err))
	}
}

func (r *OrderReconciler) recordEvent(ctx context.Context, log *zap.Logger, event *models.PaymentEvent, order *models.Order) {
	err := r.ledger.Record(ctx, &models.WebhookEventRecord{
		EventID:     event.EventID,
		EventType:   event.Type,
		OrderID:     order.ID.String(),
		ProcessedAt: r.now().UTC(),
	})
	if err != nil {
		log.Warn("Failed to record webhook event", zap.Error(err))
	}
}

func (r *OrderReconciler) failed(ctx context.Context, err error) error {
	if ctx.Err() != nil && !errors.Is(err, apperrors.ErrReconciliation) {
		err = apperrors.Wrap(apperrors.ErrReconciliation, err)
	}
	RecordCountAsync(r.metrics, awspkg.MetricReconciliationFailures)
	return err
}
