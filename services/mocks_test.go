package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

// --- Stripe ---

type MockStripeGateway struct{ mock.Mock }

func (m *MockStripeGateway) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Customer), args.Error(1)
}

func (m *MockStripeGateway) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Customer), args.Error(1)
}

func (m *MockStripeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

// --- In-memory store with the same uniqueness rules as the schema ---

type memOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]models.Order
	findErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[uuid.UUID]models.Order{}}
}

func (r *memOrderRepo) Create(ctx context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	for _, existing := range r.orders {
		if existing.CustomerRef == o.CustomerRef && existing.PaymentIntentRef == o.PaymentIntentRef {
			return repository.ErrDuplicate
		}
	}
	stored := *o
	stored.CartSnapshot = models.CloneCart(o.CartSnapshot)
	r.orders[o.ID] = stored
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) FindByPaymentRef(ctx context.Context, customerRef, paymentIntentRef string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, o := range r.orders {
		if o.CustomerRef == customerRef && o.PaymentIntentRef == paymentIntentRef {
			found := o
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *memOrderRepo) all() []models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out
}

type memNotificationRepo struct {
	mu        sync.Mutex
	byOrder   map[uuid.UUID]models.Notification
	nextID    int64
	createErr error
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{byOrder: map[uuid.UUID]models.Notification{}}
}

func (r *memNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byOrder[n.OrderID]; ok {
		return repository.ErrDuplicate
	}
	r.nextID++
	n.ID = r.nextID
	n.CreatedAt = time.Now()
	r.byOrder[n.OrderID] = *n
	return nil
}

func (r *memNotificationRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byOrder[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &n, nil
}

func (r *memNotificationRepo) setCreateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func (r *memNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byOrder)
}

type memPendingRepo struct {
	mu        sync.Mutex
	bySession map[string]models.PendingCheckout
	createErr error
}

func newMemPendingRepo() *memPendingRepo {
	return &memPendingRepo{bySession: map[string]models.PendingCheckout{}}
}

func (r *memPendingRepo) Create(ctx context.Context, p *models.PendingCheckout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.bySession[p.SessionID]; ok {
		return repository.ErrDuplicate
	}
	r.bySession[p.SessionID] = *p
	return nil
}

func (r *memPendingRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.PendingCheckout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.bySession[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *memPendingRepo) MarkCompleted(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.bySession[sessionID]
	if !ok {
		return nil
	}
	p.Status = models.PendingStatusCompleted
	r.bySession[sessionID] = p
	return nil
}

func (r *memPendingRepo) get(sessionID string) (models.PendingCheckout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.bySession[sessionID]
	return p, ok
}

type memLedger struct {
	mu      sync.Mutex
	records map[string]models.WebhookEventRecord
}

func newMemLedger() *memLedger {
	return &memLedger{records: map[string]models.WebhookEventRecord{}}
}

func (l *memLedger) Lookup(ctx context.Context, eventID string) (*models.WebhookEventRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (l *memLedger) Record(ctx context.Context, rec *models.WebhookEventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[rec.EventID]; !ok {
		l.records[rec.EventID] = *rec
	}
	return nil
}

// --- AWS side effects ---

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
	// blockUntilDone makes Publish hang like an unresponsive SNS endpoint.
	blockUntilDone bool
}

func (p *fakePublisher) Publish(ctx context.Context, topicArn string, message []byte) error {
	if p.blockUntilDone {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type fakeQueue struct {
	mu     sync.Mutex
	bodies []string
}

func (q *fakeQueue) SendMessage(ctx context.Context, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bodies = append(q.bodies, body)
	return nil
}

// --- Webhook payloads ---

const testWebhookSecret = "whsec_test_secret"

func completedEventJSON(eventID, sessionID, customerID, paymentIntentID string, amountTotal int64) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2024-06-20","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session","customer":%q,"payment_intent":%q,"payment_status":"paid","amount_total":%d,"currency":"usd"}}}`,
		eventID, sessionID, customerID, paymentIntentID, amountTotal))
}

func signHeader(payload []byte, secret string, ts time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: ts,
	}).Header
}

func completedEvent(eventID, sessionID, customerID, paymentIntentID string, amountTotal int64) *models.PaymentEvent {
	return &models.PaymentEvent{
		EventID:               eventID,
		Type:                  models.EventCheckoutCompleted,
		SessionID:             sessionID,
		CustomerRef:           customerID,
		PaymentStatus:         models.PaymentStatusPaid,
		PaymentIntentRef:      paymentIntentID,
		AmountTotalMinorUnits: amountTotal,
		Currency:              "usd",
	}
}
