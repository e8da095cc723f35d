package services

import (
	"context"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

// StripeGateway is the subset of the Stripe API the service calls. Every call
// carries ctx so the caller's deadline bounds the request.
type StripeGateway interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeAPI builds a Stripe client with its own key and HTTP timeout
// instead of the package-level stripe.Key.
func NewStripeAPI(secretKey string, timeout time.Duration) *client.API {
	httpClient := &http.Client{Timeout: timeout}
	cfg := func() *stripe.BackendConfig {
		return &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(2),
		}
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg()),
	}

	sc := &client.API{}
	sc.Init(secretKey, backends)
	return sc
}

type stripeGateway struct {
	api *client.API
}

// NewStripeGateway adapts a Stripe client to StripeGateway.
func NewStripeGateway(api *client.API) StripeGateway {
	return &stripeGateway{api: api}
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return g.api.Customers.New(params)
}

func (g *stripeGateway) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return g.api.Customers.Get(id, params)
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return g.api.CheckoutSessions.New(params)
}
