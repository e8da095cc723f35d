package models

import "github.com/shopspring/decimal"

// CartItem is a single line of a checkout cart. UnitPrice is in major units
// (e.g. 25.00 USD); conversion to minor units happens at the Stripe boundary.
type CartItem struct {
	ItemID      string          `json:"itemId" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Description string          `json:"description,omitempty"`
	ImageRef    string          `json:"imageRef,omitempty"`
}

// CheckoutSession is returned to the frontend after a Stripe session is opened.
type CheckoutSession struct {
	ProviderCustomerRef string     `json:"customer_ref"`
	SessionID           string     `json:"session_id"`
	CartSnapshot        []CartItem `json:"cart"`
	RedirectURL         string     `json:"url"`
}

// CloneCart returns a deep copy so orders never share a slice with the session.
func CloneCart(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}
