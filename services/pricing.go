package services

import (
	"fmt"
	"strings"

	apperrors "checkout-service/errors"
	"checkout-service/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate = validator.New()
	hundred  = decimal.NewFromInt(100)
)

// TotalPrice sums unitPrice × quantity over the cart. An empty cart totals zero.
func TotalPrice(items []models.CartItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for i, item := range items {
		if err := validateItem(item); err != nil {
			return decimal.Zero, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("item %d: %w", i, err))
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total, nil
}

func validateItem(item models.CartItem) error {
	if err := validate.Struct(item); err != nil {
		return err
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("unit price %s is negative", item.UnitPrice)
	}
	return nil
}

// ToMinorUnits converts a major-unit amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// cartCurrency returns the single lower-cased currency of a non-empty cart.
func cartCurrency(items []models.CartItem) (string, error) {
	if len(items) == 0 {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("cart is empty"))
	}
	currency := strings.ToLower(items[0].Currency)
	for _, item := range items[1:] {
		if strings.ToLower(item.Currency) != currency {
			return "", apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("mixed currencies %s and %s", currency, item.Currency))
		}
	}
	return currency, nil
}
