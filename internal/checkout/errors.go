package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCart is returned when no valid line survives sanitization.
var ErrEmptyCart = errors.New("Your cart is empty")

// ErrTotalOutOfRange is returned when the order total cannot be expressed
// in minor units.
var ErrTotalOutOfRange = errors.New("Your order total is too large")

// ProductUnavailableError means a cart line references a product that can
// no longer be loaded.
type ProductUnavailableError struct {
	ProductID string
	Err       error
}

func (e *ProductUnavailableError) Error() string {
	return "A product in your cart is no longer available"
}

func (e *ProductUnavailableError) Unwrap() error { return e.Err }

// OutOfStockError means nothing of the product is left to sell.
type OutOfStockError struct {
	ProductTitle string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s is out of stock", e.ProductTitle)
}

// InsufficientStockError means fewer units are available than requested
// across all lines of the product.
type InsufficientStockError struct {
	ProductTitle string
	Available    int
	Requested    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Only %d of %s available (you requested %d)", e.Available, e.ProductTitle, e.Requested)
}

// PurchaseLimitExceededError carries the limit validator's reason as is.
type PurchaseLimitExceededError struct {
	Reason string
}

func (e *PurchaseLimitExceededError) Error() string { return e.Reason }

// MissingRequiredFieldError names a product and the labels of its required
// custom fields that were left blank.
type MissingRequiredFieldError struct {
	ProductTitle string
	Labels       []string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("Please fill in %s for %s", strings.Join(e.Labels, ", "), e.ProductTitle)
}

// PriceUnavailableError means a product has no price and cannot be sold.
type PriceUnavailableError struct {
	ProductTitle string
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("%s cannot be purchased right now", e.ProductTitle)
}

// PaymentInitiationError means the payment gateway did not create a
// session.  The order is left pending without a session.
type PaymentInitiationError struct {
	OrderID string
	Err     error
}

func (e *PaymentInitiationError) Error() string {
	return "Could not start payment, please try again"
}

func (e *PaymentInitiationError) Unwrap() error { return e.Err }
