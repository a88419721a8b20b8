package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.  This service only ever
// writes OrderPending; the payment webhook moves orders further.
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

// Order records one checkout attempt.  Total always equals Subtotal when
// the order is created because member discounts are already folded into
// the unit prices of the line items.
type Order struct {
	ID                    string          `json:"id"`
	ActorID               string          `json:"actor_id"`
	Status                OrderStatus     `json:"status"`
	Currency              string          `json:"currency"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountTotal         decimal.Decimal `json:"discount_total"`
	Total                 decimal.Decimal `json:"total"`
	BuyerName             string          `json:"buyer_name"`
	BuyerEmail            string          `json:"buyer_email"`
	BuyerPhone            string          `json:"buyer_phone"`
	MembershipApplied     bool            `json:"membership_applied"`
	MemberDiscountPercent decimal.Decimal `json:"member_discount_percent"`
	Items                 []LineItem      `json:"items"`
	CampusID              *string         `json:"campus_id,omitempty"`
	VippsSessionID        *string         `json:"vipps_session_id,omitempty"`
	VippsCheckoutURL      *string         `json:"vipps_checkout_url,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// LineItem is one priced entry of an order.  It is stored inside the
// order (orders.items_json) rather than in its own table.
type LineItem struct {
	ProductID      string                `json:"product_id"`
	ProductSlug    string                `json:"product_slug"`
	Title          string                `json:"title"`
	UnitPrice      decimal.Decimal       `json:"unit_price"`
	Quantity       int                   `json:"quantity"`
	VariationID    string                `json:"variation_id,omitempty"`
	VariationName  string                `json:"variation_name,omitempty"`
	VariationPrice *decimal.Decimal      `json:"variation_price,omitempty"`
	CustomFields   []CustomFieldResponse `json:"custom_fields,omitempty"`
}

// CustomFieldResponse is the buyer's trimmed answer to a product custom
// field.
type CustomFieldResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}
