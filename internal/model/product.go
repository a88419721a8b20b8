package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a webshop product as seen by the checkout pipeline.  It is
// read-only to this service; the catalogue is maintained elsewhere.
//
// Fields:
//
//	ID       – products.id
//	Slug     – products.slug, copied onto line items
//	Title    – products.title
//	Price    – products.price; invalid when the column is NULL
//	Stock    – products.stock; nil means untracked (unlimited)
//	CampusID – products.campus_id (nullable)
//	Metadata – validated products.metadata blob
type Product struct {
	ID       string
	Slug     string
	Title    string
	Price    decimal.NullDecimal
	Stock    *int
	CampusID *string
	Metadata ProductMetadata
}

// TracksStock reports whether the product has a finite stock count.
func (p Product) TracksStock() bool { return p.Stock != nil }

// Variation looks up a variation by id.  The second return value is false
// when the product has no such variation.
func (p Product) Variation(id string) (Variation, bool) {
	for _, v := range p.Metadata.Variations {
		if v.ID == id {
			return v, true
		}
	}
	return Variation{}, false
}

// ProductMetadata is the typed form of the products.metadata JSON column.
// Every field is optional.
type ProductMetadata struct {
	Variations            []Variation      `json:"variations,omitempty"`
	CustomFields          []CustomField    `json:"custom_fields,omitempty"`
	MemberDiscountEnabled bool             `json:"member_discount_enabled,omitempty"`
	MemberDiscountPercent *decimal.Decimal `json:"member_discount_percent,omitempty"`
	MaxPerOrder           *int             `json:"max_per_order,omitempty"`
	MaxPerUser            *int             `json:"max_per_user,omitempty"`
}

// Variation is a priced variant of a product (size, colour, ...).
type Variation struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// CustomField is a buyer-supplied field requested at checkout.
type CustomField struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
}

// ErrInvalidMetadata is wrapped by ParseMetadata and Validate failures.
var ErrInvalidMetadata = errors.New("invalid product metadata")

// HasMemberDiscount reports whether a member discount is both enabled and
// configured with a positive percentage.
func (m ProductMetadata) HasMemberDiscount() bool {
	return m.MemberDiscountEnabled && m.MemberDiscountPercent != nil && m.MemberDiscountPercent.IsPositive()
}

// ParseMetadata decodes and validates a raw metadata blob.  An empty blob
// yields the zero ProductMetadata.
func ParseMetadata(raw []byte) (ProductMetadata, error) {
	var m ProductMetadata
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return ProductMetadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if err := m.Validate(); err != nil {
		return ProductMetadata{}, err
	}
	return m, nil
}

// Validate checks the invariants the pipeline relies on: unique, non-empty
// variation and custom field ids, a discount percentage within [0,100] and
// positive purchase limits.
func (m ProductMetadata) Validate() error {
	seen := make(map[string]struct{}, len(m.Variations))
	for _, v := range m.Variations {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("%w: variation without id", ErrInvalidMetadata)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("%w: duplicate variation %q", ErrInvalidMetadata, v.ID)
		}
		seen[v.ID] = struct{}{}
	}
	fields := make(map[string]struct{}, len(m.CustomFields))
	for _, f := range m.CustomFields {
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("%w: custom field without id", ErrInvalidMetadata)
		}
		if _, dup := fields[f.ID]; dup {
			return fmt.Errorf("%w: duplicate custom field %q", ErrInvalidMetadata, f.ID)
		}
		fields[f.ID] = struct{}{}
	}
	if p := m.MemberDiscountPercent; p != nil {
		if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: member discount percent %s out of range", ErrInvalidMetadata, p.String())
		}
	}
	if m.MaxPerOrder != nil && *m.MaxPerOrder < 1 {
		return fmt.Errorf("%w: max_per_order must be positive", ErrInvalidMetadata)
	}
	if m.MaxPerUser != nil && *m.MaxPerUser < 1 {
		return fmt.Errorf("%w: max_per_user must be positive", ErrInvalidMetadata)
	}
	return nil
}
