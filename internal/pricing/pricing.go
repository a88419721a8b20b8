// Package pricing computes unit prices for products and their variations,
// applying the member discount when the buyer is a verified member.
package pricing

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/webshop-checkout/internal/model"
)

// ErrMissingPrice is returned for products whose price is not set.  Such a
// product is never sold for free.
var ErrMissingPrice = errors.New("product has no price")

var hundred = decimal.NewFromInt(100)

// Quote is the resolved unit price of one (product, variation) pair.
// DiscountPercent is zero unless DiscountApplied is true.
type Quote struct {
	OriginalUnit      decimal.Decimal
	DiscountedUnit    decimal.Decimal
	DiscountApplied   bool
	DiscountPercent   decimal.Decimal
	VariationModifier decimal.Decimal
}

// Resolve prices a product.  The original unit price is the product price
// plus the variation modifier, clamped at zero.  The member discount is
// applied only when the product enables it with a positive percentage and
// member is true.
func Resolve(p model.Product, v *model.Variation, member bool) (Quote, error) {
	if !p.Price.Valid {
		return Quote{}, ErrMissingPrice
	}
	modifier := decimal.Zero
	if v != nil {
		modifier = v.PriceModifier
	}
	original := decimal.Max(decimal.Zero, p.Price.Decimal.Add(modifier))
	q := Quote{
		OriginalUnit:      original,
		DiscountedUnit:    original,
		DiscountPercent:   decimal.Zero,
		VariationModifier: modifier,
	}
	if member && p.Metadata.HasMemberDiscount() {
		pct := *p.Metadata.MemberDiscountPercent
		factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))
		q.DiscountedUnit = decimal.Max(decimal.Zero, original.Mul(factor))
		q.DiscountApplied = true
		q.DiscountPercent = pct
	}
	return q, nil
}

// Verifier checks whether a student id belongs to an active member.
type Verifier interface {
	Verify(ctx context.Context, studentID string) (bool, error)
}

// Session prices all lines of a single checkout.  The membership check is
// made at most once per session, and only if some product actually offers
// a member discount; per-product eligibility is memoized by product id so
// every line of the same product sees the same answer.  A Session is not
// safe for concurrent use.
type Session struct {
	verifier  Verifier
	studentID string

	checked  bool
	member   bool
	eligible map[string]bool
}

// NewSession starts a pricing session for a buyer.  An empty studentID or
// a nil verifier means the buyer is never treated as a member.
func NewSession(v Verifier, studentID string) *Session {
	return &Session{
		verifier:  v,
		studentID: strings.TrimSpace(studentID),
		eligible:  make(map[string]bool),
	}
}

// IsMember reports the buyer's membership, verifying it on first use.
// Verification errors count as "not a member".
func (s *Session) IsMember(ctx context.Context) bool {
	if s.checked {
		return s.member
	}
	s.checked = true
	if s.verifier == nil || s.studentID == "" {
		return false
	}
	ok, err := s.verifier.Verify(ctx, s.studentID)
	if err != nil {
		log.Printf("pricing: membership verification failed: %v", err)
		return false
	}
	s.member = ok
	return s.member
}

// Eligible reports whether the member discount applies to product p in
// this session.
func (s *Session) Eligible(ctx context.Context, p model.Product) bool {
	if ok, seen := s.eligible[p.ID]; seen {
		return ok
	}
	ok := p.Metadata.HasMemberDiscount() && s.IsMember(ctx)
	s.eligible[p.ID] = ok
	return ok
}

// Price resolves the unit price of p with an optional variation.
func (s *Session) Price(ctx context.Context, p model.Product, v *model.Variation) (Quote, error) {
	if !p.Price.Valid {
		return Quote{}, ErrMissingPrice
	}
	return Resolve(p, v, s.Eligible(ctx, p))
}
