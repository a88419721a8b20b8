// Package checkout turns a raw cart and buyer details into a pending order
// with a Vipps payment session attached.
//
// An attempt moves through validation, pricing, persistence and payment
// initiation.  Any failure aborts the attempt.  An order that was already
// written stays pending without a payment session; nothing is rolled back.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/webshop-checkout/internal/ledger"
	"github.com/iliyamo/webshop-checkout/internal/limits"
	"github.com/iliyamo/webshop-checkout/internal/model"
	"github.com/iliyamo/webshop-checkout/internal/pricing"
	"github.com/iliyamo/webshop-checkout/internal/queue"
	"github.com/iliyamo/webshop-checkout/internal/vipps"
)

// ProductStore loads products by id.
type ProductStore interface {
	GetByID(ctx context.Context, id string) (model.Product, error)
}

// StockLedger is the part of the stock ledger the assembler needs.
type StockLedger interface {
	AvailableFor(ctx context.Context, p model.Product) int
	Reservation(ctx context.Context, productID, actorID string) *model.Reservation
	ReleaseAll(ctx context.Context, actorID string) ledger.Outcome
}

// LimitValidator checks purchase limits for an aggregated quantity.
type LimitValidator interface {
	Validate(ctx context.Context, productID, actorID string, quantity int, p model.Product) (limits.Decision, error)
}

// PaymentGateway creates checkout sessions.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req vipps.SessionRequest) (vipps.Session, error)
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	AttachPaymentSession(ctx context.Context, orderID, sessionID, checkoutURL string) error
}

// EventPublisher announces orders waiting for payment.
type EventPublisher interface {
	PublishOrderPending(ctx context.Context, ev queue.OrderPendingEvent) error
}

// Deps wires an Assembler.  Verifier and Events may be nil.
type Deps struct {
	Products ProductStore
	Stock    StockLedger
	Limits   LimitValidator
	Verifier pricing.Verifier
	Payments PaymentGateway
	Orders   OrderStore
	Events   EventPublisher
	Currency string
}

// Request is one checkout attempt.  StudentID, when set, is used to verify
// membership for member discounts.
type Request struct {
	ActorID   string
	StudentID string
	Lines     []model.CartLine
	Buyer     model.Buyer
}

// Result is what the caller sees.  Error is a user-facing message and is
// set only when Success is false.
type Result struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"payment_url,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Assembler runs checkout attempts.
type Assembler struct {
	d     Deps
	now   func() time.Time
	newID func() string
}

// New returns an Assembler.  It panics when a required dependency is
// missing.
func New(d Deps) *Assembler {
	if d.Products == nil || d.Stock == nil || d.Limits == nil || d.Payments == nil || d.Orders == nil {
		panic("checkout: missing dependency")
	}
	if d.Currency == "" {
		d.Currency = "NOK"
	}
	return &Assembler{
		d:     d,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Checkout runs Assemble and folds every failure into the Result.  It
// never returns an error.
func (a *Assembler) Checkout(ctx context.Context, req Request) Result {
	res, err := a.Assemble(ctx, req)
	if err != nil {
		log.Printf("checkout: actor %s: %v", req.ActorID, err)
		return Result{Success: false, Error: err.Error()}
	}
	return res
}

// MaxLineQuantity is the largest quantity a single cart line may carry.
// Larger values are clamped to it before any stock or limit check.
const MaxLineQuantity = math.MaxInt32

// sanitize drops lines without a product id or with a non-positive
// quantity, floors the remaining quantities and clamps them to
// MaxLineQuantity.
func sanitize(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		l.ProductID = strings.TrimSpace(l.ProductID)
		if l.ProductID == "" || !(l.Quantity > 0) || math.IsInf(l.Quantity, 0) {
			continue
		}
		l.Quantity = min(MaxLineQuantity, max(1, math.Floor(l.Quantity)))
		out = append(out, l)
	}
	return out
}

// Assemble validates and prices the cart, persists a pending order and
// starts the payment.  Failures are returned as the typed errors of this
// package or as wrapped store errors.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Result, error) {
	lines := sanitize(req.Lines)
	if len(lines) == 0 {
		return Result{}, ErrEmptyCart
	}

	requested := make(map[string]int)
	for _, l := range lines {
		requested[l.ProductID] = addQuantity(requested[l.ProductID], int(l.Quantity))
	}

	products := make(map[string]model.Product)
	checked := make(map[string]bool)
	campuses := make(map[string]struct{})
	session := pricing.NewSession(a.d.Verifier, req.StudentID)

	var (
		items         []model.LineItem
		subtotal      = decimal.Zero
		originalTotal = decimal.Zero
		discounted    bool
		maxPercent    = decimal.Zero
	)

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			loaded, err := a.d.Products.GetByID(ctx, l.ProductID)
			if err != nil {
				return Result{}, &ProductUnavailableError{ProductID: l.ProductID, Err: err}
			}
			p = loaded
			products[l.ProductID] = p
		}

		if !checked[p.ID] {
			// Own holds count toward availability here, unlike AvailableStock.
			if err := a.checkStock(ctx, p, req.ActorID, requested[p.ID]); err != nil {
				return Result{}, err
			}
			// Per-user limits are checked against the shared guest actor, so
			// only max_per_order is effectively enforced here.
			d, err := a.d.Limits.Validate(ctx, p.ID, limits.GuestActorID, requested[p.ID], p)
			if err != nil {
				return Result{}, fmt.Errorf("validate purchase limit: %w", err)
			}
			if !d.Allowed {
				return Result{}, &PurchaseLimitExceededError{Reason: d.Reason}
			}
			checked[p.ID] = true
		}

		var variation *model.Variation
		if l.VariationID != "" {
			if v, ok := p.Variation(l.VariationID); ok {
				variation = &v
			}
		}

		q, err := session.Price(ctx, p, variation)
		if err != nil {
			if errors.Is(err, pricing.ErrMissingPrice) {
				return Result{}, &PriceUnavailableError{ProductTitle: p.Title}
			}
			return Result{}, err
		}
		qty := decimal.NewFromInt(int64(l.Quantity))
		subtotal = subtotal.Add(q.DiscountedUnit.Mul(qty))
		originalTotal = originalTotal.Add(q.OriginalUnit.Mul(qty))
		if q.DiscountApplied {
			discounted = true
			maxPercent = decimal.Max(maxPercent, q.DiscountPercent)
		}

		responses, err := customFieldResponses(p, l.CustomFields)
		if err != nil {
			return Result{}, err
		}

		if p.CampusID != nil && *p.CampusID != "" {
			campuses[*p.CampusID] = struct{}{}
		}

		item := model.LineItem{
			ProductID:    p.ID,
			ProductSlug:  p.Slug,
			Title:        p.Title,
			UnitPrice:    q.DiscountedUnit,
			Quantity:     int(l.Quantity),
			CustomFields: responses,
		}
		if variation != nil {
			price := q.VariationModifier
			item.VariationID = variation.ID
			item.VariationName = variation.Name
			item.VariationPrice = &price
		}
		items = append(items, item)
	}

	amount, err := MinorUnits(subtotal)
	if err != nil {
		return Result{}, err
	}

	now := a.now()
	order := &model.Order{
		ID:                    a.newID(),
		ActorID:               req.ActorID,
		Status:                model.OrderPending,
		Currency:              a.d.Currency,
		Subtotal:              subtotal,
		DiscountTotal:         decimal.Max(decimal.Zero, originalTotal.Sub(subtotal)),
		Total:                 subtotal,
		BuyerName:             strings.TrimSpace(req.Buyer.Name),
		BuyerEmail:            strings.TrimSpace(req.Buyer.Email),
		BuyerPhone:            strings.TrimSpace(req.Buyer.Phone),
		MembershipApplied:     discounted,
		MemberDiscountPercent: maxPercent,
		Items:                 items,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if len(campuses) == 1 {
		for c := range campuses {
			order.CampusID = &c
		}
	}

	if err := a.d.Orders.Create(ctx, order); err != nil {
		return Result{}, fmt.Errorf("create order: %w", err)
	}

	first, last := splitName(order.BuyerName)
	sess, err := a.d.Payments.CreateCheckoutSession(ctx, vipps.SessionRequest{
		AmountMinorUnits: amount,
		Currency:         order.Currency,
		Reference:        order.ID,
		Description:      describe(items),
		Email:            order.BuyerEmail,
		FirstName:        first,
		LastName:         last,
		PhoneNumber:      order.BuyerPhone,
		OrderID:          order.ID,
	})
	if err != nil {
		return Result{}, &PaymentInitiationError{OrderID: order.ID, Err: err}
	}

	if err := a.d.Orders.AttachPaymentSession(ctx, order.ID, sess.Token, sess.CheckoutFrontendURL); err != nil {
		return Result{}, fmt.Errorf("attach payment session: %w", err)
	}

	if req.ActorID != "" {
		if out := a.d.Stock.ReleaseAll(ctx, req.ActorID); !out.Success {
			log.Printf("checkout: release holds of %s: %s", req.ActorID, out.Message)
		}
	}
	a.publish(ctx, order, amount, sess.Token)

	return Result{Success: true, PaymentURL: sess.CheckoutFrontendURL, OrderID: order.ID}, nil
}

// checkStock compares the aggregated quantity with what is available.  The
// actor's own active hold on the product is counted as available to them.
func (a *Assembler) checkStock(ctx context.Context, p model.Product, actorID string, want int) error {
	if !p.TracksStock() {
		return nil
	}
	available := a.d.Stock.AvailableFor(ctx, p)
	if actorID != "" && available != ledger.Unlimited {
		if own := a.d.Stock.Reservation(ctx, p.ID, actorID); own != nil {
			available = min(*p.Stock, available+own.Quantity)
		}
	}
	if available <= 0 {
		return &OutOfStockError{ProductTitle: p.Title}
	}
	if available < want {
		return &InsufficientStockError{ProductTitle: p.Title, Available: available, Requested: want}
	}
	return nil
}

func customFieldResponses(p model.Product, answers map[string]string) ([]model.CustomFieldResponse, error) {
	var (
		out     []model.CustomFieldResponse
		missing []string
	)
	for _, f := range p.Metadata.CustomFields {
		v := strings.TrimSpace(answers[f.ID])
		if v == "" {
			if f.Required {
				missing = append(missing, f.Label)
			}
			continue
		}
		out = append(out, model.CustomFieldResponse{ID: f.ID, Label: f.Label, Value: v})
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredFieldError{ProductTitle: p.Title, Labels: missing}
	}
	return out, nil
}

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// MinorUnits converts an amount to øre, rounding half away from zero.  It
// fails with ErrTotalOutOfRange when the result does not fit in an int64.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	m := amount.Mul(decimal.NewFromInt(100)).Round(0)
	if m.LessThan(minMinor) || m.GreaterThan(maxMinor) {
		return 0, ErrTotalOutOfRange
	}
	return m.IntPart(), nil
}

// addQuantity sums quantities, saturating at math.MaxInt.
func addQuantity(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

func describe(items []model.LineItem) string {
	parts := make([]string, 0, 2)
	for i, it := range items {
		if i == 2 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s x %d", it.Title, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func splitName(name string) (first, last string) {
	first, last, _ = strings.Cut(strings.TrimSpace(name), " ")
	return first, strings.TrimSpace(last)
}

func (a *Assembler) publish(ctx context.Context, o *model.Order, amount int64, sessionID string) {
	if a.d.Events == nil {
		return
	}
	ev := queue.OrderPendingEvent{
		OrderID:           o.ID,
		ActorID:           o.ActorID,
		Currency:          o.Currency,
		TotalMinorUnits:   amount,
		DiscountTotal:     o.DiscountTotal.StringFixed(2),
		MembershipApplied: o.MembershipApplied,
		VippsSessionID:    sessionID,
		CreatedAt:         o.CreatedAt.Format(time.RFC3339),
	}
	if o.CampusID != nil {
		ev.CampusID = *o.CampusID
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, fmt.Sprintf("%s x %d", it.Title, it.Quantity))
	}
	if err := a.d.Events.PublishOrderPending(ctx, ev); err != nil {
		log.Printf("checkout: publish order %s: %v", o.ID, err)
	}
}
