package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/webshop-checkout/internal/ledger"
	"github.com/iliyamo/webshop-checkout/internal/limits"
	"github.com/iliyamo/webshop-checkout/internal/model"
	"github.com/iliyamo/webshop-checkout/internal/queue"
	"github.com/iliyamo/webshop-checkout/internal/vipps"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// ---- fakes ----

type catalog map[string]model.Product

func (c catalog) GetByID(_ context.Context, id string) (model.Product, error) {
	p, ok := c[id]
	if !ok {
		return model.Product{}, errors.New("not found")
	}
	return p, nil
}

type holds struct{ rows []model.Reservation }

func (h *holds) SumActiveQuantity(_ context.Context, productID string, now time.Time) (int, error) {
	sum := 0
	for _, r := range h.rows {
		if r.ProductID == productID && r.ExpiresAt.After(now) {
			sum += r.Quantity
		}
	}
	return sum, nil
}

func (h *holds) FindByProductActor(_ context.Context, productID, actorID string) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range h.rows {
		if r.ProductID == productID && r.ActorID == actorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *holds) Insert(_ context.Context, r model.Reservation) error {
	h.rows = append(h.rows, r)
	return nil
}

func (h *holds) Update(_ context.Context, id string, quantity int, expiresAt time.Time) error {
	for i := range h.rows {
		if h.rows[i].ID == id {
			h.rows[i].Quantity, h.rows[i].ExpiresAt = quantity, expiresAt
		}
	}
	return nil
}

func (h *holds) remove(pred func(model.Reservation) bool) int {
	var kept []model.Reservation
	for _, r := range h.rows {
		if !pred(r) {
			kept = append(kept, r)
		}
	}
	n := len(h.rows) - len(kept)
	h.rows = kept
	return n
}

func (h *holds) DeleteByID(_ context.Context, id string) error {
	h.remove(func(r model.Reservation) bool { return r.ID == id })
	return nil
}

func (h *holds) DeleteByProductActor(_ context.Context, productID, actorID string) (int, error) {
	return h.remove(func(r model.Reservation) bool { return r.ProductID == productID && r.ActorID == actorID }), nil
}

func (h *holds) DeleteByActor(_ context.Context, actorID string) (int, error) {
	return h.remove(func(r model.Reservation) bool { return r.ActorID == actorID }), nil
}

func (h *holds) DeleteExpiredByActor(_ context.Context, actorID string, now time.Time) (int, error) {
	return h.remove(func(r model.Reservation) bool { return r.ActorID == actorID && !r.ExpiresAt.After(now) }), nil
}

func (h *holds) ListActiveByActor(_ context.Context, actorID string, now time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range h.rows {
		if r.ActorID == actorID && r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

type orders struct {
	created  []*model.Order
	sessions map[string]string
	err      error
}

func (o *orders) Create(_ context.Context, order *model.Order) error {
	if o.err != nil {
		return o.err
	}
	o.created = append(o.created, order)
	return nil
}

func (o *orders) AttachPaymentSession(_ context.Context, orderID, sessionID, url string) error {
	if o.sessions == nil {
		o.sessions = map[string]string{}
	}
	o.sessions[orderID] = sessionID
	for _, c := range o.created {
		if c.ID == orderID {
			c.VippsSessionID, c.VippsCheckoutURL = &sessionID, &url
		}
	}
	return nil
}

type gateway struct {
	got []vipps.SessionRequest
	err error
}

func (g *gateway) CreateCheckoutSession(_ context.Context, req vipps.SessionRequest) (vipps.Session, error) {
	g.got = append(g.got, req)
	if g.err != nil {
		return vipps.Session{}, g.err
	}
	return vipps.Session{Token: "sess-" + req.Reference, CheckoutFrontendURL: "https://pay.example/" + req.Reference}, nil
}

type verifier struct {
	member bool
	calls  int
}

func (v *verifier) Verify(context.Context, string) (bool, error) {
	v.calls++
	return v.member, nil
}

type events struct{ got []queue.OrderPendingEvent }

func (e *events) PublishOrderPending(_ context.Context, ev queue.OrderPendingEvent) error {
	e.got = append(e.got, ev)
	return nil
}

type fixture struct {
	catalog  catalog
	holds    *holds
	ledger   *ledger.Ledger
	orders   *orders
	gateway  *gateway
	verifier *verifier
	events   *events
	asm      *Assembler
}

func newFixture(products ...model.Product) *fixture {
	f := &fixture{
		catalog:  catalog{},
		holds:    &holds{},
		orders:   &orders{},
		gateway:  &gateway{},
		verifier: &verifier{},
		events:   &events{},
	}
	for _, p := range products {
		f.catalog[p.ID] = p
	}
	f.ledger = ledger.New(f.holds, f.catalog).WithClock(func() time.Time { return epoch })
	f.asm = New(Deps{
		Products: f.catalog,
		Stock:    f.ledger,
		Limits:   limits.NewValidator(nil),
		Verifier: f.verifier,
		Payments: f.gateway,
		Orders:   f.orders,
		Events:   f.events,
		Currency: "NOK",
	})
	f.asm.now = func() time.Time { return epoch }
	seq := 0
	f.asm.newID = func() string {
		seq++
		return fmt.Sprintf("order-%d", seq)
	}
	return f
}

func (f *fixture) hold(productID, actorID string, qty int, expiresAt time.Time) {
	f.holds.rows = append(f.holds.rows, model.Reservation{
		ID: fmt.Sprintf("r%d", len(f.holds.rows)+1), ProductID: productID, ActorID: actorID, Quantity: qty, ExpiresAt: expiresAt,
	})
}

// ---- product builders ----

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(id, title, price string) model.Product {
	return model.Product{ID: id, Slug: id, Title: title, Price: decimal.NewNullDecimal(dec(price))}
}

func stocked(p model.Product, n int) model.Product {
	p.Stock = &n
	return p
}

func line(productID string, qty float64) model.CartLine {
	return model.CartLine{ProductID: productID, Quantity: qty}
}

var buyer = model.Buyer{Name: "Ola Nordmann Jr", Email: "ola@example.com", Phone: "4799999999"}

// ---- tests ----

func TestScenarioStockAvailable(t *testing.T) {
	f := newFixture(stocked(item("tee", "T-shirt", "150"), 5))
	if got := f.ledger.AvailableStock(context.Background(), "tee"); got != 5 {
		t.Fatalf("expected 5 available, got %d", got)
	}
	res := f.asm.Checkout(context.Background(), Request{ActorID: "u1", Lines: []model.CartLine{line("tee", 3)}, Buyer: buyer})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.OrderID != "order-1" || res.PaymentURL != "https://pay.example/order-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	o := f.orders.created[0]
	if o.Status != model.OrderPending || !o.Total.Equal(dec("450")) || !o.Total.Equal(o.Subtotal) {
		t.Fatalf("unexpected order %+v", o)
	}
	if o.VippsSessionID == nil || *o.VippsSessionID != "sess-order-1" {
		t.Fatalf("expected session attached, got %v", o.VippsSessionID)
	}
	req := f.gateway.got[0]
	if req.AmountMinorUnits != 45000 || req.Reference != "order-1" || req.Description != "T-shirt x 3" {
		t.Fatalf("unexpected gateway request %+v", req)
	}
	if req.FirstName != "Ola" || req.LastName != "Nordmann Jr" {
		t.Fatalf("unexpected name split %q / %q", req.FirstName, req.LastName)
	}
	if len(f.events.got) != 1 || f.events.got[0].TotalMinorUnits != 45000 {
		t.Fatalf("expected one order.pending event, got %+v", f.events.got)
	}
}

func TestScenarioInsufficientStock(t *testing.T) {
	f := newFixture(stocked(item("tee", "T-shirt", "150"), 5))
	f.hold("tee", "someone-else", 4, epoch.Add(5*time.Minute))

	if got := f.ledger.AvailableStock(context.Background(), "tee"); got != 1 {
		t.Fatalf("expected 1 available, got %d", got)
	}
	_, err := f.asm.Assemble(context.Background(), Request{ActorID: "u1", Lines: []model.CartLine{line("tee", 2)}})
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.Available != 1 || ise.Requested != 2 {
		t.Fatalf("unexpected counts %+v", ise)
	}
	if len(f.orders.created) != 0 {
		t.Fatal("no order may be created")
	}
}

func TestOutOfStock(t *testing.T) {
	f := newFixture(stocked(item("tee", "T-shirt", "150"), 2))
	f.hold("tee", "someone-else", 2, epoch.Add(time.Minute))
	_, err := f.asm.Assemble(context.Background(), Request{ActorID: "u1", Lines: []model.CartLine{line("tee", 1)}})
	var oos *OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
}

func TestOwnHoldCountsAsAvailable(t *testing.T) {
	f := newFixture(stocked(item("tee", "T-shirt", "150"), 5))
	f.hold("tee", "u1", 3, epoch.Add(5*time.Minute))
	f.hold("tee", "u2", 2, epoch.Add(5*time.Minute))
	f.hold("tee", "u1", 1, epoch.Add(-time.Minute)) // expired, but still u1's row

	res := f.asm.Checkout(context.Background(), Request{ActorID: "u1", Lines: []model.CartLine{line("tee", 3)}})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	for _, r := range f.holds.rows {
		if r.ActorID == "u1" {
			t.Fatalf("expected u1 holds released, found %+v", r)
		}
	}
	if len(f.holds.rows) != 1 {
		t.Fatalf("expected other actor's hold to remain, got %+v", f.holds.rows)
	}
}

func TestScenarioMemberDiscountOnVariation(t *testing.T) {
	p := item("hoodie", "Hoodie", "100")
	pct := dec("10")
	p.Metadata = model.ProductMetadata{
		Variations:            []model.Variation{{ID: "xl", Name: "XL", PriceModifier: dec("20")}},
		MemberDiscountEnabled: true,
		MemberDiscountPercent: &pct,
	}
	f := newFixture(p)
	f.verifier.member = true

	res := f.asm.Checkout(context.Background(), Request{
		ActorID:   "u1",
		StudentID: "s123",
		Lines: []model.CartLine{
			{ProductID: "hoodie", Quantity: 1, VariationID: "xl"},
			{ProductID: "hoodie", Quantity: 1, VariationID: "xl"},
		},
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	o := f.orders.created[0]
	if !o.Items[0].UnitPrice.Equal(dec("108")) || !o.Items[0].VariationPrice.Equal(dec("20")) {
		t.Fatalf("unexpected line item %+v", o.Items[0])
	}
	if !o.Subtotal.Equal(dec("216")) || !o.DiscountTotal.Equal(dec("24")) {
		t.Fatalf("unexpected totals subtotal=%s discount=%s", o.Subtotal, o.DiscountTotal)
	}
	if !o.MembershipApplied || !o.MemberDiscountPercent.Equal(dec("10")) {
		t.Fatalf("expected membership applied at 10%%, got %+v", o)
	}
	if f.verifier.calls != 1 {
		t.Fatalf("expected a single membership check, got %d", f.verifier.calls)
	}
}

func TestUnknownVariationFallsBackToBase(t *testing.T) {
	f := newFixture(item("mug", "Mug", "49.90"))
	res := f.asm.Checkout(context.Background(), Request{Lines: []model.CartLine{{ProductID: "mug", Quantity: 1, VariationID: "nope"}}})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	it := f.orders.created[0].Items[0]
	if it.VariationID != "" || !it.UnitPrice.Equal(dec("49.90")) {
		t.Fatalf("expected base product line, got %+v", it)
	}
	if f.gateway.got[0].AmountMinorUnits != 4990 {
		t.Fatalf("expected 4990 minor units, got %d", f.gateway.got[0].AmountMinorUnits)
	}
}

func TestScenarioAggregatedPerOrderLimit(t *testing.T) {
	p := item("cap", "Cap", "80")
	four := 4
	p.Metadata.MaxPerOrder = &four
	f := newFixture(p)

	res := f.asm.Checkout(context.Background(), Request{
		ActorID: "u1",
		Lines: []model.CartLine{
			{ProductID: "cap", Quantity: 2, VariationID: "red"},
			{ProductID: "cap", Quantity: 3, VariationID: "blue"},
		},
	})
	if res.Success || !strings.Contains(res.Error, "at most 4") {
		t.Fatalf("expected purchase limit failure, got %+v", res)
	}
	if len(f.orders.created) != 0 || len(f.gateway.got) != 0 {
		t.Fatal("nothing may be persisted or paid")
	}
}

func TestAggregatedStockAcrossLines(t *testing.T) {
	f := newFixture(stocked(item("cap", "Cap", "80"), 4))
	_, err := f.asm.Assemble(context.Background(), Request{Lines: []model.CartLine{line("cap", 2), line("cap", 3)}})
	var ise *InsufficientStockError
	if !errors.As(err, &ise) || ise.Requested != 5 || ise.Available != 4 {
		t.Fatalf("expected InsufficientStockError{4,5}, got %v", err)
	}
}

func TestScenarioMissingRequiredField(t *testing.T) {
	p := item("ticket", "Gala ticket", "300")
	p.Metadata.CustomFields = []model.CustomField{
		{ID: "allergies", Label: "Allergies"},
		{ID: "name", Label: "Name on ticket", Required: true},
	}
	f := newFixture(p)

	res := f.asm.Checkout(context.Background(), Request{Lines: []model.CartLine{
		{ProductID: "ticket", Quantity: 1, CustomFields: map[string]string{"name": "   ", "allergies": "nuts"}},
	}})
	if res.Success || !strings.Contains(res.Error, "Name on ticket") {
		t.Fatalf("expected missing field error, got %+v", res)
	}
	if len(f.orders.created) != 0 {
		t.Fatal("no order may be created")
	}

	res = f.asm.Checkout(context.Background(), Request{Lines: []model.CartLine{
		{ProductID: "ticket", Quantity: 1, CustomFields: map[string]string{"name": "  Kari ", "allergies": ""}},
	}})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	fields := f.orders.created[0].Items[0].CustomFields
	if len(fields) != 1 || fields[0].Value != "Kari" {
		t.Fatalf("expected one trimmed response, got %+v", fields)
	}
}

func TestScenarioPaymentFailureLeavesPendingOrder(t *testing.T) {
	f := newFixture(item("mug", "Mug", "50"))
	f.gateway.err = vipps.ErrSessionRejected

	res := f.asm.Checkout(context.Background(), Request{ActorID: "u1", Lines: []model.CartLine{line("mug", 1)}})
	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if len(f.orders.created) != 1 {
		t.Fatalf("expected the order to remain, got %d", len(f.orders.created))
	}
	o := f.orders.created[0]
	if o.Status != model.OrderPending || o.VippsSessionID != nil {
		t.Fatalf("expected pending order without session, got %+v", o)
	}
	if len(f.events.got) != 0 {
		t.Fatal("no event expected on payment failure")
	}

	_, err := f.asm.Assemble(context.Background(), Request{Lines: []model.CartLine{line("mug", 1)}})
	var pie *PaymentInitiationError
	if !errors.As(err, &pie) || !errors.Is(err, vipps.ErrSessionRejected) {
		t.Fatalf("expected PaymentInitiationError wrapping the gateway error, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	f := newFixture(item("mug", "Mug", "10"))

	_, err := f.asm.Assemble(context.Background(), Request{Lines: []model.CartLine{line("", 2), line("mug", 0), line("mug", -1)}})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	_, err = f.asm.Assemble(context.Background(), Request{})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart for empty cart, got %v", err)
	}

	res := f.asm.Checkout(context.Background(), Request{Lines: []model.CartLine{line("mug", 2.7), line("mug", 0.4)}})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	items := f.orders.created[0].Items
	if items[0].Quantity != 2 || items[1].Quantity != 1 {
		t.Fatalf("expected quantities 2 and 1, got %d and %d", items[0].Quantity, items[1].Quantity)
	}
}

func TestProductUnavailable(t *testing.T) {
	f := newFixture()
	res := f.asm.Checkout(context.Background(), Request{Lines: []model.CartLine{line("ghost", 1)}})
	if res.Success || res.Error != (&ProductUnavailableError{}).Error() {
		t.Fatalf("expected product unavailable, got %+v", res)
	}
}

func TestMissingPriceFailsLine(t *testing.T) {
	f := newFixture(model.Product{ID: "free", Title: "Freebie"})
	_, err := f.asm.Assemble(context.Background(), Request{Lines: []model.CartLine{line("free", 1)}})
	var pue *PriceUnavailableError
	if !errors.As(err, &pue) {
		t.Fatalf("expected PriceUnavailableError, got %v", err)
	}
}

func TestCampusAttribution(t *testing.T) {
	campus := func(p model.Product, c string) model.Product {
		p.CampusID = &c
		return p
	}
	cases := []struct {
		name  string
		lines []model.CartLine
		want  string
	}{
		{"single campus", []model.CartLine{line("a1", 1), line("a2", 1)}, "oslo"},
		{"two campuses", []model.CartLine{line("a1", 1), line("b1", 1)}, ""},
		{"no campus", []model.CartLine{line("none", 1)}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(
				campus(item("a1", "A1", "1"), "oslo"),
				campus(item("a2", "A2", "1"), "oslo"),
				campus(item("b1", "B1", "1"), "bergen"),
				item("none", "None", "1"),
			)
			if res := f.asm.Checkout(context.Background(), Request{Lines: tc.lines}); !res.Success {
				t.Fatalf("expected success, got %+v", res)
			}
			got := f.orders.created[0].CampusID
			if tc.want == "" && got != nil {
				t.Fatalf("expected no campus, got %q", *got)
			}
			if tc.want != "" && (got == nil || *got != tc.want) {
				t.Fatalf("expected campus %q, got %v", tc.want, got)
			}
		})
	}
}

func TestDescriptionUsesFirstTwoLines(t *testing.T) {
	f := newFixture(item("a", "Mug", "1"), item("b", "Cap", "1"), item("c", "Pin", "1"))
	f.asm.Checkout(context.Background(), Request{Lines: []model.CartLine{line("a", 1), line("b", 2), line("c", 3)}})
	if got := f.gateway.got[0].Description; got != "Mug x 1, Cap x 2" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestOrderStoreFailure(t *testing.T) {
	f := newFixture(item("a", "Mug", "1"))
	f.orders.err = errors.New("connection refused")
	res := f.asm.Checkout(context.Background(), Request{Lines: []model.CartLine{line("a", 1)}})
	if res.Success || !strings.Contains(res.Error, "connection refused") {
		t.Fatalf("expected store error message, got %+v", res)
	}
	if len(f.gateway.got) != 0 {
		t.Fatal("gateway must not be called when the order was not stored")
	}
}

func TestMinorUnits(t *testing.T) {
	cases := map[string]int64{"0": 0, "49.90": 4990, "10.005": 1001, "108": 10800, "0.004": 0}
	for in, want := range cases {
		got, err := MinorUnits(dec(in))
		if err != nil || got != want {
			t.Errorf("MinorUnits(%s) = %d, %v, want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"92233720368547758.08", "-92233720368547758.09", "1e30"} {
		if _, err := MinorUnits(dec(in)); !errors.Is(err, ErrTotalOutOfRange) {
			t.Errorf("MinorUnits(%s): expected ErrTotalOutOfRange, got %v", in, err)
		}
	}
}

func TestHugeQuantityIsClampedBeforeStockCheck(t *testing.T) {
	f := newFixture(stocked(item("tee", "T-shirt", "150"), 5))
	_, err := f.asm.Assemble(context.Background(), Request{ActorID: "u1", Lines: []model.CartLine{line("tee", 1e19)}})
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.Requested != MaxLineQuantity || ise.Available != 5 {
		t.Fatalf("unexpected counts %+v", ise)
	}
	if len(f.orders.created) != 0 || len(f.gateway.got) != 0 {
		t.Fatal("no order or payment session may be created")
	}
}

func TestAggregatedQuantitySaturates(t *testing.T) {
	f := newFixture(stocked(item("tee", "T-shirt", "150"), 5))
	lines := make([]model.CartLine, 0, 8)
	for range 8 {
		lines = append(lines, line("tee", 1e19))
	}
	_, err := f.asm.Assemble(context.Background(), Request{Lines: lines})
	var ise *InsufficientStockError
	if !errors.As(err, &ise) || ise.Requested <= 0 {
		t.Fatalf("expected InsufficientStockError with a positive request, got %v", err)
	}
	if got := addQuantity(math.MaxInt-1, 5); got != math.MaxInt {
		t.Fatalf("expected saturation at MaxInt, got %d", got)
	}
}

func TestTotalTooLargeForPayment(t *testing.T) {
	f := newFixture(item("yacht", "Yacht", "1000000000000"))
	_, err := f.asm.Assemble(context.Background(), Request{Lines: []model.CartLine{line("yacht", 1e19)}})
	if !errors.Is(err, ErrTotalOutOfRange) {
		t.Fatalf("expected ErrTotalOutOfRange, got %v", err)
	}
	if len(f.orders.created) != 0 || len(f.gateway.got) != 0 {
		t.Fatal("no order or payment session may be created")
	}
}
