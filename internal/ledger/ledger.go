// Package ledger tracks soft stock reservations and derives how much of a
// product can still be sold.  Reservations are advisory, time-boxed holds:
// two actors may both reserve the last unit and both succeed.  Nothing in
// this package locks rows; concurrent writers resolve as last-write-wins in
// the backing store.
//
// Every operation degrades instead of failing.  Lookup errors make a
// product unavailable (0 in stock) and write errors surface as an
// unsuccessful Outcome, so callers never need to handle errors from here.
package ledger

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/webshop-checkout/internal/model"
)

// ReservationTTL is how long a hold counts against stock after the last
// cart mutation that touched it.
const ReservationTTL = 10 * time.Minute

// Unlimited is returned by AvailableStock for products without a tracked
// stock count.
const Unlimited = math.MaxInt

// Store is the subset of the record store used by the ledger.  Expiry
// comparisons take the caller's clock so that tests and the database agree
// on what "now" is.
type Store interface {
	SumActiveQuantity(ctx context.Context, productID string, now time.Time) (int, error)
	FindByProductActor(ctx context.Context, productID, actorID string) ([]model.Reservation, error)
	Insert(ctx context.Context, r model.Reservation) error
	Update(ctx context.Context, id string, quantity int, expiresAt time.Time) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByProductActor(ctx context.Context, productID, actorID string) (int, error)
	DeleteByActor(ctx context.Context, actorID string) (int, error)
	DeleteExpiredByActor(ctx context.Context, actorID string, now time.Time) (int, error)
	ListActiveByActor(ctx context.Context, actorID string, now time.Time) ([]model.Reservation, error)
}

// ProductReader loads a product by id.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (model.Product, error)
}

// Outcome reports the result of a ledger write.  Message is set only when
// Success is false.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Ledger implements the stock ledger on top of a Store.
type Ledger struct {
	store    Store
	products ProductReader
	now      func() time.Time
	newID    func() string
}

// New returns a Ledger using the wall clock and random UUID reservation ids.
func New(store Store, products ProductReader) *Ledger {
	if store == nil || products == nil {
		panic("nil dependency passed to ledger.New")
	}
	return &Ledger{
		store:    store,
		products: products,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// WithClock replaces the ledger's clock.  It is intended for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// AvailableStock returns max(0, stock - active reserved quantity) for a
// product, or Unlimited when the product does not track stock.  Any lookup
// failure returns 0 so the product is treated as sold out rather than
// oversold.
func (l *Ledger) AvailableStock(ctx context.Context, productID string) int {
	p, err := l.products.GetByID(ctx, productID)
	if err != nil {
		log.Printf("ledger: load product %s: %v", productID, err)
		return 0
	}
	return l.AvailableFor(ctx, p)
}

// AvailableFor is AvailableStock for an already loaded product.
func (l *Ledger) AvailableFor(ctx context.Context, p model.Product) int {
	if !p.TracksStock() {
		return Unlimited
	}
	reserved, err := l.store.SumActiveQuantity(ctx, p.ID, l.now())
	if err != nil {
		log.Printf("ledger: sum reservations for %s: %v", p.ID, err)
		return 0
	}
	return max(0, *p.Stock-reserved)
}

// Reserve creates or refreshes the hold of actorID on productID.  The hold
// is set to quantity and its expiry pushed to now+ReservationTTL.  An
// existing row for the pair, expired or not, is updated in place; any
// duplicate rows are removed.
func (l *Ledger) Reserve(ctx context.Context, productID, actorID string, quantity int) Outcome {
	if productID == "" || actorID == "" {
		return Outcome{Message: "product and actor are required"}
	}
	if quantity < 1 {
		return Outcome{Message: "quantity must be positive"}
	}
	expiresAt := l.now().Add(ReservationTTL)

	existing, err := l.store.FindByProductActor(ctx, productID, actorID)
	if err != nil {
		log.Printf("ledger: find reservation %s/%s: %v", productID, actorID, err)
		return Outcome{Message: "failed to load reservation"}
	}
	if len(existing) == 0 {
		r := model.Reservation{
			ID:        l.newID(),
			ProductID: productID,
			ActorID:   actorID,
			Quantity:  quantity,
			ExpiresAt: expiresAt,
		}
		if err := l.store.Insert(ctx, r); err != nil {
			log.Printf("ledger: insert reservation %s/%s: %v", productID, actorID, err)
			return Outcome{Message: "failed to create reservation"}
		}
		return Outcome{Success: true}
	}

	if err := l.store.Update(ctx, existing[0].ID, quantity, expiresAt); err != nil {
		log.Printf("ledger: update reservation %s: %v", existing[0].ID, err)
		return Outcome{Message: "failed to update reservation"}
	}
	for _, dup := range existing[1:] {
		if err := l.store.DeleteByID(ctx, dup.ID); err != nil {
			log.Printf("ledger: drop duplicate reservation %s: %v", dup.ID, err)
		}
	}
	return Outcome{Success: true}
}

// Release removes every hold of actorID on productID.
func (l *Ledger) Release(ctx context.Context, productID, actorID string) Outcome {
	if _, err := l.store.DeleteByProductActor(ctx, productID, actorID); err != nil {
		log.Printf("ledger: delete reservation %s/%s: %v", productID, actorID, err)
		return Outcome{Message: "failed to delete reservation"}
	}
	return Outcome{Success: true}
}

// ReleaseAll removes every hold of actorID.  It backs an explicit cart
// clear.
func (l *Ledger) ReleaseAll(ctx context.Context, actorID string) Outcome {
	if _, err := l.store.DeleteByActor(ctx, actorID); err != nil {
		log.Printf("ledger: delete reservations of %s: %v", actorID, err)
		return Outcome{Message: "failed to clear reservations"}
	}
	return Outcome{Success: true}
}

// CleanupExpired deletes the expired holds of actorID and returns how many
// rows were removed.  AvailableStock already ignores expired holds, so this
// only reclaims storage and is never called from the checkout path.
func (l *Ledger) CleanupExpired(ctx context.Context, actorID string) int {
	n, err := l.store.DeleteExpiredByActor(ctx, actorID, l.now())
	if err != nil {
		log.Printf("ledger: cleanup expired reservations of %s: %v", actorID, err)
		return 0
	}
	return n
}

// Reservation returns the active hold of actorID on productID, or nil when
// there is none or it has expired.
func (l *Ledger) Reservation(ctx context.Context, productID, actorID string) *model.Reservation {
	rows, err := l.store.FindByProductActor(ctx, productID, actorID)
	if err != nil {
		log.Printf("ledger: find reservation %s/%s: %v", productID, actorID, err)
		return nil
	}
	now := l.now()
	for _, r := range rows {
		if r.Active(now) {
			return &r
		}
	}
	return nil
}

// ListReservations returns the active holds of actorID.  It is the basis
// for rendering a persisted cart.
func (l *Ledger) ListReservations(ctx context.Context, actorID string) []model.Reservation {
	rows, err := l.store.ListActiveByActor(ctx, actorID, l.now())
	if err != nil {
		log.Printf("ledger: list reservations of %s: %v", actorID, err)
		return []model.Reservation{}
	}
	now := l.now()
	out := make([]model.Reservation, 0, len(rows))
	for _, r := range rows {
		if r.Active(now) {
			out = append(out, r)
		}
	}
	return out
}
