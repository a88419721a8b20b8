package handler

import (
	"context"

	"github.com/iliyamo/webshop-checkout/internal/checkout"
	"github.com/iliyamo/webshop-checkout/internal/ledger"
	"github.com/iliyamo/webshop-checkout/internal/limits"
	"github.com/iliyamo/webshop-checkout/internal/model"
)

// The handlers depend on these narrow views of the domain services so
// tests can substitute fakes.

type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (model.Product, error)
	List(ctx context.Context, limit, offset int) ([]model.Product, error)
}

type StockLedger interface {
	AvailableFor(ctx context.Context, p model.Product) int
	Reserve(ctx context.Context, productID, actorID string, quantity int) ledger.Outcome
	Release(ctx context.Context, productID, actorID string) ledger.Outcome
	ReleaseAll(ctx context.Context, actorID string) ledger.Outcome
	CleanupExpired(ctx context.Context, actorID string) int
	Reservation(ctx context.Context, productID, actorID string) *model.Reservation
	ListReservations(ctx context.Context, actorID string) []model.Reservation
}

type LimitValidator interface {
	Validate(ctx context.Context, productID, actorID string, quantity int, p model.Product) (limits.Decision, error)
}

type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) checkout.Result
}

type OrderReader interface {
	GetByIDForActor(ctx context.Context, id, actorID string) (model.Order, error)
}
