// Package limits decides whether an actor may buy a given quantity of a
// product, based on the product's max_per_order and max_per_user settings.
package limits

import (
	"context"
	"fmt"

	"github.com/iliyamo/webshop-checkout/internal/model"
)

// GuestActorID is the actor id used for buyers that are not attributable
// to a user.  Per-user limits cannot be enforced for it.
const GuestActorID = "guest"

// Decision is the validator's verdict.  Reason is a user-facing sentence
// and is set only when Allowed is false.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// HistoryStore reports how many units of a product an actor has already
// bought (orders that are pending or paid).
type HistoryStore interface {
	PurchasedQuantity(ctx context.Context, actorID, productID string) (int, error)
}

// Validator enforces purchase limits.
type Validator struct {
	history HistoryStore
}

// NewValidator returns a Validator.  history may be nil, in which case
// per-user limits are not enforced.
func NewValidator(history HistoryStore) *Validator {
	return &Validator{history: history}
}

// Validate checks quantity against the product's per-order limit and, for
// identifiable actors, against the per-user limit minus what the actor has
// already bought.  The returned error is reserved for store failures.
func (v *Validator) Validate(ctx context.Context, productID, actorID string, quantity int, p model.Product) (Decision, error) {
	if perOrder := p.Metadata.MaxPerOrder; perOrder != nil && quantity > *perOrder {
		return Decision{Reason: fmt.Sprintf("You can buy at most %d of %s per order", *perOrder, p.Title)}, nil
	}
	perUser := p.Metadata.MaxPerUser
	if perUser == nil || actorID == "" || actorID == GuestActorID || v.history == nil {
		return Decision{Allowed: true}, nil
	}
	bought, err := v.history.PurchasedQuantity(ctx, actorID, productID)
	if err != nil {
		return Decision{}, fmt.Errorf("load purchase history: %w", err)
	}
	if bought+quantity > *perUser {
		remaining := *perUser - bought
		if remaining <= 0 {
			return Decision{Reason: fmt.Sprintf("You have already bought the maximum of %d of %s", *perUser, p.Title)}, nil
		}
		return Decision{Reason: fmt.Sprintf("You can buy %d more of %s (limit %d per person)", remaining, p.Title, *perUser)}, nil
	}
	return Decision{Allowed: true}, nil
}
