package limits

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/iliyamo/webshop-checkout/internal/model"
)

type fakeHistory struct {
	bought int
	err    error
	calls  int
}

func (f *fakeHistory) PurchasedQuantity(context.Context, string, string) (int, error) {
	f.calls++
	return f.bought, f.err
}

func product(perOrder, perUser *int) model.Product {
	return model.Product{
		ID:    "hoodie",
		Title: "Hoodie",
		Metadata: model.ProductMetadata{
			MaxPerOrder: perOrder,
			MaxPerUser:  perUser,
		},
	}
}

func n(v int) *int { return &v }

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("no limits -> allowed", func(t *testing.T) {
		d, err := NewValidator(&fakeHistory{}).Validate(ctx, "hoodie", "u1", 100, product(nil, nil))
		if err != nil || !d.Allowed {
			t.Fatalf("expected allowed, got %+v, %v", d, err)
		}
	})

	t.Run("per-order limit exceeded", func(t *testing.T) {
		d, err := NewValidator(nil).Validate(ctx, "hoodie", GuestActorID, 5, product(n(4), nil))
		if err != nil {
			t.Fatal(err)
		}
		if d.Allowed || !strings.Contains(d.Reason, "at most 4") {
			t.Fatalf("expected per-order rejection, got %+v", d)
		}
	})

	t.Run("per-order limit reached exactly", func(t *testing.T) {
		d, _ := NewValidator(nil).Validate(ctx, "hoodie", GuestActorID, 4, product(n(4), nil))
		if !d.Allowed {
			t.Fatalf("expected allowed, got %+v", d)
		}
	})

	t.Run("guest skips per-user history", func(t *testing.T) {
		h := &fakeHistory{bought: 10}
		d, _ := NewValidator(h).Validate(ctx, "hoodie", GuestActorID, 1, product(nil, n(2)))
		if !d.Allowed || h.calls != 0 {
			t.Fatalf("expected allowed without history lookup, got %+v calls=%d", d, h.calls)
		}
	})

	t.Run("per-user remaining quantity", func(t *testing.T) {
		d, _ := NewValidator(&fakeHistory{bought: 1}).Validate(ctx, "hoodie", "u1", 2, product(nil, n(2)))
		if d.Allowed || !strings.Contains(d.Reason, "1 more") {
			t.Fatalf("expected remaining=1 rejection, got %+v", d)
		}
	})

	t.Run("per-user exhausted", func(t *testing.T) {
		d, _ := NewValidator(&fakeHistory{bought: 2}).Validate(ctx, "hoodie", "u1", 1, product(nil, n(2)))
		if d.Allowed || !strings.Contains(d.Reason, "already bought") {
			t.Fatalf("expected exhausted rejection, got %+v", d)
		}
	})

	t.Run("history failure is an error", func(t *testing.T) {
		_, err := NewValidator(&fakeHistory{err: errors.New("db down")}).Validate(ctx, "hoodie", "u1", 1, product(nil, n(2)))
		if err == nil {
			t.Fatal("expected error")
		}
	})
}
