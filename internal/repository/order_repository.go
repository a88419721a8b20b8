package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/webshop-checkout/internal/model"
)

// OrderRepo persists orders.  Line items live in orders.items_json.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to db.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create inserts a new order.  ID, timestamps and status are expected to
// be set by the caller.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, actor_id, status, currency, subtotal, discount_total, total,
		                    buyer_name, buyer_email, buyer_phone, membership_applied,
		                    member_discount_percent, items_json, campus_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ActorID, string(o.Status), o.Currency, o.Subtotal, o.DiscountTotal, o.Total,
		o.BuyerName, o.BuyerEmail, o.BuyerPhone, o.MembershipApplied,
		o.MemberDiscountPercent, items, o.CampusID, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	return err
}

// AttachPaymentSession records the payment session of a pending order.
// It returns ErrNotFound for unknown orders and ErrConflict when the order
// is no longer pending or already has a session.
func (r *OrderRepo) AttachPaymentSession(ctx context.Context, orderID, sessionID, checkoutURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET vipps_session_id = ?, vipps_checkout_url = ?, updated_at = ?
		WHERE id = ? AND status = ? AND vipps_session_id IS NULL`,
		sessionID, checkoutURL, time.Now().UTC(), orderID, string(model.OrderPending))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

// GetByIDForActor loads an order and checks that actorID created it.
func (r *OrderRepo) GetByIDForActor(ctx context.Context, id, actorID string) (model.Order, error) {
	var (
		o       model.Order
		status  string
		items   []byte
		campus  sql.NullString
		session sql.NullString
		url     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, actor_id, status, currency, subtotal, discount_total, total,
		       buyer_name, buyer_email, buyer_phone, membership_applied,
		       member_discount_percent, items_json, campus_id, vipps_session_id,
		       vipps_checkout_url, created_at, updated_at
		FROM orders WHERE id = ?`, id).Scan(
		&o.ID, &o.ActorID, &status, &o.Currency, &o.Subtotal, &o.DiscountTotal, &o.Total,
		&o.BuyerName, &o.BuyerEmail, &o.BuyerPhone, &o.MembershipApplied,
		&o.MemberDiscountPercent, &items, &campus, &session,
		&url, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	if o.ActorID != actorID {
		return model.Order{}, ErrForbidden
	}
	o.Status = model.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return model.Order{}, fmt.Errorf("decode items of order %s: %w", id, err)
	}
	o.CampusID = nullString(campus)
	o.VippsSessionID = nullString(session)
	o.VippsCheckoutURL = nullString(url)
	return o, nil
}

// purchasedItemsSQL selects orders that count toward max_per_user.  A
// pending order without a payment session is a failed attempt and is left
// out.
const purchasedItemsSQL = `SELECT items_json FROM orders
WHERE actor_id = ? AND (status = ? OR (status = ? AND vipps_session_id IS NOT NULL))`

// PurchasedQuantity sums the quantity of productID across the actor's paid
// orders and the pending ones that reached the payment provider.
func (r *OrderRepo) PurchasedQuantity(ctx context.Context, actorID, productID string) (int, error) {
	rows, err := r.db.QueryContext(ctx, purchasedItemsSQL,
		actorID, string(model.OrderPaid), string(model.OrderPending))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return 0, err
		}
		var items []model.LineItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return 0, fmt.Errorf("decode order items: %w", err)
		}
		total += quantityOf(items, productID)
	}
	return total, rows.Err()
}

func quantityOf(items []model.LineItem, productID string) int {
	n := 0
	for _, it := range items {
		if it.ProductID == productID {
			n += it.Quantity
		}
	}
	return n
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
