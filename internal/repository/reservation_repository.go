package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/webshop-checkout/internal/model"
)

// ReservationRepo stores soft stock holds in stock_reservations.  Each
// statement touches rows independently; nothing here opens a transaction,
// so concurrent writers on the same (product, actor) pair resolve as
// last-write-wins.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to db.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// SumActiveQuantity returns the total held quantity of a product whose
// holds expire after now.
func (r *ReservationRepo) SumActiveQuantity(ctx context.Context, productID string, now time.Time) (int, error) {
	var sum sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(quantity) FROM stock_reservations WHERE product_id = ? AND expires_at > ?`,
		productID, now.UTC()).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return int(sum.Int64), nil
}

// FindByProductActor returns every hold row of the pair, expired or not,
// oldest first.
func (r *ReservationRepo) FindByProductActor(ctx context.Context, productID, actorID string) ([]model.Reservation, error) {
	return r.query(ctx,
		`SELECT id, product_id, actor_id, quantity, expires_at FROM stock_reservations
		 WHERE product_id = ? AND actor_id = ? ORDER BY created_at, id`,
		productID, actorID)
}

// ListActiveByActor returns the unexpired holds of an actor.
func (r *ReservationRepo) ListActiveByActor(ctx context.Context, actorID string, now time.Time) ([]model.Reservation, error) {
	return r.query(ctx,
		`SELECT id, product_id, actor_id, quantity, expires_at FROM stock_reservations
		 WHERE actor_id = ? AND expires_at > ? ORDER BY created_at, id`,
		actorID, now.UTC())
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.ProductID, &res.ActorID, &res.Quantity, &res.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Insert adds a new hold.
func (r *ReservationRepo) Insert(ctx context.Context, res model.Reservation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stock_reservations (id, product_id, actor_id, quantity, expires_at) VALUES (?, ?, ?, ?, ?)`,
		res.ID, res.ProductID, res.ActorID, res.Quantity, res.ExpiresAt.UTC())
	return err
}

// Update sets quantity and expiry of a hold.  It returns ErrNotFound when
// the row was deleted in the meantime.
func (r *ReservationRepo) Update(ctx context.Context, id string, quantity int, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stock_reservations SET quantity = ?, expires_at = ? WHERE id = ?`,
		quantity, expiresAt.UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes one hold.  Deleting a missing row is not an error.
func (r *ReservationRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stock_reservations WHERE id = ?`, id)
	return err
}

// DeleteByProductActor removes every hold of the pair.
func (r *ReservationRepo) DeleteByProductActor(ctx context.Context, productID, actorID string) (int, error) {
	return r.exec(ctx, `DELETE FROM stock_reservations WHERE product_id = ? AND actor_id = ?`, productID, actorID)
}

// DeleteByActor removes every hold of an actor.
func (r *ReservationRepo) DeleteByActor(ctx context.Context, actorID string) (int, error) {
	return r.exec(ctx, `DELETE FROM stock_reservations WHERE actor_id = ?`, actorID)
}

// DeleteExpiredByActor removes the actor's holds that expired at or before
// now.
func (r *ReservationRepo) DeleteExpiredByActor(ctx context.Context, actorID string, now time.Time) (int, error) {
	return r.exec(ctx, `DELETE FROM stock_reservations WHERE actor_id = ? AND expires_at <= ?`, actorID, now.UTC())
}

func (r *ReservationRepo) exec(ctx context.Context, q string, args ...any) (int, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
