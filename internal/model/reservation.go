package model

import "time"

// Reservation is a soft hold of product quantity by one actor.  Holds
// are advisory: they reduce the computed availability of a product until
// ExpiresAt but never lock inventory.  At most one row exists per
// (ProductID, ActorID); a second hold for the same pair updates the first.
//
// Fields:
//
//	ID        – stock_reservations.id
//	ProductID – product being held
//	ActorID   – session holder (JWT subject)
//	Quantity  – held quantity, always positive
//	ExpiresAt – when the hold stops counting against stock
type Reservation struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	ActorID   string    `json:"actor_id"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the hold still counts at the given instant.  A
// hold whose expiry equals now is already expired.
func (r Reservation) Active(now time.Time) bool {
	return r.ExpiresAt.After(now)
}
