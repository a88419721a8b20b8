// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderPendingQueue is the durable queue order events are routed to.
const OrderPendingQueue = "order.pending"

// OrderPendingEvent is published once a pending order has a payment
// session attached.  It carries enough for downstream consumers to log or
// reconcile the order without querying the primary database.
type OrderPendingEvent struct {
	OrderID           string   `json:"order_id"`
	ActorID           string   `json:"actor_id"`
	Currency          string   `json:"currency"`
	TotalMinorUnits   int64    `json:"total_minor_units"`
	DiscountTotal     string   `json:"discount_total"`
	MembershipApplied bool     `json:"membership_applied"`
	CampusID          string   `json:"campus_id,omitempty"`
	Items             []string `json:"items"`
	VippsSessionID    string   `json:"vipps_session_id"`
	CreatedAt         string   `json:"created_at"`
}
