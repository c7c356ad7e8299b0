// Package queue defines the settlement messages exchanged over RabbitMQ and
// the publisher and consumer that move them.
package queue

// Queue names.
const (
	PaymentSettledQueue = "payment.settled"
	ReconcileQueue      = "settlement.reconcile"
)

// PaymentSettledEvent is published when a payment's cart items are confirmed
// retired.  It carries enough for downstream consumers to notify or report
// without querying the primary store.
type PaymentSettledEvent struct {
	PaymentID   string   `json:"payment_id"`
	ChargeID    string   `json:"charge_id"`
	Email       string   `json:"email"`
	AmountMinor int64    `json:"amount_minor"`
	Currency    string   `json:"currency"`
	CartItems   []string `json:"cart_items"`
	ClassIDs    []string `json:"class_ids,omitempty"`
	ItemNames   []string `json:"item_names,omitempty"`
	SettledAt   string   `json:"settled_at"`
}

// ReconcileRequest asks the reconciler to retry cart retirement for a
// payment that settled only partially.
type ReconcileRequest struct {
	PaymentID   string `json:"payment_id"`
	ChargeID    string `json:"charge_id"`
	Requested   int    `json:"requested"`
	Removed     int64  `json:"removed"`
	RequestedAt string `json:"requested_at"`
}
