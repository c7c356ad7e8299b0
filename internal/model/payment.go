package model

import "time"

// PaymentStatus records whether the cart line items paid by a payment have
// been confirmed as retired.
type PaymentStatus string

const (
	// PaymentRetirementPending means the payment is recorded but removal of its
	// cart items has not been confirmed yet.  The reconciler retries removal.
	PaymentRetirementPending PaymentStatus = "retirement_pending"
	// PaymentSettled means the listed cart items no longer exist.
	PaymentSettled PaymentStatus = "settled"
)

// Payment is the permanent record of one externally confirmed charge.  It is
// created exactly once per ChargeID and its content is immutable; only Status
// and SettledAt advance once cart retirement is confirmed.
//
// Fields:
//  ID          – store-assigned identifier.
//  ChargeID    – external charge id, the idempotency key (unique).
//  Email       – payer, taken from the authenticated identity.
//  Price       – charged amount in major units as sent by the client.
//  AmountMinor – charged amount in minor units (cents).
//  Currency    – ISO currency code, lower case.
//  CartItems   – ids of the cart line items paid by this charge.
//  ClassIDs    – ids of the classes those line items referenced.
//  ItemNames   – class names for display.
//  Status      – retirement_pending or settled.
//  CreatedAt   – when the payment was recorded.
//  SettledAt   – when cart retirement was confirmed (nil while pending).
type Payment struct {
	ID          string        `json:"_id"`
	ChargeID    string        `json:"transactionId"`
	Email       string        `json:"email"`
	Price       float64       `json:"price"`
	AmountMinor int64         `json:"amountMinor"`
	Currency    string        `json:"currency"`
	CartItems   []string      `json:"cartItems"`
	ClassIDs    []string      `json:"classItems,omitempty"`
	ItemNames   []string      `json:"itemNames,omitempty"`
	Status      PaymentStatus `json:"status"`
	CreatedAt   time.Time     `json:"date"`
	SettledAt   *time.Time    `json:"settledAt,omitempty"`
}
