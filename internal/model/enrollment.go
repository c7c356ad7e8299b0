package model

import "time"

// Enrollment is a cart line item: one user's pending request for a seat in
// one class, not yet paid.  Line items are never updated in place.  They are
// deleted either by the user or, as a batch, when a payment settles them.
// Name, Image, InstructorName and Price are snapshots of the class taken when
// the item was added.
type Enrollment struct {
	ID             string    `json:"_id"`
	ClassID        string    `json:"classId"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Image          string    `json:"image,omitempty"`
	InstructorName string    `json:"instructorName,omitempty"`
	Price          float64   `json:"price"`
	CreatedAt      time.Time `json:"createdAt"`
}
