package model

import "time"

// ClassStatus tracks the approval workflow of a class.  The only transition
// is pending -> approved.
type ClassStatus string

const (
	ClassPending  ClassStatus = "pending"
	ClassApproved ClassStatus = "approved"
)

// Class is a purchasable course offered by an instructor.  AvailableSeats is
// the remaining seat inventory and never drops below zero; Enroll counts the
// seats currently taken by cart line items and payments.
//
// Fields:
//  ID              – store-assigned identifier.
//  Name            – class title.
//  Image           – cover image URL.
//  InstructorName  – display name of the submitting instructor.
//  InstructorEmail – email of the submitting instructor.
//  Price           – price in major currency units (e.g. 49.99).
//  AvailableSeats  – remaining seats, >= 0.
//  Enroll          – number of enrolled seats, >= 0.
//  Status          – pending or approved.
//  Feedback        – optional admin feedback on the submission.
//  CreatedAt       – submission timestamp.
type Class struct {
	ID              string      `json:"_id"`
	Name            string      `json:"name"`
	Image           string      `json:"image,omitempty"`
	InstructorName  string      `json:"instructorName,omitempty"`
	InstructorEmail string      `json:"instructorEmail,omitempty"`
	Price           float64     `json:"price"`
	AvailableSeats  int         `json:"availableSeats"`
	Enroll          int         `json:"enroll"`
	Status          ClassStatus `json:"status"`
	Feedback        string      `json:"feedback,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}
