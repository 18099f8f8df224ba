package models

import (
	"strings"
	"time"
)

// Attendee is a non-author registration for the conference.
// At most one Attendee per email may be paid.
type Attendee struct {
	ID           string    `firestore:"-" json:"id"`
	Name         string    `firestore:"name" json:"name"`
	Email        string    `firestore:"email" json:"email"`
	Phone        string    `firestore:"phone" json:"phone"`
	Organization string    `firestore:"organization" json:"organization"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
	PaymentState
}

// NormalizeEmail returns the canonical form used for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
