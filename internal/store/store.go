// Package store defines the persistence contract for the portal.
//
// Every state change is expressed as a single read-modify-write: the store
// loads the current document, hands it to a mutate function that checks its
// guards and edits it in place, and commits the result atomically. A guard
// failure returned by the mutate function aborts the write.
package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/conferenceportal/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrEmailAlreadyPaid is returned when an attendee registration is
	// attempted for an email that already has a paid record.
	ErrEmailAlreadyPaid = errors.New("email already has a paid registration")
)

// PaymentTarget is the payable record a payment intent points at. Exactly one
// of Submission and Attendee is set.
type PaymentTarget struct {
	Submission *models.Submission
	Attendee   *models.Attendee

	// EmailAlreadyPaid reports whether another attendee record with the same
	// email is already paid. Always false for submissions.
	EmailAlreadyPaid bool
}

// State returns the payment sub-state of the target record.
func (t *PaymentTarget) State() *models.PaymentState {
	if t.Submission != nil {
		return &t.Submission.PaymentState
	}
	return &t.Attendee.PaymentState
}

// RecordID returns the document ID of the target record.
func (t *PaymentTarget) RecordID() string {
	if t.Submission != nil {
		return t.Submission.ID
	}
	return t.Attendee.ID
}

// Store is implemented by the Firestore backend and the in-memory backend.
type Store interface {
	// CreateSubmission persists a new submission and assigns its ID.
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	ListSubmissionsByOwner(ctx context.Context, userID string) ([]*models.Submission, error)

	// UpdateSubmission atomically applies fn to the stored submission and
	// returns the committed result.
	UpdateSubmission(ctx context.Context, id string, fn func(*models.Submission) error) (*models.Submission, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error)

	// IsRegisteredAdmin reports membership in the administrators registry.
	IsRegisteredAdmin(ctx context.Context, userID string) (bool, error)
	RegisterAdmin(ctx context.Context, userID string) error

	// StartSubmissionPayment atomically applies fn to the submission named by
	// intent.RecordID and writes the intent.
	StartSubmissionPayment(ctx context.Context, intent *models.PaymentIntent, fn func(*models.Submission) error) error

	// StartAttendeePayment atomically creates the attendee and the intent,
	// failing with ErrEmailAlreadyPaid if the email already has a paid record.
	StartAttendeePayment(ctx context.Context, att *models.Attendee, intent *models.PaymentIntent) error

	GetPaymentIntent(ctx context.Context, txnID string) (*models.PaymentIntent, error)
	GetAttendee(ctx context.Context, id string) (*models.Attendee, error)

	// ApplyPayment loads the intent and its target record and applies fn in one
	// transaction. Both documents are written only when fn reports a change.
	ApplyPayment(ctx context.Context, txnID string, fn func(*models.PaymentIntent, *PaymentTarget) (bool, error)) (*models.PaymentIntent, *PaymentTarget, error)

	Close() error
}
