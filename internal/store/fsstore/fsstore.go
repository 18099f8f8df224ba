// Package fsstore implements store.Store on Cloud Firestore. Every mutation
// runs inside RunTransaction so guards and writes commit together.
package fsstore

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

var _ store.Store = (*FirestoreStore)(nil)

// Collections holds the Firestore collection names.
type Collections struct {
	Submissions string
	Users       string
	Admins      string
	Attendees   string
	Payments    string
}

// DefaultCollections returns the collection names used in production.
func DefaultCollections() Collections {
	return Collections{
		Submissions: "submissions",
		Users:       "users",
		Admins:      "admins",
		Attendees:   "attendees",
		Payments:    "payments",
	}
}

// FirestoreStore implements store.Store using Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
	cols   Collections
}

// New wraps an existing Firestore client.
func New(client *firestore.Client, cols Collections) *FirestoreStore {
	return &FirestoreStore{client: client, cols: cols}
}

// Close closes the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreStore) submissionRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.cols.Submissions).Doc(id)
}

func (s *FirestoreStore) userRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.cols.Users).Doc(id)
}

func (s *FirestoreStore) intentRef(txnID string) *firestore.DocumentRef {
	return s.client.Collection(s.cols.Payments).Doc(txnID)
}

func (s *FirestoreStore) attendeeRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.cols.Attendees).Doc(id)
}

func (s *FirestoreStore) paidAttendeesQuery(email string) firestore.Query {
	return s.client.Collection(s.cols.Attendees).
		Where("email", "==", email).
		Where("paymentStatus", "==", string(models.PaymentPaid))
}

func (s *FirestoreStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	ref := s.client.Collection(s.cols.Submissions).NewDoc()
	if sub.ID != "" {
		ref = s.submissionRef(sub.ID)
	}
	if _, err := ref.Create(ctx, sub); err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	sub.ID = ref.ID
	return nil
}

func (s *FirestoreStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	snap, err := s.submissionRef(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission %s: %w", id, err)
	}
	return decodeSubmission(snap)
}

func (s *FirestoreStore) ListSubmissionsByOwner(ctx context.Context, userID string) ([]*models.Submission, error) {
	it := s.client.Collection(s.cols.Submissions).Where("userId", "==", userID).Documents(ctx)
	defer it.Stop()

	var out []*models.Submission
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list submissions for %s: %w", userID, err)
		}
		sub, err := decodeSubmission(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	// Sorted here rather than with OrderBy to avoid a composite index.
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (s *FirestoreStore) UpdateSubmission(ctx context.Context, id string, fn func(*models.Submission) error) (*models.Submission, error) {
	ref := s.submissionRef(id)
	var committed *models.Submission
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return store.ErrNotFound
			}
			return err
		}
		sub, err := decodeSubmission(snap)
		if err != nil {
			return err
		}
		if err := fn(sub); err != nil {
			return err
		}
		committed = sub
		return tx.Set(ref, sub)
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *FirestoreStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	snap, err := s.userRef(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return decodeUser(snap)
}

func (s *FirestoreStore) UpdateUser(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	ref := s.userRef(id)
	var committed *models.User
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return store.ErrNotFound
			}
			return err
		}
		user, err := decodeUser(snap)
		if err != nil {
			return err
		}
		if err := fn(user); err != nil {
			return err
		}
		committed = user
		return tx.Set(ref, user)
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *FirestoreStore) IsRegisteredAdmin(ctx context.Context, userID string) (bool, error) {
	snap, err := s.client.Collection(s.cols.Admins).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read admin registry: %w", err)
	}
	return snap.Exists(), nil
}

func (s *FirestoreStore) RegisterAdmin(ctx context.Context, userID string) error {
	_, err := s.client.Collection(s.cols.Admins).Doc(userID).Set(ctx, map[string]interface{}{
		"grantedAt": firestore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to register admin %s: %w", userID, err)
	}
	return nil
}

func (s *FirestoreStore) StartSubmissionPayment(ctx context.Context, intent *models.PaymentIntent, fn func(*models.Submission) error) error {
	ref := s.submissionRef(intent.RecordID)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return store.ErrNotFound
			}
			return err
		}
		sub, err := decodeSubmission(snap)
		if err != nil {
			return err
		}
		if err := fn(sub); err != nil {
			return err
		}
		if err := tx.Set(ref, sub); err != nil {
			return err
		}
		return tx.Create(s.intentRef(intent.TxnID), intent)
	})
}

func (s *FirestoreStore) StartAttendeePayment(ctx context.Context, att *models.Attendee, intent *models.PaymentIntent) error {
	ref := s.client.Collection(s.cols.Attendees).NewDoc()
	if att.ID != "" {
		ref = s.attendeeRef(att.ID)
	}
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		paid, err := s.anyPaidAttendee(tx, att.Email, "")
		if err != nil {
			return err
		}
		if paid {
			return store.ErrEmailAlreadyPaid
		}
		intent.RecordID = ref.ID
		if err := tx.Create(ref, att); err != nil {
			return err
		}
		return tx.Create(s.intentRef(intent.TxnID), intent)
	})
	if err != nil {
		return err
	}
	att.ID = ref.ID
	return nil
}

func (s *FirestoreStore) anyPaidAttendee(tx *firestore.Transaction, email, excludeID string) (bool, error) {
	it := tx.Documents(s.paidAttendeesQuery(email))
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to query paid attendees: %w", err)
		}
		if snap.Ref.ID != excludeID {
			return true, nil
		}
	}
}

func (s *FirestoreStore) GetPaymentIntent(ctx context.Context, txnID string) (*models.PaymentIntent, error) {
	snap, err := s.intentRef(txnID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment %s: %w", txnID, err)
	}
	return decodeIntent(snap)
}

func (s *FirestoreStore) GetAttendee(ctx context.Context, id string) (*models.Attendee, error) {
	snap, err := s.attendeeRef(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attendee %s: %w", id, err)
	}
	return decodeAttendee(snap)
}

func (s *FirestoreStore) ApplyPayment(ctx context.Context, txnID string, fn func(*models.PaymentIntent, *store.PaymentTarget) (bool, error)) (*models.PaymentIntent, *store.PaymentTarget, error) {
	intentRef := s.intentRef(txnID)
	var (
		outIntent *models.PaymentIntent
		outTarget *store.PaymentTarget
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(intentRef)
		if err != nil {
			if isNotFound(err) {
				return store.ErrNotFound
			}
			return err
		}
		intent, err := decodeIntent(snap)
		if err != nil {
			return err
		}

		target := &store.PaymentTarget{}
		var targetRef *firestore.DocumentRef
		switch intent.Purpose {
		case models.PurposeFullPaper:
			targetRef = s.submissionRef(intent.RecordID)
			tsnap, err := tx.Get(targetRef)
			if err != nil {
				if isNotFound(err) {
					return store.ErrNotFound
				}
				return err
			}
			if target.Submission, err = decodeSubmission(tsnap); err != nil {
				return err
			}
		case models.PurposeAttendee:
			targetRef = s.attendeeRef(intent.RecordID)
			tsnap, err := tx.Get(targetRef)
			if err != nil {
				if isNotFound(err) {
					return store.ErrNotFound
				}
				return err
			}
			if target.Attendee, err = decodeAttendee(tsnap); err != nil {
				return err
			}
			if target.EmailAlreadyPaid, err = s.anyPaidAttendee(tx, target.Attendee.Email, target.Attendee.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("payment intent %s has unknown purpose %q", txnID, intent.Purpose)
		}

		changed, err := fn(intent, target)
		if err != nil {
			return err
		}
		outIntent, outTarget = intent, target
		if !changed {
			return nil
		}
		if err := tx.Set(intentRef, intent); err != nil {
			return err
		}
		if target.Submission != nil {
			return tx.Set(targetRef, target.Submission)
		}
		return tx.Set(targetRef, target.Attendee)
	})
	if err != nil {
		return nil, nil, err
	}
	return outIntent, outTarget, nil
}
