// Package memstore provides an in-memory store.Store used by tests and local
// runs. A single mutex serializes every operation, which gives the same
// single-document atomicity the Firestore backend gets from transactions.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

var _ store.Store = (*MemStore)(nil)

// MemStore implements store.Store in memory.
type MemStore struct {
	mu          sync.Mutex
	submissions map[string]*models.Submission
	users       map[string]*models.User
	admins      map[string]bool
	attendees   map[string]*models.Attendee
	intents     map[string]*models.PaymentIntent

	// Writes counts committed document writes, letting tests assert that a
	// rejected operation wrote nothing.
	Writes int
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{
		submissions: make(map[string]*models.Submission),
		users:       make(map[string]*models.User),
		admins:      make(map[string]bool),
		attendees:   make(map[string]*models.Attendee),
		intents:     make(map[string]*models.PaymentIntent),
	}
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

// PutUser seeds a user record.
func (m *MemStore) PutUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
}

// PutSubmission seeds a submission record as-is.
func (m *MemStore) PutSubmission(s *models.Submission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[s.ID] = cloneSubmission(s)
}

// CountAttendees returns the number of attendee records for email.
func (m *MemStore) CountAttendees(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attendees {
		if a.Email == email {
			n++
		}
	}
	return n
}

func (m *MemStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if _, exists := m.submissions[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	m.submissions[sub.ID] = cloneSubmission(sub)
	m.Writes++
	return nil
}

func (m *MemStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSubmission(s), nil
}

func (m *MemStore) ListSubmissionsByOwner(ctx context.Context, userID string) ([]*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Submission
	for _, s := range m.submissions {
		if s.UserID == userID {
			out = append(out, cloneSubmission(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (m *MemStore) UpdateSubmission(ctx context.Context, id string, fn func(*models.Submission) error) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.submissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	working := cloneSubmission(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	m.submissions[id] = cloneSubmission(working)
	m.Writes++
	return working, nil
}

func (m *MemStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemStore) UpdateUser(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	working := cloneUser(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	m.users[id] = cloneUser(working)
	m.Writes++
	return working, nil
}

func (m *MemStore) IsRegisteredAdmin(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[userID], nil
}

func (m *MemStore) RegisterAdmin(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[userID] = true
	m.Writes++
	return nil
}

func (m *MemStore) StartSubmissionPayment(ctx context.Context, intent *models.PaymentIntent, fn func(*models.Submission) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.submissions[intent.RecordID]
	if !ok {
		return store.ErrNotFound
	}
	working := cloneSubmission(current)
	if err := fn(working); err != nil {
		return err
	}
	m.submissions[working.ID] = cloneSubmission(working)
	m.intents[intent.TxnID] = cloneIntent(intent)
	m.Writes += 2
	return nil
}

func (m *MemStore) StartAttendeePayment(ctx context.Context, att *models.Attendee, intent *models.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paidAttendeeExists(att.Email, "") {
		return store.ErrEmailAlreadyPaid
	}
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	intent.RecordID = att.ID
	m.attendees[att.ID] = cloneAttendee(att)
	m.intents[intent.TxnID] = cloneIntent(intent)
	m.Writes += 2
	return nil
}

func (m *MemStore) GetPaymentIntent(ctx context.Context, txnID string) (*models.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[txnID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneIntent(in), nil
}

func (m *MemStore) GetAttendee(ctx context.Context, id string) (*models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendees[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAttendee(a), nil
}

func (m *MemStore) ApplyPayment(ctx context.Context, txnID string, fn func(*models.PaymentIntent, *store.PaymentTarget) (bool, error)) (*models.PaymentIntent, *store.PaymentTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.intents[txnID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	intent := cloneIntent(stored)

	target := &store.PaymentTarget{}
	switch intent.Purpose {
	case models.PurposeFullPaper:
		s, ok := m.submissions[intent.RecordID]
		if !ok {
			return nil, nil, store.ErrNotFound
		}
		target.Submission = cloneSubmission(s)
	case models.PurposeAttendee:
		a, ok := m.attendees[intent.RecordID]
		if !ok {
			return nil, nil, store.ErrNotFound
		}
		target.Attendee = cloneAttendee(a)
		target.EmailAlreadyPaid = m.paidAttendeeExists(a.Email, a.ID)
	default:
		return nil, nil, fmt.Errorf("payment intent %s has unknown purpose %q", txnID, intent.Purpose)
	}

	changed, err := fn(intent, target)
	if err != nil {
		return nil, nil, err
	}
	if changed {
		m.intents[txnID] = cloneIntent(intent)
		if target.Submission != nil {
			m.submissions[target.Submission.ID] = cloneSubmission(target.Submission)
		} else {
			m.attendees[target.Attendee.ID] = cloneAttendee(target.Attendee)
		}
		m.Writes += 2
	}
	return intent, target, nil
}

func (m *MemStore) paidAttendeeExists(email, excludeID string) bool {
	for id, a := range m.attendees {
		if id != excludeID && a.Email == email && a.PaymentStatus == models.PaymentPaid {
			return true
		}
	}
	return false
}
