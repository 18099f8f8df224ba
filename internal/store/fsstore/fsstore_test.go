package fsstore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

// newEmulatorStore connects to the Firestore emulator with collections unique
// to the calling test.
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "conferenceportal-test")
	require.NoError(t, err)

	suffix := "-" + uuid.NewString()[:8]
	cols := DefaultCollections()
	cols.Submissions += suffix
	cols.Users += suffix
	cols.Admins += suffix
	cols.Attendees += suffix
	cols.Payments += suffix

	st := New(client, cols)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUpdateSubmission_GuardAbortsWrite(t *testing.T) {
	ctx := context.Background()
	st := newEmulatorStore(t)

	sub := &models.Submission{
		ID:             "s1",
		UserID:         "u1",
		Title:          "before",
		SubmissionType: models.TypeFullPaper,
		Status:         models.StatusAccepted,
		CurrentVersion: 1,
	}
	require.NoError(t, st.CreateSubmission(ctx, sub))

	guard := errors.New("guard")
	_, err := st.UpdateSubmission(ctx, "s1", func(s *models.Submission) error {
		s.Title = "after"
		return guard
	})
	assert.ErrorIs(t, err, guard)

	got, err := st.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "before", got.Title)
	assert.Equal(t, models.StatusAccepted, got.Status)

	_, err = st.UpdateSubmission(ctx, "missing", func(*models.Submission) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateSubmission_ConcurrentGuardAppliesOnce(t *testing.T) {
	ctx := context.Background()
	st := newEmulatorStore(t)
	require.NoError(t, st.CreateSubmission(ctx, &models.Submission{
		ID:             "s1",
		UserID:         "u1",
		Status:         models.StatusAcceptedWithRevision,
		CurrentVersion: 1,
		PDFURL:         "https://files.test/v1.pdf",
	}))

	const attempts = 3
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.UpdateSubmission(ctx, "s1", func(s *models.Submission) error {
				if s.Status != models.StatusAcceptedWithRevision {
					return errors.New("not awaiting revision")
				}
				s.ArchiveCurrent("https://files.test/v2-"+uuid.NewString()+".pdf", s.SubmittedAt)
				return nil
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	got, err := st.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentVersion)
	require.Len(t, got.Versions, 1)
	assert.NoError(t, got.CheckVersionInvariants())
}

func TestStartAttendeePayment_PaidEmailQuery(t *testing.T) {
	ctx := context.Background()
	st := newEmulatorStore(t)

	first := &models.Attendee{Name: "Grace", Email: "grace@example.com"}
	require.NoError(t, first.MarkPending("T1", 100))
	require.NoError(t, st.StartAttendeePayment(ctx, first, &models.PaymentIntent{
		TxnID: "T1", Purpose: models.PurposeAttendee, Amount: 100, Email: first.Email, Status: models.PaymentPending,
	}))
	require.NotEmpty(t, first.ID)

	// A pending record does not block another attempt.
	second := &models.Attendee{Name: "Grace", Email: "grace@example.com"}
	require.NoError(t, st.StartAttendeePayment(ctx, second, &models.PaymentIntent{
		TxnID: "T2", Purpose: models.PurposeAttendee, Amount: 100, Email: second.Email, Status: models.PaymentPending,
	}))

	_, target, err := st.ApplyPayment(ctx, "T1", func(in *models.PaymentIntent, tgt *store.PaymentTarget) (bool, error) {
		assert.False(t, tgt.EmailAlreadyPaid)
		in.Status = models.PaymentPaid
		return true, tgt.State().MarkPaid("T1", 100, in.CreatedAt, func() string { return "RCPT-1" })
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, target.RecordID())

	_, _, err = st.ApplyPayment(ctx, "T2", func(in *models.PaymentIntent, tgt *store.PaymentTarget) (bool, error) {
		assert.True(t, tgt.EmailAlreadyPaid)
		return false, nil
	})
	require.NoError(t, err)

	third := &models.Attendee{Name: "Grace", Email: "grace@example.com"}
	err = st.StartAttendeePayment(ctx, third, &models.PaymentIntent{
		TxnID: "T3", Purpose: models.PurposeAttendee, Amount: 100, Email: third.Email, Status: models.PaymentPending,
	})
	assert.ErrorIs(t, err, store.ErrEmailAlreadyPaid)
	_, err = st.GetPaymentIntent(ctx, "T3")
	assert.ErrorIs(t, err, store.ErrNotFound)

	att, err := st.GetAttendee(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, att.PaymentStatus)
	assert.Equal(t, "RCPT-1", att.ReceiptNumber)
}
