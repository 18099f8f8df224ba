package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

func TestUpdateSubmission_GuardFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.PutSubmission(&models.Submission{ID: "s1", Title: "before"})

	_, err := m.UpdateSubmission(ctx, "s1", func(s *models.Submission) error {
		s.Title = "after"
		return errors.New("guard")
	})
	require.Error(t, err)
	assert.Zero(t, m.Writes)

	got, err := m.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "before", got.Title)
}

func TestGetSubmission_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.PutSubmission(&models.Submission{ID: "s1", Authors: []string{"Ada"}})

	got, err := m.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	got.Authors[0] = "Mallory"

	again, err := m.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada"}, again.Authors)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	m := New()

	_, err := m.GetSubmission(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = m.GetUser(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = m.GetPaymentIntent(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, _, err = m.ApplyPayment(ctx, "nope", func(*models.PaymentIntent, *store.PaymentTarget) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStartAttendeePayment_RejectsPaidEmail(t *testing.T) {
	ctx := context.Background()
	m := New()

	first := &models.Attendee{Email: "a@example.com"}
	intent := &models.PaymentIntent{TxnID: "T1", Purpose: models.PurposeAttendee}
	require.NoError(t, m.StartAttendeePayment(ctx, first, intent))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, intent.RecordID)

	_, _, err := m.ApplyPayment(ctx, "T1", func(in *models.PaymentIntent, target *store.PaymentTarget) (bool, error) {
		assert.False(t, target.EmailAlreadyPaid)
		target.Attendee.PaymentStatus = models.PaymentPaid
		return true, nil
	})
	require.NoError(t, err)

	err = m.StartAttendeePayment(ctx, &models.Attendee{Email: "a@example.com"}, &models.PaymentIntent{TxnID: "T2", Purpose: models.PurposeAttendee})
	assert.ErrorIs(t, err, store.ErrEmailAlreadyPaid)
	assert.Equal(t, 1, m.CountAttendees("a@example.com"))
}

func TestApplyPayment_UnchangedSkipsWrite(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.PutSubmission(&models.Submission{ID: "s1"})
	require.NoError(t, m.StartSubmissionPayment(ctx,
		&models.PaymentIntent{TxnID: "T1", Purpose: models.PurposeFullPaper, RecordID: "s1"},
		func(s *models.Submission) error { return s.MarkPending("T1", 250) }))
	writes := m.Writes

	_, target, err := m.ApplyPayment(ctx, "T1", func(*models.PaymentIntent, *store.PaymentTarget) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, writes, m.Writes)
	assert.Equal(t, "s1", target.RecordID())
	assert.Equal(t, models.PaymentPending, target.State().PaymentStatus)
}

func TestListSubmissionsByOwner(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.PutSubmission(&models.Submission{ID: "s1", UserID: "u1"})
	m.PutSubmission(&models.Submission{ID: "s2", UserID: "u2"})

	subs, err := m.ListSubmissionsByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s1", subs[0].ID)
}
