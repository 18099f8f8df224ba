package receipt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store"
	"github.com/Lllllllleong/conferenceportal/internal/store/memstore"
)

type fakeRenderer struct {
	rendered []Data
	err      error
}

func (f *fakeRenderer) Render(ctx context.Context, d Data) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rendered = append(f.rendered, d)
	return []byte("%PDF-receipt " + d.ReceiptNumber), nil
}

var paidAt = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

func seed(t *testing.T, st *memstore.MemStore, ps models.PaymentState) {
	t.Helper()
	st.PutUser(&models.User{ID: "u1", Name: "Ada Lovelace", Email: "ada@example.com", Role: models.RoleScholar})
	st.PutSubmission(&models.Submission{
		ID:              "s1",
		UserID:          "u1",
		ReferenceNumber: "CP-2025-ABCDEF01",
		Title:           "Analytical Engines",
		SubmissionType:  models.TypeFullPaper,
		Status:          models.StatusAccepted,
		CurrentVersion:  1,
		PaymentState:    ps,
	})
}

func paidState(receiptNumber string) models.PaymentState {
	at := paidAt
	return models.PaymentState{
		PaymentStatus: models.PaymentPaid,
		PaymentTxnID:  "TXN1",
		PaymentAmount: 500,
		PaymentDate:   &at,
		ReceiptNumber: receiptNumber,
	}
}

func TestForOwner_PaidSubmission(t *testing.T) {
	st := memstore.New()
	seed(t, st, paidState("RCPT-20250506-0000AAAA"))
	r := &fakeRenderer{}
	g := NewGenerator(st, r, metrics.New())

	rec, err := g.ForOwner(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "RCPT-20250506-0000AAAA", rec.Number)
	assert.Equal(t, "RCPT-20250506-0000AAAA.pdf", rec.Filename)
	assert.Zero(t, st.Writes)

	require.Len(t, r.rendered, 1)
	d := r.rendered[0]
	assert.Equal(t, "INR 500.00", d.Amount)
	assert.Equal(t, "Ada Lovelace", d.PayerName)
	assert.Equal(t, "CP-2025-ABCDEF01", d.ReferenceNumber)
	assert.Equal(t, paidAt, d.PaidAt)
}

func TestForOwner_AssignsMissingReceiptNumberOnce(t *testing.T) {
	st := memstore.New()
	seed(t, st, paidState(""))
	g := NewGenerator(st, &fakeRenderer{}, metrics.New())

	first, err := g.ForOwner(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Regexp(t, `^RCPT-\d{8}-[0-9A-F]{8}$`, first.Number)

	second, err := g.ForOwner(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, first.Number, second.Number)
	assert.Equal(t, 1, st.Writes)
}

func TestForOwner_ForbiddenUnlessPaid(t *testing.T) {
	for _, status := range []models.PaymentStatus{models.PaymentUnpaid, models.PaymentPending, models.PaymentFailed, ""} {
		t.Run(string(status), func(t *testing.T) {
			st := memstore.New()
			seed(t, st, models.PaymentState{PaymentStatus: status, PaymentTxnID: "TXN1"})
			r := &fakeRenderer{}
			g := NewGenerator(st, r, metrics.New())

			_, err := g.ForOwner(context.Background(), "u1", "s1")
			assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)
			_, err = g.ForOwner(context.Background(), "u1", "")
			assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)
			assert.Empty(t, r.rendered)
			assert.Zero(t, st.Writes)
		})
	}
}

func TestForOwner_OtherUsersSubmission(t *testing.T) {
	st := memstore.New()
	seed(t, st, paidState("RCPT-20250506-0000AAAA"))
	g := NewGenerator(st, &fakeRenderer{}, metrics.New())

	_, err := g.ForOwner(context.Background(), "u2", "s1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = g.ForOwner(context.Background(), "u1", "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestForTxn(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	g := NewGenerator(st, &fakeRenderer{}, metrics.New())

	att := &models.Attendee{ID: "a1", Name: "Grace", Email: "grace@example.com", Phone: "1"}
	require.NoError(t, att.MarkPending("TXN9", 100))
	intent := &models.PaymentIntent{TxnID: "TXN9", Purpose: models.PurposeAttendee, Amount: 100, Email: att.Email, Status: models.PaymentPending}
	require.NoError(t, st.StartAttendeePayment(ctx, att, intent))

	_, err := g.ForTxn(ctx, "TXN9")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, _, err = st.ApplyPayment(ctx, "TXN9", func(in *models.PaymentIntent, tgt *store.PaymentTarget) (bool, error) {
		in.Status = models.PaymentPaid
		return true, tgt.State().MarkPaid("TXN9", 100, paidAt, func() string { return "" })
	})
	require.NoError(t, err)

	rec, err := g.ForTxn(ctx, "TXN9")
	require.NoError(t, err)
	assert.Regexp(t, `^RCPT-\d{8}-[0-9A-F]{8}$`, rec.Number)

	writes := st.Writes
	again, err := g.ForTxn(ctx, "TXN9")
	require.NoError(t, err)
	assert.Equal(t, rec.Number, again.Number)
	assert.Equal(t, writes, st.Writes)

	_, err = g.ForTxn(ctx, "TXN-unknown")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = g.ForTxn(ctx, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestForTxn_PaperReadsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seed(t, st, models.PaymentState{PaymentStatus: models.PaymentUnpaid})
	require.NoError(t, st.StartSubmissionPayment(ctx,
		&models.PaymentIntent{TxnID: "TXN1", Purpose: models.PurposeFullPaper, RecordID: "s1", Amount: 500, FirstName: "Ada", Email: "ada@example.com"},
		func(s *models.Submission) error {
			s.PaymentState = paidState("RCPT-20250506-0000BBBB")
			return nil
		}))
	r := &fakeRenderer{}
	g := NewGenerator(st, r, metrics.New())
	writes := st.Writes

	rec, err := g.ForTxn(ctx, "TXN1")
	require.NoError(t, err)
	assert.Equal(t, "RCPT-20250506-0000BBBB", rec.Number)
	assert.Equal(t, writes, st.Writes)
	require.Len(t, r.rendered, 1)
	assert.Equal(t, "CP-2025-ABCDEF01", r.rendered[0].ReferenceNumber)
	assert.Equal(t, "INR 500.00", r.rendered[0].Amount)

	// A later transaction that never settled cannot fetch the receipt.
	require.NoError(t, st.StartSubmissionPayment(ctx,
		&models.PaymentIntent{TxnID: "TXN2", Purpose: models.PurposeFullPaper, RecordID: "s1", Amount: 500},
		func(*models.Submission) error { return nil }))
	_, err = g.ForTxn(ctx, "TXN2")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestRenderFailureIsInternal(t *testing.T) {
	st := memstore.New()
	seed(t, st, paidState("RCPT-20250506-0000AAAA"))
	g := NewGenerator(st, &fakeRenderer{err: errors.New("font missing")}, metrics.New())

	_, err := g.ForOwner(context.Background(), "u1", "s1")
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestNewNumber(t *testing.T) {
	n := NewNumber(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^RCPT-20251231-[0-9A-F]{8}$`, n)
	assert.NotEqual(t, n, NewNumber(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)))
}
