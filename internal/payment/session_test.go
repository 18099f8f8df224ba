package payment

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store/memstore"
)

var testConfig = Config{
	Gateway: GatewayConfig{
		MerchantKey:  "gtKFFx",
		MerchantSalt: "eCwWELxi",
		ActionURL:    "https://test.payu.in/_payment",
		SuccessURL:   "https://api.example.com/PaymentSuccessCallback",
		FailureURL:   "https://api.example.com/PaymentFailureCallback",
	},
	Fees:        Fees{Student: 250, Scholar: 500, Attendee: 100},
	SuccessPage: "https://portal.example.com/payment/success",
	FailurePage: "https://portal.example.com/payment/failure",
}

type fakeNotifier struct {
	payloads []interface{}
	err      error
}

func (f *fakeNotifier) Trigger(ctx context.Context, payload interface{}) (string, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("executions/%d", len(f.payloads)), nil
}

type fixture struct {
	svc      *Service
	store    *memstore.MemStore
	notifier *fakeNotifier
	clock    time.Time
	txnSeq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		notifier: &fakeNotifier{},
		clock:    time.Date(2025, 4, 2, 10, 30, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, testConfig, f.notifier, metrics.New())
	f.svc.now = func() time.Time { return f.clock }
	f.svc.newTxnID = func() string {
		f.txnSeq++
		return fmt.Sprintf("TXN%04d", f.txnSeq)
	}
	return f
}

func (f *fixture) seedAuthor(t *testing.T, userID string, role models.Role) {
	t.Helper()
	f.store.PutUser(&models.User{ID: userID, Name: "Ada Lovelace", Email: userID + "@example.com", Role: role})
}

func (f *fixture) seedPaper(t *testing.T, id, owner string, status models.SubmissionStatus) {
	t.Helper()
	f.store.PutSubmission(&models.Submission{
		ID:              id,
		UserID:          owner,
		ReferenceNumber: "CP-2025-0000" + id,
		Title:           "Paper",
		Authors:         []string{"Ada"},
		SubmissionType:  models.TypeFullPaper,
		Status:          status,
		CurrentVersion:  1,
		PaymentState:    models.PaymentState{PaymentStatus: models.PaymentUnpaid},
	})
}

func TestInitiatePaperPayment_FeeByRole(t *testing.T) {
	tests := []struct {
		role models.Role
		want string
	}{
		{models.RoleStudent, "250.00"},
		{models.RoleScholar, "500.00"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			f := newFixture(t)
			f.seedAuthor(t, "u1", tt.role)
			f.seedPaper(t, "s1", "u1", models.StatusAccepted)

			sess, err := f.svc.InitiatePaperPayment(context.Background(), "u1", "s1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, sess.Amount)
			assert.Equal(t, tt.want, sess.Params["amount"])
			assert.Equal(t, "TXN0001", sess.TxnID)
			assert.Equal(t, testConfig.Gateway.ActionURL, sess.PaymentURL)
			assert.Equal(t, "fullpaper", sess.Params["udf1"])
			assert.Equal(t, "s1", sess.Params["udf2"])
			assert.NotContains(t, sess.Params, "salt")
			for _, v := range sess.Params {
				assert.NotEqual(t, testConfig.Gateway.MerchantSalt, v)
			}

			req := Request{
				Key: sess.Params["key"], TxnID: sess.TxnID, Amount: sess.Amount,
				ProductInfo: sess.Params["productinfo"], FirstName: sess.Params["firstname"], Email: sess.Params["email"],
				UDF: [5]string{"fullpaper", "s1"},
			}
			assert.Equal(t, RequestHash(req, testConfig.Gateway.MerchantSalt), sess.Params["hash"])

			sub, err := f.store.GetSubmission(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, models.PaymentPending, sub.PaymentStatus)
			assert.Equal(t, "TXN0001", sub.PaymentTxnID)

			intent, err := f.store.GetPaymentIntent(context.Background(), "TXN0001")
			require.NoError(t, err)
			assert.Equal(t, models.PurposeFullPaper, intent.Purpose)
			assert.Equal(t, "s1", intent.RecordID)
			assert.Equal(t, models.PaymentPending, intent.Status)
		})
	}
}

func TestInitiatePaperPayment_PicksPayablePaper(t *testing.T) {
	f := newFixture(t)
	f.seedAuthor(t, "u1", models.RoleStudent)
	f.seedPaper(t, "s-pending", "u1", models.StatusPending)
	f.seedPaper(t, "s-ok", "u1", models.StatusAccepted)

	sess, err := f.svc.InitiatePaperPayment(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "s-ok", sess.Params["udf2"])
}

func TestInitiatePaperPayment_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		role     models.Role
		status   models.SubmissionStatus
		caller   string
		subID    string
		paid     bool
		wantKind apperr.Kind
	}{
		{"admin role has no fee", models.RoleAdmin, models.StatusAccepted, "u1", "s1", false, apperr.KindValidation},
		{"missing role", "", models.StatusAccepted, "u1", "s1", false, apperr.KindValidation},
		{"unknown user", models.RoleStudent, models.StatusAccepted, "ghost", "s1", false, apperr.KindValidation},
		{"not accepted", models.RoleStudent, models.StatusPendingReview, "u1", "s1", false, apperr.KindConflict},
		{"already paid", models.RoleStudent, models.StatusAccepted, "u1", "s1", true, apperr.KindConflict},
		{"missing submission", models.RoleStudent, models.StatusAccepted, "u1", "nope", false, apperr.KindNotFound},
		{"nothing payable", models.RoleStudent, models.StatusRejected, "u1", "", false, apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedAuthor(t, "u1", tt.role)
			f.seedAuthor(t, "u2", models.RoleStudent)
			f.seedPaper(t, "s1", "u1", tt.status)
			if tt.paid {
				sub, _ := f.store.GetSubmission(context.Background(), "s1")
				sub.PaymentStatus = models.PaymentPaid
				f.store.PutSubmission(sub)
			}

			_, err := f.svc.InitiatePaperPayment(context.Background(), tt.caller, tt.subID)
			assert.True(t, apperr.Is(err, tt.wantKind), "got %v", err)
			assert.Zero(t, f.store.Writes)
		})
	}
}

func TestInitiatePaperPayment_NotOwner(t *testing.T) {
	f := newFixture(t)
	f.seedAuthor(t, "u1", models.RoleStudent)
	f.seedAuthor(t, "u2", models.RoleStudent)
	f.seedPaper(t, "s1", "u1", models.StatusAccepted)

	_, err := f.svc.InitiatePaperPayment(context.Background(), "u2", "s1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Zero(t, f.store.Writes)
}

func TestInitiateAttendeePayment_FixedFee(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.InitiateAttendeePayment(context.Background(), AttendeeRequest{
		Name: "Grace Hopper", Email: " Grace@Example.com ", Phone: "+61 400 000 000", Organization: "Navy",
	})
	require.NoError(t, err)
	assert.Equal(t, "100.00", sess.Amount)
	assert.Equal(t, "grace@example.com", sess.Params["email"])
	assert.Equal(t, "attendee", sess.Params["udf1"])

	att, err := f.store.GetAttendee(context.Background(), sess.Params["udf2"])
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, att.PaymentStatus)
	assert.Equal(t, 100.0, att.PaymentAmount)
	assert.Equal(t, sess.TxnID, att.PaymentTxnID)
}

func TestInitiateAttendeePayment_Validation(t *testing.T) {
	tests := []AttendeeRequest{
		{Email: "a@example.com", Phone: "1"},
		{Name: "A", Phone: "1"},
		{Name: "A", Email: "not-an-email", Phone: "1"},
		{Name: "A", Email: "a@example.com"},
	}
	for i, in := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.InitiateAttendeePayment(context.Background(), in)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
			assert.Zero(t, f.store.Writes)
		})
	}
}

func TestInitiateAttendeePayment_DuplicatePaidEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := AttendeeRequest{Name: "Grace", Email: "grace@example.com", Phone: "1"}

	sess, err := f.svc.InitiateAttendeePayment(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(ctx, "success", signedCallback(sess, "success"))
	require.NoError(t, err)

	writes := f.store.Writes
	_, err = f.svc.InitiateAttendeePayment(ctx, in)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, writes, f.store.Writes)
	assert.Equal(t, 1, f.store.CountAttendees("grace@example.com"))
}

func TestFees_ForRole(t *testing.T) {
	fees := Fees{Student: 1, Scholar: 2, Attendee: 3}
	amount, ok := fees.ForRole(models.RoleScholar)
	assert.True(t, ok)
	assert.Equal(t, 2.0, amount)
	_, ok = fees.ForRole(models.RoleAdmin)
	assert.False(t, ok)
}

func TestInitiatePaperPayment_LogsSubmissionOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := newFixture(t)
	f.seedAuthor(t, "u1", models.RoleStudent)
	f.seedPaper(t, "s1", "u1", models.StatusAccepted)

	_, err := f.svc.InitiatePaperPayment(context.Background(), "u1", "s1")
	require.NoError(t, err)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "Payment session created.") {
			line = l
		}
	}
	require.NotEmpty(t, line, buf.String())
	assert.Equal(t, 1, strings.Count(line, `"submissionId"`), line)
	assert.Contains(t, line, `"submissionId":"s1"`)
	assert.Contains(t, line, `"txnId":"TXN0001"`)
}
