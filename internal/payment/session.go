// Package payment implements the payment session manager and the gateway
// callback verifier.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/gcp"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

// Fees are the server-side amounts charged per role or registration type.
type Fees struct {
	Student  float64
	Scholar  float64
	Attendee float64
}

// ForRole returns the full-paper fee for role.
func (f Fees) ForRole(role models.Role) (float64, bool) {
	switch role {
	case models.RoleStudent:
		return f.Student, true
	case models.RoleScholar:
		return f.Scholar, true
	default:
		return 0, false
	}
}

// Config configures the payment service.
type Config struct {
	Gateway GatewayConfig
	Fees    Fees

	// SuccessPage and FailurePage are the frontend pages the payer lands on
	// after a callback has been processed.
	SuccessPage string
	FailurePage string
}

// LoadConfig reads the payment configuration from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		Gateway: GatewayConfig{
			MerchantKey:  gcp.GetEnv("PAYU_MERCHANT_KEY", ""),
			MerchantSalt: gcp.GetEnv("PAYU_MERCHANT_SALT", ""),
			ActionURL:    gcp.GetEnv("PAYU_ACTION_URL", "https://test.payu.in/_payment"),
			SuccessURL:   gcp.GetEnv("PAYMENT_SUCCESS_URL", ""),
			FailureURL:   gcp.GetEnv("PAYMENT_FAILURE_URL", ""),
		},
		Fees: Fees{
			Student:  gcp.GetEnvFloat("FEE_STUDENT", 250),
			Scholar:  gcp.GetEnvFloat("FEE_SCHOLAR", 500),
			Attendee: gcp.GetEnvFloat("FEE_ATTENDEE", 100),
		},
		SuccessPage: gcp.GetEnv("FRONTEND_SUCCESS_PAGE", "/payment/success"),
		FailurePage: gcp.GetEnv("FRONTEND_FAILURE_PAGE", "/payment/failure"),
	}
	if cfg.Gateway.MerchantKey == "" || cfg.Gateway.MerchantSalt == "" {
		return Config{}, fmt.Errorf("PAYU_MERCHANT_KEY and PAYU_MERCHANT_SALT must be set")
	}
	if cfg.Gateway.SuccessURL == "" || cfg.Gateway.FailureURL == "" {
		return Config{}, fmt.Errorf("PAYMENT_SUCCESS_URL and PAYMENT_FAILURE_URL must be set")
	}
	return cfg, nil
}

// Notifier hands a confirmed payment to downstream processing.
// *gcp.WorkflowTrigger satisfies it.
type Notifier interface {
	Trigger(ctx context.Context, payload interface{}) (string, error)
}

// Service creates payment sessions and applies gateway callbacks.
type Service struct {
	store    store.Store
	config   Config
	notifier Notifier
	metrics  *metrics.Collectors

	now      func() time.Time
	newTxnID func() string
}

// NewService creates a payment Service. notifier may be nil.
func NewService(st store.Store, config Config, notifier Notifier, m *metrics.Collectors) *Service {
	return &Service{
		store:    st,
		config:   config,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
		newTxnID: newTxnID,
	}
}

// Session is what the client needs to post the payer to the gateway.
type Session struct {
	PaymentURL string            `json:"paymentUrl"`
	TxnID      string            `json:"txnId"`
	Amount     string            `json:"amount"`
	Params     map[string]string `json:"params"`
}

// AttendeeRequest is the attendee registration form. Any client-side amount
// is ignored.
type AttendeeRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
}

// newTxnID returns a 25 character transaction id, the gateway's maximum.
func newTxnID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "T" + strings.ToUpper(id[:24])
}

func (s *Service) buildRequest(txnID string, amount float64, productInfo, firstName, email, phone string, purpose models.PaymentPurpose, recordID string) Request {
	gw := s.config.Gateway
	req := Request{
		Key:         gw.MerchantKey,
		TxnID:       txnID,
		Amount:      FormatAmount(amount),
		ProductInfo: productInfo,
		FirstName:   firstName,
		Email:       email,
		Phone:       phone,
		SuccessURL:  gw.SuccessURL,
		FailureURL:  gw.FailureURL,
		UDF:         [5]string{string(purpose), recordID},
	}
	req.Hash = RequestHash(req, gw.MerchantSalt)
	return req
}

func (s *Service) session(req Request) *Session {
	return &Session{
		PaymentURL: s.config.Gateway.ActionURL,
		TxnID:      req.TxnID,
		Amount:     req.Amount,
		Params:     req.Params(),
	}
}

func checkPayable(op string, sub *models.Submission, callerID string) error {
	if sub.UserID != callerID {
		return apperr.Forbidden(op)
	}
	if sub.SubmissionType != models.TypeFullPaper {
		return apperr.Conflict(op, "only full papers require payment")
	}
	if sub.Status != models.StatusAccepted {
		return apperr.Conflict(op, "submission is %s, not accepted", sub.Status)
	}
	if sub.IsPaid() {
		return apperr.Conflict(op, "submission is already paid")
	}
	return nil
}

// InitiatePaperPayment opens a payment session for the caller's accepted full
// paper. When submissionID is empty the caller's first payable full paper is
// used. The fee comes from the caller's role.
func (s *Service) InitiatePaperPayment(ctx context.Context, callerID, submissionID string) (*Session, error) {
	const op = "payment.InitiatePaperPayment"
	logCtx := slog.With("userId", callerID)
	if callerID == "" {
		return nil, apperr.Forbidden(op)
	}

	user, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Validation(op, "missing or invalid role")
		}
		logCtx.Error("Failed to load user", "error", err)
		return nil, apperr.Internal(op, err)
	}
	amount, ok := s.config.Fees.ForRole(user.Role)
	if !ok {
		return nil, apperr.Validation(op, "missing or invalid role")
	}

	sub, err := s.payableSubmission(ctx, op, callerID, submissionID, logCtx)
	if err != nil {
		return nil, err
	}

	txnID := s.newTxnID()
	logCtx = logCtx.With("submissionId", sub.ID, "txnId", txnID)
	req := s.buildRequest(txnID, amount,
		fmt.Sprintf("Full paper registration %s", sub.ReferenceNumber),
		user.Name, user.Email, "", models.PurposeFullPaper, sub.ID)

	now := s.now().UTC()
	intent := &models.PaymentIntent{
		TxnID:       txnID,
		Purpose:     models.PurposeFullPaper,
		RecordID:    sub.ID,
		UserID:      callerID,
		Amount:      amount,
		ProductInfo: req.ProductInfo,
		FirstName:   req.FirstName,
		Email:       req.Email,
		Status:      models.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.StartSubmissionPayment(ctx, intent, func(current *models.Submission) error {
		if err := checkPayable(op, current, callerID); err != nil {
			return err
		}
		if err := current.MarkPending(txnID, amount); err != nil {
			return apperr.Conflict(op, "%v", err)
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		logCtx.Error("Failed to persist payment intent", "error", err)
		return nil, apperr.Internal(op, err)
	}

	s.metrics.PaymentsInitiated.WithLabelValues(string(models.PurposeFullPaper)).Inc()
	logCtx.Info("Payment session created.", "amount", req.Amount, "role", user.Role)
	return s.session(req), nil
}

func (s *Service) payableSubmission(ctx context.Context, op, callerID, submissionID string, logCtx *slog.Logger) (*models.Submission, error) {
	if submissionID != "" {
		sub, err := s.store.GetSubmission(ctx, submissionID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(op, "submission")
		}
		if err != nil {
			logCtx.Error("Failed to load submission", "submissionId", submissionID, "error", err)
			return nil, apperr.Internal(op, err)
		}
		if err := checkPayable(op, sub, callerID); err != nil {
			return nil, err
		}
		return sub, nil
	}

	subs, err := s.store.ListSubmissionsByOwner(ctx, callerID)
	if err != nil {
		logCtx.Error("Failed to list submissions", "error", err)
		return nil, apperr.Internal(op, err)
	}
	for _, sub := range subs {
		if checkPayable(op, sub, callerID) == nil {
			return sub, nil
		}
	}
	return nil, apperr.Conflict(op, "no accepted full paper awaiting payment")
}

// InitiateAttendeePayment registers an attendee and opens a payment session
// for the fixed attendee fee.
func (s *Service) InitiateAttendeePayment(ctx context.Context, in AttendeeRequest) (*Session, error) {
	const op = "payment.InitiateAttendeePayment"

	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	email := models.NormalizeEmail(in.Email)
	if name == "" {
		return nil, apperr.Validation(op, "name is required")
	}
	if email == "" {
		return nil, apperr.Validation(op, "email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Validation(op, "email is not valid")
	}
	if phone == "" {
		return nil, apperr.Validation(op, "phone is required")
	}

	amount := s.config.Fees.Attendee
	txnID := s.newTxnID()
	now := s.now().UTC()
	att := &models.Attendee{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		Organization: strings.TrimSpace(in.Organization),
		CreatedAt:    now,
	}
	if err := att.MarkPending(txnID, amount); err != nil {
		return nil, apperr.Internal(op, err)
	}
	logCtx := slog.With("attendeeId", att.ID, "txnId", txnID)

	req := s.buildRequest(txnID, amount, "Conference attendee registration", name, email, phone, models.PurposeAttendee, att.ID)
	intent := &models.PaymentIntent{
		TxnID:       txnID,
		Purpose:     models.PurposeAttendee,
		RecordID:    att.ID,
		Amount:      amount,
		ProductInfo: req.ProductInfo,
		FirstName:   name,
		Email:       email,
		Status:      models.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.StartAttendeePayment(ctx, att, intent); err != nil {
		if errors.Is(err, store.ErrEmailAlreadyPaid) {
			logCtx.Info("Rejected duplicate attendee registration.")
			return nil, apperr.Conflict(op, "this email is already registered and paid")
		}
		logCtx.Error("Failed to persist attendee registration", "error", err)
		return nil, apperr.Internal(op, err)
	}

	s.metrics.PaymentsInitiated.WithLabelValues(string(models.PurposeAttendee)).Inc()
	logCtx.Info("Attendee payment session created.", "amount", req.Amount)
	return s.session(req), nil
}
