package payment

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/receipt"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

// Reason codes surfaced to the payer's failure redirect.
const (
	ReasonMalformed             = "malformed_callback"
	ReasonHashMismatch          = "hash_mismatch"
	ReasonUnknownTransaction    = "unknown_transaction"
	ReasonAmountMismatch        = "amount_mismatch"
	ReasonDuplicateRegistration = "duplicate_registration"
	ReasonAlreadyPaid           = "already_paid"
	ReasonPaymentFailed         = "payment_failed"
)

// Outcome describes what a callback did to the stored record.
type Outcome string

const (
	OutcomePaid      Outcome = "paid"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
	OutcomeStale     Outcome = "stale"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

// CallbackResult is the effect of a verified callback.
type CallbackResult struct {
	TxnID         string
	Purpose       models.PaymentPurpose
	RecordID      string
	Outcome       Outcome
	PaymentStatus models.PaymentStatus
	ReceiptNumber string

	// Reason is set when the payer should land on the failure page.
	Reason string
}

// Paid reports whether the record is paid by this transaction.
func (r *CallbackResult) Paid() bool {
	return r.Outcome == OutcomePaid || r.Outcome == OutcomeDuplicate
}

// HandleCallback verifies a gateway callback and applies it. Only a callback
// whose reverse hash verifies can change state; the verified status decides
// between the success and failure paths.
func (s *Service) HandleCallback(ctx context.Context, kind string, form url.Values) (*CallbackResult, error) {
	const op = "payment.HandleCallback"

	cb, err := ParseCallback(form)
	if err != nil {
		s.metrics.PaymentCallbacks.WithLabelValues(kind, ReasonMalformed).Inc()
		return nil, &apperr.Error{Kind: apperr.KindIntegrity, Op: op, Reason: ReasonMalformed, Message: "malformed callback", Err: err}
	}
	logCtx := slog.With("txnId", cb.TxnID, "callback", kind, "gatewayStatus", cb.Status)

	if !VerifyCallback(cb, s.config.Gateway) {
		logCtx.Warn("Rejected callback with invalid hash.", "gatewayRef", cb.GatewayRef)
		s.metrics.PaymentCallbacks.WithLabelValues(kind, ReasonHashMismatch).Inc()
		return nil, apperr.Integrity(op, ReasonHashMismatch, "callback signature mismatch")
	}

	var result *CallbackResult
	if cb.Succeeded() {
		result, err = s.applySuccess(ctx, op, cb, logCtx)
	} else {
		result, err = s.applyFailure(ctx, op, cb, logCtx)
	}
	if err != nil {
		outcome := apperr.ReasonOf(err)
		if outcome == "" {
			outcome = string(apperr.KindOf(err))
		}
		s.metrics.PaymentCallbacks.WithLabelValues(kind, outcome).Inc()
		return nil, err
	}
	s.metrics.PaymentCallbacks.WithLabelValues(kind, string(result.Outcome)).Inc()
	return result, nil
}

func (s *Service) applySuccess(ctx context.Context, op string, cb Callback, logCtx *slog.Logger) (*CallbackResult, error) {
	now := s.now().UTC()
	var outcome Outcome
	var reason string

	intent, target, err := s.store.ApplyPayment(ctx, cb.TxnID, func(intent *models.PaymentIntent, target *store.PaymentTarget) (bool, error) {
		if !amountsMatch(cb.Amount, intent.Amount) {
			return false, apperr.Integrity(op, ReasonAmountMismatch, "callback amount does not match the session")
		}
		state := target.State()
		switch {
		case state.IsPaid() && state.PaymentTxnID == cb.TxnID:
			outcome = OutcomeDuplicate
			return false, nil
		case state.IsPaid():
			// Paid twice through different transactions.
			outcome, reason = OutcomeRejected, ReasonAlreadyPaid
			intent.Status = models.PaymentFailed
		case target.EmailAlreadyPaid:
			outcome, reason = OutcomeRejected, ReasonDuplicateRegistration
			intent.Status = models.PaymentFailed
			if state.PaymentStatus == models.PaymentFailed {
				state.FailureReason = ReasonDuplicateRegistration
			} else if err := state.MarkFailed(ReasonDuplicateRegistration); err != nil {
				return false, apperr.Conflict(op, "%v", err)
			}
		default:
			if err := state.MarkPaid(cb.TxnID, intent.Amount, now, receipt.NumberGenerator(now)); err != nil {
				return false, apperr.Conflict(op, "%v", err)
			}
			outcome = OutcomePaid
			intent.Status = models.PaymentPaid
		}
		intent.GatewayRef = cb.GatewayRef
		intent.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, s.callbackStoreErr(op, err, logCtx)
	}

	result := newResult(intent, target, outcome, reason)
	switch outcome {
	case OutcomePaid:
		logCtx.Info("Payment confirmed.", "recordId", result.RecordID, "receiptNumber", result.ReceiptNumber)
		s.notify(ctx, intent, result, logCtx)
	case OutcomeDuplicate:
		logCtx.Info("Duplicate success callback ignored.", "recordId", result.RecordID)
	default:
		logCtx.Error("Payment collected for a record that cannot accept it; refund required",
			"recordId", result.RecordID, "reason", reason, "gatewayRef", cb.GatewayRef, "amount", cb.Amount)
	}
	return result, nil
}

func (s *Service) applyFailure(ctx context.Context, op string, cb Callback, logCtx *slog.Logger) (*CallbackResult, error) {
	now := s.now().UTC()
	var outcome Outcome

	intent, target, err := s.store.ApplyPayment(ctx, cb.TxnID, func(intent *models.PaymentIntent, target *store.PaymentTarget) (bool, error) {
		state := target.State()
		if intent.Status == models.PaymentPaid || state.IsPaid() {
			outcome = OutcomeIgnored
			return false, nil
		}
		if intent.Status == models.PaymentFailed {
			outcome = OutcomeIgnored
			return false, nil
		}
		intent.Status = models.PaymentFailed
		intent.GatewayRef = cb.GatewayRef
		intent.UpdatedAt = now
		if state.PaymentTxnID != cb.TxnID {
			// A newer session owns the record.
			outcome = OutcomeStale
			return true, nil
		}
		if err := state.MarkFailed(failureReason(cb)); err != nil {
			return false, apperr.Conflict(op, "%v", err)
		}
		outcome = OutcomeFailed
		return true, nil
	})
	if err != nil {
		return nil, s.callbackStoreErr(op, err, logCtx)
	}

	result := newResult(intent, target, outcome, ReasonPaymentFailed)
	logCtx.Info("Failure callback processed.", "recordId", result.RecordID, "outcome", outcome, "gatewayError", cb.ErrorMessage)
	return result, nil
}

func newResult(intent *models.PaymentIntent, target *store.PaymentTarget, outcome Outcome, reason string) *CallbackResult {
	state := target.State()
	return &CallbackResult{
		TxnID:         intent.TxnID,
		Purpose:       intent.Purpose,
		RecordID:      target.RecordID(),
		Outcome:       outcome,
		PaymentStatus: state.PaymentStatus,
		ReceiptNumber: state.ReceiptNumber,
		Reason:        reason,
	}
}

func (s *Service) callbackStoreErr(op string, err error, logCtx *slog.Logger) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		logCtx.Warn("Callback rejected", "reason", appErr.Reason, "error", err)
		return appErr
	case errors.Is(err, store.ErrNotFound):
		logCtx.Warn("Callback for unknown transaction")
		return apperr.Integrity(op, ReasonUnknownTransaction, "unknown transaction")
	default:
		logCtx.Error("Failed to apply callback", "error", err)
		return apperr.Internal(op, err)
	}
}

// notify is best effort: the payment is already committed.
func (s *Service) notify(ctx context.Context, intent *models.PaymentIntent, result *CallbackResult, logCtx *slog.Logger) {
	if s.notifier == nil {
		return
	}
	payload := map[string]interface{}{
		"txnId":         result.TxnID,
		"purpose":       result.Purpose,
		"recordId":      result.RecordID,
		"receiptNumber": result.ReceiptNumber,
		"amount":        FormatAmount(intent.Amount),
		"email":         intent.Email,
		"name":          intent.FirstName,
	}
	execName, err := s.notifier.Trigger(ctx, payload)
	if err != nil {
		logCtx.Error("Failed to start post-payment workflow", "error", err)
		return
	}
	logCtx.Info("Post-payment workflow started.", "execution", execName)
}

func amountsMatch(raw string, expected float64) bool {
	got, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	return FormatAmount(got) == FormatAmount(expected)
}

func failureReason(cb Callback) string {
	if cb.ErrorMessage != "" {
		return cb.ErrorMessage
	}
	return cb.Status
}
