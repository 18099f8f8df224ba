// Package receipt authorizes and renders payment receipts.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

// Data is the already persisted information printed on a receipt.
type Data struct {
	ReceiptNumber   string
	TxnID           string
	PaidAt          time.Time
	PayerName       string
	PayerEmail      string
	Description     string
	ReferenceNumber string
	Amount          string
}

// Renderer turns receipt data into a PDF document.
type Renderer interface {
	Render(ctx context.Context, d Data) ([]byte, error)
}

// Receipt is a rendered receipt.
type Receipt struct {
	Number   string
	Filename string
	PDF      []byte
}

// Generator gates receipt access on a confirmed payment.
type Generator struct {
	store    store.Store
	renderer Renderer
	metrics  *metrics.Collectors
	now      func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator(st store.Store, r Renderer, m *metrics.Collectors) *Generator {
	return &Generator{store: st, renderer: r, metrics: m, now: time.Now}
}

// ForTxn renders the receipt for the record paid by txnID. Knowing the
// transaction id is the attendee's capability to fetch it. The lookup is
// read-only unless the paid record still lacks a receipt number.
func (g *Generator) ForTxn(ctx context.Context, txnID string) (*Receipt, error) {
	const op = "receipt.ForTxn"
	logCtx := slog.With("txnId", txnID)
	if txnID == "" {
		return nil, apperr.Validation(op, "txnId is required")
	}

	intent, err := g.store.GetPaymentIntent(ctx, txnID)
	if err != nil {
		return nil, g.storeErr(op, "transaction", err, logCtx)
	}
	target, err := g.loadTarget(ctx, intent)
	if err != nil {
		return nil, g.storeErr(op, "transaction", err, logCtx)
	}
	if state := target.State(); !state.IsPaid() || state.PaymentTxnID != txnID {
		return nil, apperr.Forbidden(op)
	}

	if target.State().ReceiptNumber == "" {
		now := g.now().UTC()
		intent, target, err = g.store.ApplyPayment(ctx, txnID, func(intent *models.PaymentIntent, target *store.PaymentTarget) (bool, error) {
			state := target.State()
			if !state.IsPaid() || state.PaymentTxnID != txnID {
				return false, apperr.Forbidden(op)
			}
			return state.EnsureReceiptNumber(NumberGenerator(now)), nil
		})
		if err != nil {
			return nil, g.storeErr(op, "transaction", err, logCtx)
		}
		logCtx.Warn("Receipt number was missing on a paid record; assigned on access.", "receiptNumber", target.State().ReceiptNumber)
	}

	d := Data{TxnID: txnID, Amount: formatAmount(intent.Amount), Description: intent.ProductInfo}
	if sub := target.Submission; sub != nil {
		fillFromState(&d, &sub.PaymentState)
		d.ReferenceNumber = sub.ReferenceNumber
		d.PayerName, d.PayerEmail = intent.FirstName, intent.Email
	} else {
		att := target.Attendee
		fillFromState(&d, &att.PaymentState)
		d.PayerName, d.PayerEmail = att.Name, att.Email
	}
	return g.render(ctx, d, logCtx)
}

func (g *Generator) loadTarget(ctx context.Context, intent *models.PaymentIntent) (*store.PaymentTarget, error) {
	switch intent.Purpose {
	case models.PurposeFullPaper:
		sub, err := g.store.GetSubmission(ctx, intent.RecordID)
		if err != nil {
			return nil, err
		}
		return &store.PaymentTarget{Submission: sub}, nil
	case models.PurposeAttendee:
		att, err := g.store.GetAttendee(ctx, intent.RecordID)
		if err != nil {
			return nil, err
		}
		return &store.PaymentTarget{Attendee: att}, nil
	default:
		return nil, fmt.Errorf("payment intent %s has unknown purpose %q", intent.TxnID, intent.Purpose)
	}
}

// ForOwner renders the receipt for one of the caller's paid submissions. When
// submissionID is empty the caller's first paid submission is used.
func (g *Generator) ForOwner(ctx context.Context, callerID, submissionID string) (*Receipt, error) {
	const op = "receipt.ForOwner"
	logCtx := slog.With("userId", callerID, "submissionId", submissionID)
	if callerID == "" {
		return nil, apperr.Forbidden(op)
	}

	sub, err := g.ownedSubmission(ctx, op, callerID, submissionID)
	if err != nil {
		return nil, g.storeErr(op, "submission", err, logCtx)
	}
	if sub.UserID != callerID || !sub.IsPaid() {
		return nil, apperr.Forbidden(op)
	}

	if sub.ReceiptNumber == "" {
		now := g.now().UTC()
		sub, err = g.store.UpdateSubmission(ctx, sub.ID, func(s *models.Submission) error {
			if !s.IsPaid() {
				return apperr.Forbidden(op)
			}
			s.EnsureReceiptNumber(NumberGenerator(now))
			return nil
		})
		if err != nil {
			return nil, g.storeErr(op, "submission", err, logCtx)
		}
		logCtx.Warn("Receipt number was missing on a paid submission; assigned on access.", "receiptNumber", sub.ReceiptNumber)
	}

	d := Data{
		TxnID:           sub.PaymentTxnID,
		Amount:          formatAmount(sub.PaymentAmount),
		Description:     fmt.Sprintf("Full paper registration: %s", sub.Title),
		ReferenceNumber: sub.ReferenceNumber,
	}
	fillFromState(&d, &sub.PaymentState)
	if user, err := g.store.GetUser(ctx, callerID); err == nil {
		d.PayerName, d.PayerEmail = user.Name, user.Email
	} else {
		logCtx.Warn("Receipt rendered without payer details", "error", err)
	}
	return g.render(ctx, d, logCtx)
}

func (g *Generator) ownedSubmission(ctx context.Context, op, callerID, submissionID string) (*models.Submission, error) {
	if submissionID != "" {
		return g.store.GetSubmission(ctx, submissionID)
	}
	subs, err := g.store.ListSubmissionsByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if s.IsPaid() {
			return s, nil
		}
	}
	return nil, apperr.Forbidden(op)
}

func (g *Generator) render(ctx context.Context, d Data, logCtx *slog.Logger) (*Receipt, error) {
	pdf, err := g.renderer.Render(ctx, d)
	if err != nil {
		logCtx.Error("Failed to render receipt", "receiptNumber", d.ReceiptNumber, "error", err)
		return nil, apperr.Internal("receipt.render", err)
	}
	g.metrics.ReceiptsServed.Inc()
	return &Receipt{
		Number:   d.ReceiptNumber,
		Filename: d.ReceiptNumber + ".pdf",
		PDF:      pdf,
	}, nil
}

func (g *Generator) storeErr(op, what string, err error, logCtx *slog.Logger) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(op, what)
	default:
		logCtx.Error("Store operation failed", "op", op, "error", err)
		return apperr.Internal(op, err)
	}
}

func fillFromState(d *Data, p *models.PaymentState) {
	d.ReceiptNumber = p.ReceiptNumber
	if p.PaymentDate != nil {
		d.PaidAt = *p.PaymentDate
	}
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("INR %.2f", amount)
}
