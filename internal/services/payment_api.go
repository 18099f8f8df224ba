package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/conferenceportal/internal/gcp"
	"github.com/Lllllllleong/conferenceportal/internal/handlers"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/payment"
	"github.com/Lllllllleong/conferenceportal/internal/receipt"
)

// NewPaymentAPI wires the payment, callback and receipt functions from the
// environment.
func NewPaymentAPI(ctx context.Context) (*handlers.PaymentAPI, error) {
	config, err := payment.LoadConfig()
	if err != nil {
		return nil, err
	}
	jwtManager, err := NewJWTManager()
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(ctx, false)
	if err != nil {
		return nil, err
	}
	trigger, err := newWorkflowNotifier(ctx, backend.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow trigger: %w", err)
	}

	m := metrics.New()
	var notifier payment.Notifier
	if trigger != nil {
		notifier = trigger
	}
	payments := payment.NewService(backend.Store, config, notifier, m)
	receipts := receipt.NewGenerator(backend.Store,
		receipt.NewPDFRenderer(gcp.GetEnv("RECEIPT_ISSUER", "Conference Secretariat")), m)

	slog.Info("Payment API initialized.", "actionUrl", config.Gateway.ActionURL, "postPaymentWorkflow", trigger != nil)
	return handlers.NewPaymentAPI(payments, receipts, jwtManager, config.SuccessPage, config.FailurePage, m.Handler()), nil
}
