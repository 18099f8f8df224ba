package models

import (
	"fmt"
	"time"
)

// PaymentStatus is the payment sub-state shared by submissions and attendees.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// paymentTransitions lists the allowed next states: unpaid/failed → pending →
// paid and pending → failed, plus two extra edges. pending → pending lets a
// payer restart with a fresh transaction. failed → paid settles a verified
// success that arrives after a failure for the same transaction. Nothing
// leaves paid, and unpaid never goes straight to paid.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:  {PaymentPending},
	PaymentFailed:  {PaymentPending, PaymentPaid},
	PaymentPending: {PaymentPending, PaymentPaid, PaymentFailed},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	from := s
	if from == "" {
		from = PaymentUnpaid
	}
	for _, allowed := range paymentTransitions[from] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentPurpose identifies what a payment settles.
type PaymentPurpose string

const (
	PurposeFullPaper PaymentPurpose = "fullpaper"
	PurposeAttendee  PaymentPurpose = "attendee"
)

// PaymentState is embedded in every payable Firestore record.
type PaymentState struct {
	PaymentStatus PaymentStatus `firestore:"paymentStatus" json:"paymentStatus"`
	PaymentTxnID  string        `firestore:"paymentTxnId" json:"paymentTxnId,omitempty"`
	PaymentAmount float64       `firestore:"paymentAmount" json:"paymentAmount,omitempty"`
	PaymentDate   *time.Time    `firestore:"paymentDate" json:"paymentDate,omitempty"`
	ReceiptNumber string        `firestore:"receiptNumber" json:"receiptNumber,omitempty"`
	FailureReason string        `firestore:"failureReason" json:"failureReason,omitempty"`
}

// IsPaid reports whether the payment has been confirmed.
func (p *PaymentState) IsPaid() bool {
	return p.PaymentStatus == PaymentPaid
}

// MarkPending records a new outbound transaction.
func (p *PaymentState) MarkPending(txnID string, amount float64) error {
	if !p.PaymentStatus.CanTransitionTo(PaymentPending) {
		return fmt.Errorf("payment cannot move from %q to %q", p.PaymentStatus, PaymentPending)
	}
	p.PaymentStatus = PaymentPending
	p.PaymentTxnID = txnID
	p.PaymentAmount = amount
	p.FailureReason = ""
	return nil
}

// MarkPaid confirms the payment. The receipt number is assigned only if none
// exists yet, so repeated calls never replace it.
func (p *PaymentState) MarkPaid(txnID string, amount float64, at time.Time, receiptNumber func() string) error {
	if !p.PaymentStatus.CanTransitionTo(PaymentPaid) {
		return fmt.Errorf("payment cannot move from %q to %q", p.PaymentStatus, PaymentPaid)
	}
	p.PaymentStatus = PaymentPaid
	p.PaymentTxnID = txnID
	p.PaymentAmount = amount
	p.PaymentDate = &at
	p.FailureReason = ""
	p.EnsureReceiptNumber(receiptNumber)
	return nil
}

// MarkFailed records a failed attempt. It never overwrites a paid state.
func (p *PaymentState) MarkFailed(reason string) error {
	if !p.PaymentStatus.CanTransitionTo(PaymentFailed) {
		return fmt.Errorf("payment cannot move from %q to %q", p.PaymentStatus, PaymentFailed)
	}
	p.PaymentStatus = PaymentFailed
	p.FailureReason = reason
	return nil
}

// EnsureReceiptNumber assigns a receipt number if none exists and reports
// whether it did.
func (p *PaymentState) EnsureReceiptNumber(generate func() string) bool {
	if p.ReceiptNumber != "" {
		return false
	}
	p.ReceiptNumber = generate()
	return true
}

// PaymentIntent is the pending record written before redirecting the payer to
// the gateway. Its document ID is the transaction ID.
type PaymentIntent struct {
	TxnID       string         `firestore:"-" json:"txnId"`
	Purpose     PaymentPurpose `firestore:"purpose" json:"purpose"`
	RecordID    string         `firestore:"recordId" json:"recordId"`
	UserID      string         `firestore:"userId,omitempty" json:"userId,omitempty"`
	Amount      float64        `firestore:"amount" json:"amount"`
	ProductInfo string         `firestore:"productInfo" json:"productInfo"`
	FirstName   string         `firestore:"firstName" json:"firstName"`
	Email       string         `firestore:"email" json:"email"`
	Status      PaymentStatus  `firestore:"status" json:"status"`
	GatewayRef  string         `firestore:"gatewayRef,omitempty" json:"gatewayRef,omitempty"`
	CreatedAt   time.Time      `firestore:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time      `firestore:"updatedAt" json:"updatedAt"`
}
