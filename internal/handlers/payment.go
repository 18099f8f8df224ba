package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/auth"
	"github.com/Lllllllleong/conferenceportal/internal/payment"
	"github.com/Lllllllleong/conferenceportal/internal/receipt"
)

// Payments is the payment service as seen by the HTTP layer.
type Payments interface {
	InitiatePaperPayment(ctx context.Context, callerID, submissionID string) (*payment.Session, error)
	InitiateAttendeePayment(ctx context.Context, in payment.AttendeeRequest) (*payment.Session, error)
	HandleCallback(ctx context.Context, kind string, form url.Values) (*payment.CallbackResult, error)
}

// Receipts is the receipt generator as seen by the HTTP layer.
type Receipts interface {
	ForTxn(ctx context.Context, txnID string) (*receipt.Receipt, error)
	ForOwner(ctx context.Context, callerID, submissionID string) (*receipt.Receipt, error)
}

// PaymentAPI serves the payment, callback and receipt functions.
type PaymentAPI struct {
	payments    Payments
	receipts    Receipts
	auth        Authenticator
	successPage string
	failurePage string
	metrics     http.Handler
}

// NewPaymentAPI creates the payment HTTP handlers. The gateway callbacks
// redirect the payer to successPage or failurePage.
func NewPaymentAPI(p Payments, rc Receipts, a Authenticator, successPage, failurePage string, metrics http.Handler) *PaymentAPI {
	return &PaymentAPI{
		payments:    p,
		receipts:    rc,
		auth:        a,
		successPage: successPage,
		failurePage: failurePage,
		metrics:     metrics,
	}
}

type paperPaymentRequest struct {
	SubmissionID string `json:"submissionId"`
}

// InitiatePaperPayment opens a payment session for the caller's accepted paper.
func (h *PaymentAPI) InitiatePaperPayment(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.InitiatePaperPayment"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	r, ok := authenticated(w, r, h.auth)
	if !ok {
		return
	}
	var req paperPaymentRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, op, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	sess, err := h.payments.InitiatePaperPayment(r.Context(), auth.UserID(r.Context()), req.SubmissionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// InitiateAttendeePayment registers an attendee. It needs no bearer token.
func (h *PaymentAPI) InitiateAttendeePayment(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.InitiateAttendeePayment"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req payment.AttendeeRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := h.payments.InitiateAttendeePayment(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// PaymentSuccessCallback receives the gateway's surl post.
func (h *PaymentAPI) PaymentSuccessCallback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, "success")
}

// PaymentFailureCallback receives the gateway's furl post.
func (h *PaymentAPI) PaymentFailureCallback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, "failure")
}

// callback never returns an error body: the gateway and the payer only ever
// see a redirect.
func (h *PaymentAPI) callback(w http.ResponseWriter, r *http.Request, kind string) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("Unparseable gateway callback", "callback", kind, "error", err)
		h.redirect(w, r, h.failurePage, url.Values{"reason": {payment.ReasonMalformed}})
		return
	}
	txnID := r.PostForm.Get("txnid")
	res, err := h.payments.HandleCallback(r.Context(), kind, r.PostForm)
	if err != nil {
		reason := apperr.ReasonOf(err)
		if reason == "" {
			reason = string(apperr.KindOf(err))
		}
		h.redirect(w, r, h.failurePage, url.Values{"txnId": {txnID}, "reason": {reason}})
		return
	}
	if res.Paid() {
		h.redirect(w, r, h.successPage, url.Values{"txnId": {res.TxnID}, "receiptNumber": {res.ReceiptNumber}})
		return
	}
	h.redirect(w, r, h.failurePage, url.Values{"txnId": {res.TxnID}, "reason": {res.Reason}})
}

func (h *PaymentAPI) redirect(w http.ResponseWriter, r *http.Request, page string, params url.Values) {
	target, err := url.Parse(page)
	if err != nil {
		slog.Error("Invalid redirect page configured", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	q := target.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

// DownloadReceipt serves ?txnId=<id> to anyone holding the transaction id,
// otherwise the authenticated caller's own paid submission.
func (h *PaymentAPI) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	var (
		rec *receipt.Receipt
		err error
	)
	if txnID := r.URL.Query().Get("txnId"); txnID != "" {
		rec, err = h.receipts.ForTxn(r.Context(), txnID)
	} else {
		authed, ok := authenticated(w, r, h.auth)
		if !ok {
			return
		}
		rec, err = h.receipts.ForOwner(authed.Context(), auth.UserID(authed.Context()), r.URL.Query().Get("submissionId"))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.PDF)))
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := w.Write(rec.PDF); err != nil {
		slog.Error("Failed to write receipt", "receiptNumber", rec.Number, "error", err)
	}
}

// Metrics exposes the Prometheus collectors.
func (h *PaymentAPI) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
