package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/auth"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/review"
)

// Reviewer is the review service as seen by the HTTP layer.
type Reviewer interface {
	Submit(ctx context.Context, req review.SubmitRequest) (*models.Submission, error)
	Resubmit(ctx context.Context, req review.ResubmitRequest) (*review.ResubmitResult, error)
	VersionHistory(ctx context.Context, submissionID, callerID string) ([]models.VersionRecord, error)
	TransitionStatus(ctx context.Context, req review.TransitionRequest) (*models.Submission, error)
	UploadIdentityDocument(ctx context.Context, userID string, data []byte) (*models.User, error)
	ReviewIdentityDocument(ctx context.Context, adminID, userID, action string) (*models.User, error)
}

// ReviewAPI serves the submission and review functions.
type ReviewAPI struct {
	svc            Reviewer
	auth           Authenticator
	maxUploadBytes int64
}

// NewReviewAPI creates the review HTTP handlers.
func NewReviewAPI(svc Reviewer, a Authenticator, maxUploadBytes int64) *ReviewAPI {
	return &ReviewAPI{svc: svc, auth: a, maxUploadBytes: maxUploadBytes}
}

// SubmitPaper handles a multipart submission: title, authors, submissionType, file.
func (h *ReviewAPI) SubmitPaper(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.SubmitPaper"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	r, ok := authenticated(w, r, h.auth)
	if !ok {
		return
	}
	data, err := readUpload(w, r, op, h.maxUploadBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	sub, err := h.svc.Submit(r.Context(), review.SubmitRequest{
		UserID:         auth.UserID(r.Context()),
		Title:          r.FormValue("title"),
		Authors:        strings.Split(r.FormValue("authors"), ","),
		SubmissionType: r.FormValue("submissionType"),
		File:           data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ResubmitPaper handles a multipart revision upload: submissionId, file.
func (h *ReviewAPI) ResubmitPaper(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ResubmitPaper"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	r, ok := authenticated(w, r, h.auth)
	if !ok {
		return
	}
	data, err := readUpload(w, r, op, h.maxUploadBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	submissionID := r.FormValue("submissionId")
	if submissionID == "" {
		writeError(w, apperr.Validation(op, "submissionId is required"))
		return
	}
	res, err := h.svc.Resubmit(r.Context(), review.ResubmitRequest{
		SubmissionID: submissionID,
		CallerID:     auth.UserID(r.Context()),
		File:         data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetVersionHistory returns the archived versions plus the current one.
func (h *ReviewAPI) GetVersionHistory(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.GetVersionHistory"
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	r, ok := authenticated(w, r, h.auth)
	if !ok {
		return
	}
	submissionID := r.URL.Query().Get("submissionId")
	if submissionID == "" {
		writeError(w, apperr.Validation(op, "submissionId is required"))
		return
	}
	versions, err := h.svc.VersionHistory(r.Context(), submissionID, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

type transitionRequest struct {
	SubmissionID string `json:"submissionId"`
	Status       string `json:"status"`
	Comments     string `json:"comments"`
}

// TransitionStatus applies an admin review decision.
func (h *ReviewAPI) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.TransitionStatus"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	r, ok := authenticated(w, r, h.auth)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	sub, err := h.svc.TransitionStatus(r.Context(), review.TransitionRequest{
		SubmissionID: req.SubmissionID,
		AdminID:      auth.UserID(r.Context()),
		Status:       req.Status,
		Comments:     req.Comments,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// UploadIdentityDocument stores the caller's identity document.
func (h *ReviewAPI) UploadIdentityDocument(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.UploadIdentityDocument"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	r, ok := authenticated(w, r, h.auth)
	if !ok {
		return
	}
	data, err := readUpload(w, r, op, h.maxUploadBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.svc.UploadIdentityDocument(r.Context(), auth.UserID(r.Context()), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verificationStatus":  user.VerificationStatus,
		"identityDocumentUrl": user.IdentityDocumentURL,
	})
}

type identityReviewRequest struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
}

// ReviewIdentityDocument approves or rejects a user's pending document.
func (h *ReviewAPI) ReviewIdentityDocument(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ReviewIdentityDocument"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	r, ok := authenticated(w, r, h.auth)
	if !ok {
		return
	}
	var req identityReviewRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.svc.ReviewIdentityDocument(r.Context(), auth.UserID(r.Context()), req.UserID, req.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":             user.ID,
		"verificationStatus": user.VerificationStatus,
	})
}
