package review

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/models"
)

var identityExtensions = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// errAlreadyRecorded aborts a user update that would not change anything.
var errAlreadyRecorded = errors.New("identity document already recorded")

// IdentityPrefix is the object prefix for identity documents. The user ID is
// the next path segment.
const IdentityPrefix = "identity/"

// UserIDFromIdentityObject extracts the owner from an identity object name.
func UserIDFromIdentityObject(objectName string) (string, bool) {
	rest, ok := strings.CutPrefix(objectName, IdentityPrefix)
	if !ok {
		return "", false
	}
	userID, file, ok := strings.Cut(rest, "/")
	if !ok || userID == "" || file == "" {
		return "", false
	}
	return userID, true
}

// UploadIdentityDocument stores an identity document for userID and queues it
// for admin review.
func (s *Service) UploadIdentityDocument(ctx context.Context, userID string, data []byte) (*models.User, error) {
	const op = "review.UploadIdentityDocument"
	logCtx := slog.With("userId", userID)
	if userID == "" {
		return nil, apperr.Forbidden(op)
	}
	if len(data) == 0 {
		return nil, apperr.Validation(op, "no file uploaded")
	}
	if s.config.MaxUploadBytes > 0 && int64(len(data)) > s.config.MaxUploadBytes {
		return nil, apperr.Validation(op, "file exceeds %d bytes", s.config.MaxUploadBytes)
	}
	contentType := http.DetectContentType(data)
	ext, ok := identityExtensions[contentType]
	if !ok {
		return nil, apperr.Validation(op, "unsupported document type %q", contentType)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, s.mapStoreErr(op, "user", err, logCtx)
	}
	if user.VerificationStatus == models.VerificationApproved {
		return nil, apperr.Conflict(op, "identity already approved")
	}

	url, err := s.identity.Upload(ctx, IdentityPrefix+userID+"/"+uuid.NewString()+ext, contentType, data)
	if err != nil {
		logCtx.Error("Failed to upload identity document", "error", err)
		return nil, apperr.Internal(op, err)
	}
	updated, err := s.RecordIdentityDocument(ctx, userID, url)
	if err != nil {
		logCtx.Warn("Identity document not recorded; uploaded file is orphaned", "url", url, "error", err)
		return nil, err
	}
	return updated, nil
}

// RecordIdentityDocument attaches an already stored document to the user. A
// URL that is already recorded is left alone whatever its review outcome, so
// the upload trigger firing after an admin decision does not reopen it.
func (s *Service) RecordIdentityDocument(ctx context.Context, userID, url string) (*models.User, error) {
	const op = "review.RecordIdentityDocument"
	logCtx := slog.With("userId", userID)
	updated, err := s.store.UpdateUser(ctx, userID, func(u *models.User) error {
		if u.IdentityDocumentURL == url {
			return errAlreadyRecorded
		}
		if err := u.RecordIdentityDocument(url); err != nil {
			return apperr.Conflict(op, "%v", err)
		}
		return nil
	})
	if errors.Is(err, errAlreadyRecorded) {
		logCtx.Info("Identity document already recorded.", "url", url)
		updated, err = s.store.GetUser(ctx, userID)
	}
	if err != nil {
		return nil, s.mapStoreErr(op, "user", err, logCtx)
	}
	if updated.IdentityDocumentURL == url && updated.VerificationStatus == models.VerificationPending {
		logCtx.Info("Identity document queued for review.", "url", url)
	}
	return updated, nil
}

// ReviewIdentityDocument records an admin's decision on a pending document.
// action is "approve" or "reject", case-insensitive.
func (s *Service) ReviewIdentityDocument(ctx context.Context, adminID, userID, action string) (*models.User, error) {
	const op = "review.ReviewIdentityDocument"
	logCtx := slog.With("userId", userID, "adminId", adminID)
	if err := s.requireAdmin(ctx, op, adminID); err != nil {
		return nil, err
	}

	var decision models.VerificationStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve":
		decision = models.VerificationApproved
	case "reject":
		decision = models.VerificationRejected
	default:
		return nil, apperr.Validation(op, "action must be approve or reject")
	}
	if userID == "" {
		return nil, apperr.Validation(op, "userId is required")
	}

	now := s.now().UTC()
	updated, err := s.store.UpdateUser(ctx, userID, func(u *models.User) error {
		if u.VerificationStatus != models.VerificationPending {
			return apperr.Conflict(op, "no identity document awaiting review")
		}
		u.VerificationStatus = decision
		u.VerificationReviewedBy = adminID
		u.VerificationReviewedAt = &now
		return nil
	})
	if err != nil {
		return nil, s.mapStoreErr(op, "user", err, logCtx)
	}
	logCtx.Info("Identity document reviewed.", "decision", decision)
	return updated, nil
}
