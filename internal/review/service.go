// Package review implements the submission status state machine, the
// revision archiver and identity document review.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/gcp"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/pdfdoc"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

// FileStore is the file hosting collaborator. Upload returns a stable URL.
type FileStore interface {
	Upload(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

// AdminChecker resolves administrative privilege.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Config holds upload constraints for the review service.
type Config struct {
	MaxUploadBytes int64
}

// LoadConfig reads the review configuration from the environment.
func LoadConfig() Config {
	return Config{
		MaxUploadBytes: gcp.GetEnvInt64("MAX_UPLOAD_BYTES", 20<<20),
	}
}

// Service holds the dependencies for review operations.
type Service struct {
	store    store.Store
	papers   FileStore
	identity FileStore
	admins   AdminChecker
	metrics  *metrics.Collectors
	config   Config

	now     func() time.Time
	inspect func([]byte) (int, error)
}

// NewService creates a review Service.
func NewService(st store.Store, papers, identityDocs FileStore, admins AdminChecker, m *metrics.Collectors, config Config) *Service {
	return &Service{
		store:    st,
		papers:   papers,
		identity: identityDocs,
		admins:   admins,
		metrics:  m,
		config:   config,
		now:      time.Now,
		inspect:  pdfdoc.Inspect,
	}
}

// SubmitRequest is the input for a new submission.
type SubmitRequest struct {
	UserID         string
	Title          string
	Authors        []string
	SubmissionType string
	File           []byte
}

// TransitionRequest is an admin's review decision.
type TransitionRequest struct {
	SubmissionID string
	AdminID      string
	Status       string
	Comments     string
}

// ResubmitRequest is an author's revised upload.
type ResubmitRequest struct {
	SubmissionID string
	CallerID     string
	File         []byte
}

// ResubmitResult describes the newly installed version.
type ResubmitResult struct {
	Version int    `json:"version"`
	PDFURL  string `json:"pdfUrl"`
}

func (s *Service) checkPaper(op string, data []byte) error {
	if len(data) == 0 {
		return apperr.Validation(op, "no file uploaded")
	}
	if s.config.MaxUploadBytes > 0 && int64(len(data)) > s.config.MaxUploadBytes {
		return apperr.Validation(op, "file exceeds %d bytes", s.config.MaxUploadBytes)
	}
	if _, err := s.inspect(data); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "file is not a valid PDF", Err: err}
	}
	return nil
}

func newReferenceNumber(at time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("CP-%d-%s", at.Year(), strings.ToUpper(id[:8]))
}

func paperObjectName(submissionID string, version int) string {
	return fmt.Sprintf("submissions/%s/v%d-%s.pdf", submissionID, version, uuid.NewString())
}

// Submit creates a new submission in the pending state.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Submission, error) {
	const op = "review.Submit"
	if req.UserID == "" {
		return nil, apperr.Forbidden(op)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation(op, "title is required")
	}
	var authors []string
	for _, a := range req.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	if len(authors) == 0 {
		return nil, apperr.Validation(op, "at least one author is required")
	}
	subType, err := models.ParseSubmissionType(req.SubmissionType)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	if err := s.checkPaper(op, req.File); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sub := &models.Submission{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		ReferenceNumber: newReferenceNumber(now),
		Title:           title,
		Authors:         authors,
		SubmissionType:  subType,
		Status:          models.StatusPending,
		CurrentVersion:  1,
		Versions:        []models.VersionRecord{},
		SubmittedAt:     now,
		PaymentState:    models.PaymentState{PaymentStatus: models.PaymentUnpaid},
	}
	logCtx := slog.With("submissionId", sub.ID, "userId", req.UserID)

	url, err := s.papers.Upload(ctx, paperObjectName(sub.ID, 1), "application/pdf", req.File)
	if err != nil {
		logCtx.Error("Failed to upload submission file", "error", err)
		return nil, apperr.Internal(op, err)
	}
	sub.PDFURL = url

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		logCtx.Error("Failed to create submission; uploaded file is orphaned", "pdfUrl", url, "error", err)
		return nil, apperr.Internal(op, err)
	}
	logCtx.Info("Submission created.", "referenceNumber", sub.ReferenceNumber, "type", sub.SubmissionType)
	return sub, nil
}

func (s *Service) requireAdmin(ctx context.Context, op, adminID string) error {
	ok, err := s.admins.IsAdmin(ctx, adminID)
	if err != nil {
		slog.Error("Admin resolution failed", "op", op, "userId", adminID, "error", err)
		return apperr.Internal(op, err)
	}
	if !ok {
		return apperr.Forbidden(op)
	}
	return nil
}

// TransitionStatus applies an admin review decision. The source-state guard
// and the write happen in one atomic update.
func (s *Service) TransitionStatus(ctx context.Context, req TransitionRequest) (*models.Submission, error) {
	const op = "review.TransitionStatus"
	logCtx := slog.With("submissionId", req.SubmissionID, "adminId", req.AdminID, "target", req.Status)

	if err := s.requireAdmin(ctx, op, req.AdminID); err != nil {
		return nil, err
	}
	if req.SubmissionID == "" {
		return nil, apperr.Validation(op, "submissionId is required")
	}
	target, err := models.ParseSubmissionStatus(req.Status)
	if err != nil {
		s.metrics.StatusTransitions.WithLabelValues("invalid", "rejected").Inc()
		return nil, apperr.Validation(op, "%v", err)
	}
	comments := strings.TrimSpace(req.Comments)
	if target == models.StatusAcceptedWithRevision && comments == "" {
		s.metrics.StatusTransitions.WithLabelValues(string(target), "rejected").Inc()
		return nil, apperr.Validation(op, "revision instructions are required")
	}

	now := s.now().UTC()
	updated, err := s.store.UpdateSubmission(ctx, req.SubmissionID, func(sub *models.Submission) error {
		if err := ValidateTransition(sub.Status, target, comments); err != nil {
			return apperr.Validation(op, "%v", err)
		}
		sub.Status = target
		sub.ReviewedBy = req.AdminID
		sub.ReviewedAt = &now
		sub.ReviewComments = comments
		return nil
	})
	if err != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(target), "rejected").Inc()
		return nil, s.mapStoreErr(op, "submission", err, logCtx)
	}
	s.metrics.StatusTransitions.WithLabelValues(string(target), "applied").Inc()
	logCtx.Info("Submission status changed.", "status", updated.Status)
	return updated, nil
}

// Resubmit archives the current version and installs a revised file. It is
// allowed only for the owner and only while the submission awaits revision.
func (s *Service) Resubmit(ctx context.Context, req ResubmitRequest) (*ResubmitResult, error) {
	const op = "review.Resubmit"
	logCtx := slog.With("submissionId", req.SubmissionID, "callerId", req.CallerID)

	if len(req.File) == 0 {
		return nil, apperr.Validation(op, "no file uploaded")
	}
	current, err := s.store.GetSubmission(ctx, req.SubmissionID)
	if err != nil {
		return nil, s.mapStoreErr(op, "submission", err, logCtx)
	}
	if current.UserID != req.CallerID {
		s.metrics.Resubmissions.WithLabelValues("forbidden").Inc()
		return nil, apperr.Forbidden(op)
	}
	if current.Status != models.StatusAcceptedWithRevision {
		s.metrics.Resubmissions.WithLabelValues("conflict").Inc()
		return nil, apperr.Conflict(op, "submission is %s, not awaiting revision", current.Status)
	}
	if err := s.checkPaper(op, req.File); err != nil {
		return nil, err
	}

	url, err := s.papers.Upload(ctx, paperObjectName(current.ID, current.CurrentVersion+1), "application/pdf", req.File)
	if err != nil {
		logCtx.Error("Failed to upload revised file", "error", err)
		s.metrics.Resubmissions.WithLabelValues("error").Inc()
		return nil, apperr.Internal(op, err)
	}

	now := s.now().UTC()
	updated, err := s.store.UpdateSubmission(ctx, req.SubmissionID, func(sub *models.Submission) error {
		if sub.UserID != req.CallerID {
			return apperr.Forbidden(op)
		}
		if sub.Status != models.StatusAcceptedWithRevision {
			return apperr.Conflict(op, "submission is %s, not awaiting revision", sub.Status)
		}
		sub.ArchiveCurrent(url, now)
		if err := sub.CheckVersionInvariants(); err != nil {
			return apperr.Internal(op, err)
		}
		return nil
	})
	if err != nil {
		// The uploaded object is now unreferenced; it does not affect state.
		logCtx.Warn("Revision not recorded; uploaded file is orphaned", "pdfUrl", url, "error", err)
		s.metrics.Resubmissions.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, s.mapStoreErr(op, "submission", err, logCtx)
	}

	s.metrics.Resubmissions.WithLabelValues("applied").Inc()
	logCtx.Info("Revision archived.", "version", updated.CurrentVersion)
	return &ResubmitResult{Version: updated.CurrentVersion, PDFURL: updated.PDFURL}, nil
}

// VersionHistory returns every archived version followed by the current one.
// Only the owner or an admin may read it.
func (s *Service) VersionHistory(ctx context.Context, submissionID, callerID string) ([]models.VersionRecord, error) {
	const op = "review.VersionHistory"
	logCtx := slog.With("submissionId", submissionID, "callerId", callerID)
	if callerID == "" {
		return nil, apperr.Forbidden(op)
	}

	var (
		sub      *models.Submission
		isAdmin  bool
		adminErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sub, err = s.store.GetSubmission(gctx, submissionID)
		return err
	})
	g.Go(func() error {
		isAdmin, adminErr = s.admins.IsAdmin(gctx, callerID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.mapStoreErr(op, "submission", err, logCtx)
	}

	if sub.UserID != callerID {
		if adminErr != nil {
			logCtx.Error("Admin resolution failed", "error", adminErr)
			return nil, apperr.Internal(op, adminErr)
		}
		if !isAdmin {
			return nil, apperr.Forbidden(op)
		}
	}
	return sub.History(), nil
}

// mapStoreErr passes taxonomy errors through and classifies the rest.
func (s *Service) mapStoreErr(op, what string, err error, logCtx *slog.Logger) error {
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
