package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/gcp"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/review"
)

// GCSEvent is the payload of a Cloud Storage object event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// IdentityRecorder attaches a stored identity document to its owner.
type IdentityRecorder interface {
	RecordIdentityDocument(ctx context.Context, userID, url string) error
}

type reviewRecorder struct {
	svc *review.Service
}

func (r reviewRecorder) RecordIdentityDocument(ctx context.Context, userID, url string) error {
	_, err := r.svc.RecordIdentityDocument(ctx, userID, url)
	return err
}

// IdentityUploadFunction queues identity documents that clients upload
// straight to the identity bucket.
type IdentityUploadFunction struct {
	recorder IdentityRecorder
	bucket   string
}

// NewIdentityUploadTrigger wires the trigger from the environment.
func NewIdentityUploadTrigger(ctx context.Context) (*IdentityUploadFunction, error) {
	bucket := gcp.GetEnv("IDENTITY_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("IDENTITY_BUCKET environment variable must be set")
	}
	backend, err := NewBackend(ctx, false)
	if err != nil {
		return nil, err
	}
	svc := review.NewService(backend.Store, nil, nil, backend.Admins, metrics.New(), review.LoadConfig())
	slog.Info("Identity upload trigger initialized.", "bucket", bucket)
	return NewIdentityUploadFunction(reviewRecorder{svc: svc}, bucket), nil
}

// NewIdentityUploadFunction creates the trigger around recorder.
func NewIdentityUploadFunction(recorder IdentityRecorder, bucket string) *IdentityUploadFunction {
	return &IdentityUploadFunction{recorder: recorder, bucket: bucket}
}

// Process records the uploaded object. Events that can never succeed are
// acknowledged so the platform does not retry them.
func (f *IdentityUploadFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket != f.bucket {
		logCtx.Warn("Ignoring object from unexpected bucket.", "expected", f.bucket)
		return nil
	}
	userID, ok := review.UserIDFromIdentityObject(e.Name)
	if !ok {
		logCtx.Info("Ignoring object outside the identity prefix.")
		return nil
	}
	logCtx = logCtx.With("userId", userID)

	err := f.recorder.RecordIdentityDocument(ctx, userID, gcp.ObjectURL(e.Bucket, e.Name))
	switch {
	case err == nil:
		logCtx.Info("Identity document recorded.")
		return nil
	case apperr.Is(err, apperr.KindConflict), apperr.Is(err, apperr.KindNotFound):
		logCtx.Warn("Identity document not recorded.", "error", err)
		return nil
	default:
		logCtx.Error("Failed to record identity document", "error", err)
		return err
	}
}
