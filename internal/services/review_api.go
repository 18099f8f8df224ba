package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/conferenceportal/internal/gcp"
	"github.com/Lllllllleong/conferenceportal/internal/handlers"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/review"
)

// ReviewAPIConfig is read from the environment at cold start.
type ReviewAPIConfig struct {
	SubmissionsBucket string
	IdentityBucket    string
	Review            review.Config
}

// ReviewAPI bundles the review handlers with the metrics they record.
type ReviewAPI struct {
	*handlers.ReviewAPI
	metrics *metrics.Collectors
}

// Metrics exposes this instance's collectors.
func (a *ReviewAPI) Metrics(w http.ResponseWriter, r *http.Request) {
	a.metrics.Handler().ServeHTTP(w, r)
}

// NewReviewAPI wires the review functions from the environment.
func NewReviewAPI(ctx context.Context) (*ReviewAPI, error) {
	config := ReviewAPIConfig{
		SubmissionsBucket: gcp.GetEnv("SUBMISSIONS_BUCKET", ""),
		IdentityBucket:    gcp.GetEnv("IDENTITY_BUCKET", ""),
		Review:            review.LoadConfig(),
	}
	if config.SubmissionsBucket == "" || config.IdentityBucket == "" {
		return nil, fmt.Errorf("SUBMISSIONS_BUCKET and IDENTITY_BUCKET environment variables must be set")
	}
	jwtManager, err := NewJWTManager()
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(ctx, true)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	svc := review.NewService(
		backend.Store,
		gcp.NewUploader(backend.Storage, config.SubmissionsBucket),
		gcp.NewUploader(backend.Storage, config.IdentityBucket),
		backend.Admins,
		m,
		config.Review,
	)
	slog.Info("Review API initialized.", "submissionsBucket", config.SubmissionsBucket, "maxUploadBytes", config.Review.MaxUploadBytes)
	return &ReviewAPI{
		ReviewAPI: handlers.NewReviewAPI(svc, jwtManager, config.Review.MaxUploadBytes),
		metrics:   m,
	}, nil
}
