package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/conferenceportal/internal/adminauth"
	"github.com/Lllllllleong/conferenceportal/internal/auth"
	"github.com/Lllllllleong/conferenceportal/internal/gcp"
	"github.com/Lllllllleong/conferenceportal/internal/store/fsstore"
)

// tokenTTL bounds tokens this process issues; validation honours each
// token's own expiry.
const tokenTTL = 24 * time.Hour

// Backend holds the clients shared by every portal function.
type Backend struct {
	ProjectID string
	Store     *fsstore.FirestoreStore
	Storage   *storage.Client
	Admins    *adminauth.Resolver
}

// NewBackend creates the Firestore store and, if withStorage is set, a Cloud
// Storage client.
func NewBackend(ctx context.Context, withStorage bool) (*Backend, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	st := fsstore.New(firestoreClient, fsstore.DefaultCollections())

	b := &Backend{
		ProjectID: projectID,
		Store:     st,
		Admins:    adminauth.NewDefaultResolver(st),
	}
	if withStorage {
		if b.Storage, err = storage.NewClient(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
	}
	return b, nil
}

// NewJWTManager reads JWT_SECRET.
func NewJWTManager() (*auth.JWTManager, error) {
	secret := gcp.GetEnv("JWT_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	return auth.NewJWTManager(secret, tokenTTL), nil
}

// newWorkflowNotifier returns nil when no post-payment workflow is configured.
func newWorkflowNotifier(ctx context.Context, projectID string) (*gcp.WorkflowTrigger, error) {
	workflowID := gcp.GetEnv("POST_PAYMENT_WORKFLOW_ID", "")
	if workflowID == "" {
		slog.Info("POST_PAYMENT_WORKFLOW_ID not set; post-payment hand-off disabled.")
		return nil, nil
	}
	location := gcp.GetEnv("WORKFLOW_LOCATION", "us-central1")
	return gcp.NewWorkflowTrigger(ctx, projectID, location, workflowID)
}
