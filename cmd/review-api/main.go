package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/conferenceportal/internal/logging"
	"github.com/Lllllllleong/conferenceportal/internal/services"
)

var (
	reviewAPI *services.ReviewAPI
	once      sync.Once
	initErr   error
)

func init() {
	logging.Setup()

	// Each entry point is deployed as its own Cloud Function from this source.
	functions.HTTP("SubmitPaper", withAPI(func(a *services.ReviewAPI) http.HandlerFunc { return a.SubmitPaper }))
	functions.HTTP("ResubmitPaper", withAPI(func(a *services.ReviewAPI) http.HandlerFunc { return a.ResubmitPaper }))
	functions.HTTP("GetVersionHistory", withAPI(func(a *services.ReviewAPI) http.HandlerFunc { return a.GetVersionHistory }))
	functions.HTTP("TransitionStatus", withAPI(func(a *services.ReviewAPI) http.HandlerFunc { return a.TransitionStatus }))
	functions.HTTP("UploadIdentityDocument", withAPI(func(a *services.ReviewAPI) http.HandlerFunc { return a.UploadIdentityDocument }))
	functions.HTTP("ReviewIdentityDocument", withAPI(func(a *services.ReviewAPI) http.HandlerFunc { return a.ReviewIdentityDocument }))
	functions.HTTP("ReviewMetrics", withAPI(func(a *services.ReviewAPI) http.HandlerFunc { return a.Metrics }))
}

// main is required by the Go Functions Framework.
func main() {}

// withAPI initializes the shared clients on first use and then delegates.
func withAPI(pick func(*services.ReviewAPI) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			reviewAPI, initErr = services.NewReviewAPI(context.Background())
		})
		if initErr != nil {
			slog.Error("Critical error during function initialization", "error", initErr)
			http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
			return
		}
		pick(reviewAPI)(w, r)
	}
}
