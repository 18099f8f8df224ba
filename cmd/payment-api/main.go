package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/conferenceportal/internal/handlers"
	"github.com/Lllllllleong/conferenceportal/internal/logging"
	"github.com/Lllllllleong/conferenceportal/internal/services"
)

var (
	paymentAPI *handlers.PaymentAPI
	once       sync.Once
	initErr    error
)

func init() {
	logging.Setup()

	functions.HTTP("InitiatePaperPayment", withAPI(func(a *handlers.PaymentAPI) http.HandlerFunc { return a.InitiatePaperPayment }))
	functions.HTTP("InitiateAttendeePayment", withAPI(func(a *handlers.PaymentAPI) http.HandlerFunc { return a.InitiateAttendeePayment }))
	functions.HTTP("PaymentSuccessCallback", withAPI(func(a *handlers.PaymentAPI) http.HandlerFunc { return a.PaymentSuccessCallback }))
	functions.HTTP("PaymentFailureCallback", withAPI(func(a *handlers.PaymentAPI) http.HandlerFunc { return a.PaymentFailureCallback }))
	functions.HTTP("DownloadReceipt", withAPI(func(a *handlers.PaymentAPI) http.HandlerFunc { return a.DownloadReceipt }))
	functions.HTTP("Metrics", withAPI(func(a *handlers.PaymentAPI) http.HandlerFunc { return a.Metrics }))
}

// main is required by the Go Functions Framework.
func main() {}

func withAPI(pick func(*handlers.PaymentAPI) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			paymentAPI, initErr = services.NewPaymentAPI(context.Background())
		})
		if initErr != nil {
			slog.Error("Critical error during function initialization", "error", initErr)
			http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
			return
		}
		pick(paymentAPI)(w, r)
	}
}
