package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/conferenceportal/internal/logging"
	"github.com/Lllllllleong/conferenceportal/internal/services"
)

var (
	trigger *services.IdentityUploadFunction
	once    sync.Once
	initErr error
)

func init() {
	logging.Setup()
	functions.CloudEvent("RecordIdentityUpload", recordIdentityUpload)
}

// main is required by the Go Functions Framework.
func main() {}

func recordIdentityUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		trigger, initErr = services.NewIdentityUploadTrigger(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return trigger.Process(ctx, gcsEvent)
}
