package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/resumeflow/internal/config"
	"github.com/Lllllllleong/resumeflow/internal/services"
)

var (
	intakeInstance *services.IntakeFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework will handle routing the event here.
	functions.CloudEvent("HandleResumeUpload", handleResumeUpload)
}

// main is required by the Go Functions Framework.
func main() {}

// handleResumeUpload is the Cloud Function entry point for GCS finalize events.
func handleResumeUpload(ctx context.Context, e cloudevents.Event) error {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		cfg, err := config.Load(config.GetEnv("RESUMEFLOW_CONFIG", ""))
		if err != nil {
			initErr = err
			return
		}
		intakeInstance, initErr = services.NewIntake(context.Background(), cfg)
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

	// The error is already logged with context within the Process method.
	// Returning it marks the function invocation as failed.
	return intakeInstance.Process(ctx, gcsEvent)
}
