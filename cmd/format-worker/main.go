package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/docforge/docforge/internal/services"
)

var (
	workerInstance *services.WorkerService
	once           sync.Once
	initErr        error
)

func init() {
	// Entry point name configured in GCP; triggered by the job topic.
	functions.CloudEvent("HandleFormatJob", handleFormatJob)
}

// main is required by the Go Functions Framework.
func main() {}

// pubsubEnvelope is the CloudEvent data shape for a Pub/Sub trigger.
// Data is base64 in the JSON and decoded by encoding/json.
type pubsubEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// handleFormatJob processes one delivery. Returning an error nacks the
// message for redelivery; document-level failures are recorded on the
// job and acked inside the service.
func handleFormatJob(ctx context.Context, e event.Event) error {
	once.Do(func() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
		workerInstance, initErr = services.NewWorkerFromEnv(context.Background())
	})
	if initErr != nil {
		log.Printf("CRITICAL: Worker initialization failed: %v", initErr)
		return initErr
	}

	var envelope pubsubEnvelope
	if err := e.DataAs(&envelope); err != nil {
		log.Printf("ERROR: Could not decode event data: %v", err)
		return nil // Malformed envelopes never become deliverable; drop.
	}

	var msg struct {
		DocID string `json:"doc_id"`
	}
	if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil || msg.DocID == "" {
		log.Printf("ERROR: Message payload has no doc_id: %v", err)
		return nil
	}

	if err := workerInstance.Process(ctx, msg.DocID); err != nil {
		return fmt.Errorf("processing job %s: %w", msg.DocID, err)
	}
	return nil
}
