// Package services wires the job store, storage, queue and formatting
// engine into the two deployable units: the intake API and the worker.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docforge/docforge/internal/gcp"
	"github.com/docforge/docforge/internal/jobs"
	"github.com/docforge/docforge/internal/profile"
)

// ErrValidation marks a rejected request. No job record is created when
// validation fails.
var ErrValidation = errors.New("invalid request")

// Publisher enqueues a job notification for the worker.
type Publisher interface {
	PublishJob(ctx context.Context, docID string) error
}

// CreateRequest is the body of a job creation call.
type CreateRequest struct {
	StoragePath string `json:"storage_path"`
	Profile     string `json:"profile"`
}

// CreateResponse acknowledges a queued job.
type CreateResponse struct {
	JobID   string `json:"job_id"`
	State   string `json:"state"`
	Status  string `json:"status"`
	Profile string `json:"profile"`
}

// StatusResponse is the externally visible view of a job record. Status
// and URL duplicate State and DownloadURL under the names existing
// clients bind to.
type StatusResponse struct {
	JobID          string `json:"job_id"`
	State          string `json:"state"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	Profile        string `json:"profile"`
	DisplayMessage string `json:"display_message"`
	DownloadURL    string `json:"download_url,omitempty"`
	URL            string `json:"url,omitempty"`
	OutputRef      string `json:"output_ref,omitempty"`
	FormattedText  string `json:"formatted_text,omitempty"`
	Error          string `json:"error,omitempty"`
}

// IntakeConfig holds configuration for the intake API.
type IntakeConfig struct {
	ProjectID  string
	Topic      string
	Collection string
}

// IntakeService accepts reformatting requests: it validates them,
// records the job as QUEUED and enqueues it for the worker.
type IntakeService struct {
	store     jobs.Store
	publisher Publisher
	registry  *profile.Registry
}

// NewIntake creates an intake service over explicit dependencies.
func NewIntake(store jobs.Store, publisher Publisher, registry *profile.Registry) *IntakeService {
	return &IntakeService{store: store, publisher: publisher, registry: registry}
}

// NewIntakeFromEnv builds the intake service from the environment.
func NewIntakeFromEnv(ctx context.Context) (*IntakeService, error) {
	config := IntakeConfig{
		ProjectID:  gcp.GetEnv("PROJECT_ID", ""),
		Topic:      gcp.GetEnv("PUBSUB_TOPIC", "format-jobs"),
		Collection: gcp.GetEnv("FIRESTORE_COLLECTION", jobs.DefaultCollection),
	}
	if config.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	fsClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, err
	}
	psClient, err := gcp.NewPubsubClient(ctx, config.ProjectID)
	if err != nil {
		return nil, err
	}

	return NewIntake(
		jobs.NewFirestoreStore(fsClient, config.Collection),
		gcp.NewPublisher(psClient, config.Topic),
		profile.NewRegistry(),
	), nil
}

// CreateJob validates the request, writes the QUEUED record and
// publishes the job. Validation failures create no record at all.
func (s *IntakeService) CreateJob(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	profileName := strings.TrimSpace(req.Profile)
	if profileName == "" {
		profileName = profile.DefaultName
	}
	if _, err := s.registry.Lookup(profileName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if strings.TrimSpace(req.StoragePath) == "" {
		return nil, fmt.Errorf("%w: storage_path is required", ErrValidation)
	}
	if _, err := gcp.NormalizeStoragePath(req.StoragePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	docID := uuid.NewString()
	logCtx := slog.With("documentId", docID, "profile", profileName)

	job := &jobs.Job{
		DocID:       docID,
		InputRef:    req.StoragePath,
		ProfileName: profileName,
	}
	if err := s.store.Create(ctx, job); err != nil {
		logCtx.Error("Failed to create job record", "error", err)
		return nil, err
	}

	if err := s.publisher.PublishJob(ctx, docID); err != nil {
		logCtx.Error("Failed to enqueue job", "error", err)
		if failErr := s.store.Fail(ctx, docID, "The document could not be queued for processing."); failErr != nil {
			logCtx.Error("Failed to mark unenqueued job as failed", "error", failErr)
		}
		return nil, fmt.Errorf("enqueuing job %s: %w", docID, err)
	}

	logCtx.Info("Job queued.")
	return &CreateResponse{
		JobID:   docID,
		State:   string(jobs.StateQueued),
		Status:  string(jobs.StateQueued),
		Profile: profileName,
	}, nil
}

// Status returns the current view of a job record.
func (s *IntakeService) Status(ctx context.Context, docID string) (*StatusResponse, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, fmt.Errorf("%w: job_id is required", ErrValidation)
	}
	job, err := s.store.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		JobID:          job.DocID,
		State:          string(job.State),
		Status:         string(job.State),
		Progress:       job.Progress,
		Profile:        job.ProfileName,
		DisplayMessage: job.DisplayMessage,
		DownloadURL:    job.DownloadURL,
		URL:            job.DownloadURL,
		OutputRef:      job.DownloadURL,
		FormattedText:  job.FormattedText,
		Error:          job.Error,
	}, nil
}
