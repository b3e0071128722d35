package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/docforge/docforge/internal/docx"
	"github.com/docforge/docforge/internal/engine"
	"github.com/docforge/docforge/internal/gcp"
	"github.com/docforge/docforge/internal/jobs"
	"github.com/docforge/docforge/internal/metrics"
	"github.com/docforge/docforge/internal/profile"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// User-safe failure messages. The error field never carries internal
// detail; that goes to the logs.
const (
	msgUnreadable = "The document could not be read. Please upload a valid .docx file."
	msgMissing    = "The document could not be found in storage."
	msgInternal   = "An unexpected error occurred while formatting the document."
)

// BlobStore is the object storage surface the worker needs.
type BlobStore interface {
	Download(ctx context.Context, objectPath string) ([]byte, error)
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (token string, err error)
	DownloadURL(objectPath, token string) string
}

// Formatter applies a named profile to a document.
type Formatter interface {
	ApplyFormatOnly(input []byte, profileName string) (*engine.Result, error)
}

// WorkerConfig holds configuration for the format worker.
type WorkerConfig struct {
	ProjectID  string
	Bucket     string
	Collection string
}

// WorkerService consumes queued jobs and runs them to a terminal state.
// Processing is idempotent under redelivery: claims, progress writes and
// the terminal transition are all state-gated in the store, and the
// output object write is conditional on non-existence.
type WorkerService struct {
	store     jobs.Store
	blobs     BlobStore
	formatter Formatter
}

// NewWorker creates a worker over explicit dependencies.
func NewWorker(store jobs.Store, blobs BlobStore, formatter Formatter) *WorkerService {
	return &WorkerService{store: store, blobs: blobs, formatter: formatter}
}

// NewWorkerFromEnv builds the worker from the environment.
func NewWorkerFromEnv(ctx context.Context) (*WorkerService, error) {
	config := WorkerConfig{
		ProjectID:  gcp.GetEnv("PROJECT_ID", ""),
		Bucket:     gcp.GetEnv("STORAGE_BUCKET", ""),
		Collection: gcp.GetEnv("FIRESTORE_COLLECTION", jobs.DefaultCollection),
	}
	if config.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("STORAGE_BUCKET environment variable must be set")
	}

	fsClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return NewWorker(
		jobs.NewFirestoreStore(fsClient, config.Collection),
		gcp.NewBucket(storageClient, config.Bucket),
		engine.New(profile.NewRegistry()),
	), nil
}

// OutputObjectPath returns where the formatted document is written.
func OutputObjectPath(docID string) string {
	return fmt.Sprintf("outputs/%s_formatted.docx", docID)
}

// Process runs one delivery for the given job. A nil return acks the
// message; a non-nil return nacks it for redelivery, so only transient
// infrastructure failures may return an error. Document defects always
// end in FAILED plus an ack.
func (s *WorkerService) Process(ctx context.Context, docID string) error {
	logCtx := slog.With("documentId", docID)

	job, claimed, err := s.store.BeginProcessing(ctx, docID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			logCtx.Warn("Delivery for unknown job, dropping.")
			return nil
		}
		logCtx.Error("Failed to claim job", "error", err)
		return err
	}
	if !claimed {
		metrics.DuplicateTerminal.Inc()
		logCtx.Info("Job already terminal, dropping duplicate delivery.", "state", job.State)
		return nil
	}
	logCtx = logCtx.With("profile", job.ProfileName)
	logCtx.Info("Processing job.")

	objectPath, err := gcp.NormalizeStoragePath(job.InputRef)
	if err != nil {
		logCtx.Error("Unusable storage reference", "error", err, "storagePath", job.InputRef)
		return s.failJob(ctx, logCtx, docID, msgMissing)
	}

	s.progress(ctx, logCtx, docID, 20, "Downloading document")
	input, err := s.blobs.Download(ctx, objectPath)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			logCtx.Error("Input object missing", "error", err, "object", objectPath)
			return s.failJob(ctx, logCtx, docID, msgMissing)
		}
		logCtx.Error("Download failed, leaving job for redelivery", "error", err)
		return err
	}

	s.progress(ctx, logCtx, docID, 50, "Formatting your document")
	result, err := s.formatter.ApplyFormatOnly(input, job.ProfileName)
	if err != nil {
		switch {
		case errors.Is(err, docx.ErrMalformed):
			logCtx.Error("Document unreadable", "error", err)
			return s.failJob(ctx, logCtx, docID, msgUnreadable)
		case errors.Is(err, engine.ErrTextIntegrity):
			metrics.TextIntegrityViolations.Inc()
			logCtx.Error("Text integrity check failed", "error", err)
			return s.failJob(ctx, logCtx, docID, msgInternal)
		default:
			logCtx.Error("Formatting failed", "error", err)
			return s.failJob(ctx, logCtx, docID, msgInternal)
		}
	}

	s.progress(ctx, logCtx, docID, 90, "Uploading formatted document")
	outputPath := OutputObjectPath(docID)
	token, err := s.blobs.Upload(ctx, outputPath, result.Output, docxContentType)
	if err != nil {
		logCtx.Error("Upload failed, leaving job for redelivery", "error", err)
		return err
	}
	downloadURL := s.blobs.DownloadURL(outputPath, token)

	if err := s.store.Complete(ctx, docID, downloadURL, result.ExtractedText); err != nil {
		if errors.Is(err, jobs.ErrTerminal) {
			metrics.DuplicateTerminal.Inc()
			logCtx.Warn("Job reached a terminal state elsewhere, dropping duplicate completion.")
			return nil
		}
		logCtx.Error("Failed to record completion, leaving job for redelivery", "error", err)
		return err
	}

	metrics.JobsProcessed.WithLabelValues("completed").Inc()
	logCtx.Info("Job completed.", "output", outputPath)
	return nil
}

// progress is best-effort: a lost checkpoint write never fails the job.
func (s *WorkerService) progress(ctx context.Context, logCtx *slog.Logger, docID string, percent int, message string) {
	if err := s.store.SetProgress(ctx, docID, percent, message); err != nil {
		logCtx.Warn("Failed to write progress checkpoint", "error", err, "percent", percent)
	}
}

func (s *WorkerService) failJob(ctx context.Context, logCtx *slog.Logger, docID, safeMessage string) error {
	if err := s.store.Fail(ctx, docID, safeMessage); err != nil {
		if errors.Is(err, jobs.ErrTerminal) {
			metrics.DuplicateTerminal.Inc()
			logCtx.Warn("Job already terminal while recording failure.")
			return nil
		}
		logCtx.Error("Failed to record failure, leaving job for redelivery", "error", err)
		return err
	}
	metrics.JobsProcessed.WithLabelValues("failed").Inc()
	return nil
}
