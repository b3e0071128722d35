package jobs

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no record exists for the given job ID.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidProgress rejects progress values outside 0-100. The
	// record is left unchanged.
	ErrInvalidProgress = errors.New("progress out of range")

	// ErrTerminal means the record is already COMPLETED or FAILED. Late
	// duplicate transitions hit this; callers tolerate it as a logged
	// anomaly, never a hard failure.
	ErrTerminal = errors.New("job already in a terminal state")

	// ErrInvalidTransition rejects a state change that CanTransition
	// forbids and that is not covered by ErrTerminal.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Store is the durable job record store. Every transition is a
// conditional write keyed on the record's current state; with multiple
// process instances this, not any in-process lock, is the single source
// of truth for who gets to move a job forward.
type Store interface {
	// Create writes a new record in QUEUED with progress 0. The job's
	// DocID, InputRef and ProfileName must be set by the caller.
	Create(ctx context.Context, job *Job) error

	// Get returns a snapshot of the record.
	Get(ctx context.Context, docID string) (*Job, error)

	// BeginProcessing claims the job for processing. A QUEUED record
	// transitions to PROCESSING; a record already PROCESSING is claimed
	// without a write (redelivery resumes it); terminal records are not
	// claimed. The returned snapshot reflects the record after the call.
	BeginProcessing(ctx context.Context, docID string) (*Job, bool, error)

	// SetProgress writes a progress checkpoint and display message while
	// the job is PROCESSING. Values outside 0-100 fail with
	// ErrInvalidProgress; values below the current progress and writes
	// against non-PROCESSING records are idempotent no-ops.
	SetProgress(ctx context.Context, docID string, percent int, message string) error

	// Complete transitions PROCESSING -> COMPLETED, setting the download
	// URL and extracted text and clearing any error.
	Complete(ctx context.Context, docID, downloadURL, formattedText string) error

	// Fail transitions any non-terminal state -> FAILED with a user-safe
	// message, leaving the download URL unset.
	Fail(ctx context.Context, docID, safeMessage string) error
}
