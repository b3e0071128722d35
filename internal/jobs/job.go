// Package jobs holds the job record model and its durable store. State
// transitions are forward-only and enforced inside the store, so
// duplicate at-least-once deliveries can never move a record backwards.
package jobs

import "time"

// State is the canonical lifecycle state of a job. The ordering is
// QUEUED < PROCESSING < {COMPLETED, FAILED}; the two terminal states are
// mutually exclusive and final.
type State string

const (
	StateQueued     State = "QUEUED"
	StateProcessing State = "PROCESSING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether no further transitions are permitted.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether moving from one state to another is a
// forward transition. FAILED is reachable from any non-terminal state so
// that errors before the PROCESSING checkpoint still land the record in a
// terminal state.
func CanTransition(from, to State) bool {
	switch to {
	case StateProcessing:
		return from == StateQueued
	case StateCompleted:
		return from == StateProcessing
	case StateFailed:
		return from == StateQueued || from == StateProcessing
	default:
		return false
	}
}

// SchemaVersion tags the record shape for consumers.
const SchemaVersion = "formatter/v1"

// Display messages for the states a store writes on its own. The worker
// supplies the in-between progress messages.
const (
	MsgQueued     = "Queued"
	MsgProcessing = "Processing"
	MsgCompleted  = "Completed"
	MsgFailed     = "Failed"
)

// Job is the externally observable record of one reformatting request.
// Field names follow the public contract other systems bind to.
type Job struct {
	DocID          string    `firestore:"doc_id" json:"doc_id"`
	State          State     `firestore:"state" json:"state"`
	Progress       int       `firestore:"progress" json:"progress"`
	InputRef       string    `firestore:"storage_path" json:"storage_path"`
	ProfileName    string    `firestore:"profile" json:"profile"`
	DisplayMessage string    `firestore:"display_message" json:"display_message"`
	FormattedText  string    `firestore:"formatted_text" json:"formatted_text"`
	DownloadURL    string    `firestore:"download_url" json:"download_url"`
	Error          string    `firestore:"error" json:"error"`
	Version        string    `firestore:"version" json:"version"`
	CreatedAt      time.Time `firestore:"created_at" json:"created_at"`
	UpdatedAt      time.Time `firestore:"updated_at" json:"updated_at"`
}
