package jobs

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the Firestore collection holding job records.
const DefaultCollection = "jobs"

// FirestoreStore implements Store on Firestore. All transitions run in
// transactions keyed on the record's current state, which makes them
// safe against concurrent duplicate deliveries across process instances.
//
// The "status" field is an alias of "state" kept for existing consumers;
// it is mirrored on every state write and never diverges.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a store over the given client.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) doc(docID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID)
}

func (s *FirestoreStore) Create(ctx context.Context, job *Job) error {
	data := map[string]interface{}{
		"doc_id":          job.DocID,
		"state":           string(StateQueued),
		"status":          string(StateQueued),
		"progress":        0,
		"storage_path":    job.InputRef,
		"profile":         job.ProfileName,
		"display_message": MsgQueued,
		"formatted_text":  "",
		"download_url":    "",
		"error":           "",
		"version":         SchemaVersion,
		"created_at":      firestore.ServerTimestamp,
		"updated_at":      firestore.ServerTimestamp,
	}
	if _, err := s.doc(job.DocID).Create(ctx, data); err != nil {
		return fmt.Errorf("creating job record %s: %w", job.DocID, err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, docID string) (*Job, error) {
	snap, err := s.doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
		}
		return nil, fmt.Errorf("reading job record %s: %w", docID, err)
	}
	return decodeJob(snap)
}

func decodeJob(snap *firestore.DocumentSnapshot) (*Job, error) {
	var j Job
	if err := snap.DataTo(&j); err != nil {
		return nil, fmt.Errorf("decoding job record %s: %w", snap.Ref.ID, err)
	}
	j.DocID = snap.Ref.ID
	return &j, nil
}

func (s *FirestoreStore) BeginProcessing(ctx context.Context, docID string) (*Job, bool, error) {
	var job *Job
	var claimed bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.doc(docID))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrNotFound, docID)
			}
			return err
		}
		job, err = decodeJob(snap)
		if err != nil {
			return err
		}

		switch {
		case job.State.Terminal():
			claimed = false
			return nil
		case job.State == StateProcessing:
			// Redelivery after a crash or transient failure resumes the
			// job; the terminal conditional write is the real guard.
			claimed = true
			return nil
		default:
			claimed = true
			job.State = StateProcessing
			job.Progress = 5
			job.DisplayMessage = MsgProcessing
			return tx.Update(s.doc(docID), []firestore.Update{
				{Path: "state", Value: string(StateProcessing)},
				{Path: "status", Value: string(StateProcessing)},
				{Path: "progress", Value: 5},
				{Path: "display_message", Value: MsgProcessing},
				{Path: "updated_at", Value: firestore.ServerTimestamp},
			})
		}
	})
	if err != nil {
		return nil, false, err
	}
	return job, claimed, nil
}

func (s *FirestoreStore) SetProgress(ctx context.Context, docID string, percent int, message string) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, percent)
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.doc(docID))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrNotFound, docID)
			}
			return err
		}
		job, err := decodeJob(snap)
		if err != nil {
			return err
		}
		if job.State != StateProcessing || percent < job.Progress {
			return nil
		}
		updates := []firestore.Update{
			{Path: "progress", Value: percent},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		}
		if message != "" {
			updates = append(updates, firestore.Update{Path: "display_message", Value: message})
		}
		return tx.Update(s.doc(docID), updates)
	})
}

func (s *FirestoreStore) Complete(ctx context.Context, docID, downloadURL, formattedText string) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		job, err := s.txGet(tx, docID)
		if err != nil {
			return err
		}
		if job.State.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, docID, job.State)
		}
		if !CanTransition(job.State, StateCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.State, StateCompleted)
		}
		return tx.Update(s.doc(docID), []firestore.Update{
			{Path: "state", Value: string(StateCompleted)},
			{Path: "status", Value: string(StateCompleted)},
			{Path: "progress", Value: 100},
			{Path: "display_message", Value: MsgCompleted},
			{Path: "formatted_text", Value: formattedText},
			{Path: "download_url", Value: downloadURL},
			{Path: "error", Value: ""},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	})
}

func (s *FirestoreStore) Fail(ctx context.Context, docID, safeMessage string) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		job, err := s.txGet(tx, docID)
		if err != nil {
			return err
		}
		if job.State.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, docID, job.State)
		}
		return tx.Update(s.doc(docID), []firestore.Update{
			{Path: "state", Value: string(StateFailed)},
			{Path: "status", Value: string(StateFailed)},
			{Path: "display_message", Value: MsgFailed},
			{Path: "error", Value: safeMessage},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	})
}

func (s *FirestoreStore) txGet(tx *firestore.Transaction, docID string) (*Job, error) {
	snap, err := tx.Get(s.doc(docID))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
		}
		return nil, err
	}
	return decodeJob(snap)
}
