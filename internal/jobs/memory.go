package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same transition guards as
// the Firestore store. It backs tests and the offline batch tool.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.DocID]; exists {
		return fmt.Errorf("job %s already exists", job.DocID)
	}

	now := time.Now()
	j := *job
	j.State = StateQueued
	j.Progress = 0
	j.DisplayMessage = MsgQueued
	j.Version = SchemaVersion
	j.CreatedAt = now
	j.UpdatedAt = now
	s.jobs[job.DocID] = &j
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, docID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	cp := *j
	return &cp, nil
}

func (s *MemoryStore) BeginProcessing(ctx context.Context, docID string) (*Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[docID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}

	switch {
	case j.State.Terminal():
		cp := *j
		return &cp, false, nil
	case j.State == StateProcessing:
		cp := *j
		return &cp, true, nil
	default:
		j.State = StateProcessing
		j.Progress = 5
		j.DisplayMessage = MsgProcessing
		s.touch(j)
		cp := *j
		return &cp, true, nil
	}
}

func (s *MemoryStore) SetProgress(ctx context.Context, docID string, percent int, message string) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, percent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if j.State != StateProcessing || percent < j.Progress {
		return nil
	}
	j.Progress = percent
	if message != "" {
		j.DisplayMessage = message
	}
	s.touch(j)
	return nil
}

func (s *MemoryStore) Complete(ctx context.Context, docID, downloadURL, formattedText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if j.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, docID, j.State)
	}
	if !CanTransition(j.State, StateCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, StateCompleted)
	}
	j.State = StateCompleted
	j.Progress = 100
	j.DisplayMessage = MsgCompleted
	j.DownloadURL = downloadURL
	j.FormattedText = formattedText
	j.Error = ""
	s.touch(j)
	return nil
}

func (s *MemoryStore) Fail(ctx context.Context, docID, safeMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if j.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, docID, j.State)
	}
	j.State = StateFailed
	j.DisplayMessage = MsgFailed
	j.Error = safeMessage
	s.touch(j)
	return nil
}

// touch advances UpdatedAt without ever moving it backwards.
func (s *MemoryStore) touch(j *Job) {
	if now := time.Now(); now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
}
