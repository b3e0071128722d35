package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(store *MemoryStore, t *testing.T) *Job {
	t.Helper()
	job := &Job{DocID: "doc-1", InputRef: "uploads/doc-1.docx", ProfileName: "standard_clean"}
	require.NoError(t, store.Create(context.Background(), job))
	return job
}

func TestMemoryStoreCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newJob(store, t)

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StateQueued, got.State)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, MsgQueued, got.DisplayMessage)
	assert.Equal(t, SchemaVersion, got.Version)
	assert.False(t, got.CreatedAt.IsZero())

	err = store.Create(ctx, &Job{DocID: "doc-1"})
	require.Error(t, err)
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBeginProcessing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newJob(store, t)

	job, claimed, err := store.BeginProcessing(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, StateProcessing, job.State)
	assert.Equal(t, 5, job.Progress)
	assert.Equal(t, MsgProcessing, job.DisplayMessage)

	// A redelivery resumes the already claimed job.
	job, claimed, err = store.BeginProcessing(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, StateProcessing, job.State)

	require.NoError(t, store.Complete(ctx, "doc-1", "https://example.com/d", "text"))

	// Terminal records are never claimed.
	job, claimed, err = store.BeginProcessing(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, StateCompleted, job.State)
}

func TestSetProgress(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newJob(store, t)

	// Progress writes against a QUEUED record are no-ops.
	require.NoError(t, store.SetProgress(ctx, "doc-1", 20, "Downloading document"))
	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, MsgQueued, got.DisplayMessage)

	_, _, err = store.BeginProcessing(ctx, "doc-1")
	require.NoError(t, err)

	require.NoError(t, store.SetProgress(ctx, "doc-1", 50, "Formatting your document"))
	got, err = store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, "Formatting your document", got.DisplayMessage)

	// A lower value from a stale delivery never moves progress backwards.
	require.NoError(t, store.SetProgress(ctx, "doc-1", 20, "Downloading document"))
	got, err = store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, "Formatting your document", got.DisplayMessage)
}

func TestSetProgressRange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newJob(store, t)
	_, _, err := store.BeginProcessing(ctx, "doc-1")
	require.NoError(t, err)

	require.ErrorIs(t, store.SetProgress(ctx, "doc-1", -1, ""), ErrInvalidProgress)
	require.ErrorIs(t, store.SetProgress(ctx, "doc-1", 101, ""), ErrInvalidProgress)

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Progress)
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newJob(store, t)

	// COMPLETED is only reachable from PROCESSING.
	err := store.Complete(ctx, "doc-1", "https://example.com/d", "text")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = store.BeginProcessing(ctx, "doc-1")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "doc-1", "https://example.com/d", "the text"))

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, MsgCompleted, got.DisplayMessage)
	assert.Equal(t, "https://example.com/d", got.DownloadURL)
	assert.Equal(t, "the text", got.FormattedText)
	assert.Empty(t, got.Error)

	// Duplicate terminal transitions surface as ErrTerminal.
	require.ErrorIs(t, store.Complete(ctx, "doc-1", "https://example.com/other", "x"), ErrTerminal)
	require.ErrorIs(t, store.Fail(ctx, "doc-1", "oops"), ErrTerminal)

	got, err = store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, "https://example.com/d", got.DownloadURL)
}

func TestFail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newJob(store, t)

	// FAILED is reachable straight from QUEUED.
	require.NoError(t, store.Fail(ctx, "doc-1", "The document could not be queued for processing."))

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, MsgFailed, got.DisplayMessage)
	assert.Equal(t, "The document could not be queued for processing.", got.Error)
	assert.Empty(t, got.DownloadURL)

	require.ErrorIs(t, store.Complete(ctx, "doc-1", "u", "t"), ErrTerminal)
}

func TestUpdatedAtMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newJob(store, t)

	before, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)

	_, _, err = store.BeginProcessing(ctx, "doc-1")
	require.NoError(t, err)

	after, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
}
