package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docforge/docforge/internal/jobs"
	"github.com/docforge/docforge/internal/profile"
)

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishJob(ctx context.Context, docID string) error {
	f.published = append(f.published, docID)
	return f.err
}

func newIntake(pub *fakePublisher) (*IntakeService, *jobs.MemoryStore) {
	store := jobs.NewMemoryStore()
	return NewIntake(store, pub, profile.NewRegistry()), store
}

func TestCreateJob(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, store := newIntake(pub)

	res, err := svc.CreateJob(ctx, &CreateRequest{
		StoragePath: "uploads/report.docx",
		Profile:     "compact_clean",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, "QUEUED", res.State)
	assert.Equal(t, res.State, res.Status)
	assert.Equal(t, "compact_clean", res.Profile)

	require.Equal(t, []string{res.JobID}, pub.published)

	job, err := store.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateQueued, job.State)
	assert.Equal(t, "uploads/report.docx", job.InputRef)
	assert.Equal(t, "compact_clean", job.ProfileName)
}

func TestCreateJobDefaultProfile(t *testing.T) {
	pub := &fakePublisher{}
	svc, store := newIntake(pub)

	res, err := svc.CreateJob(context.Background(), &CreateRequest{StoragePath: "uploads/a.docx"})
	require.NoError(t, err)
	assert.Equal(t, profile.DefaultName, res.Profile)

	job, err := store.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, profile.DefaultName, job.ProfileName)
}

func TestCreateJobUnknownProfile(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newIntake(pub)

	_, err := svc.CreateJob(context.Background(), &CreateRequest{
		StoragePath: "uploads/a.docx",
		Profile:     "extra_fancy",
	})
	require.ErrorIs(t, err, ErrValidation)
	// Rejected requests leave no record and no message behind.
	assert.Empty(t, pub.published)
}

func TestCreateJobMissingStoragePath(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newIntake(pub)

	_, err := svc.CreateJob(context.Background(), &CreateRequest{Profile: "standard_clean"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, pub.published)
}

func TestCreateJobPublishFailure(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("topic unavailable")}
	svc, store := newIntake(pub)

	_, err := svc.CreateJob(ctx, &CreateRequest{StoragePath: "uploads/a.docx"})
	require.Error(t, err)
	require.Len(t, pub.published, 1)

	// The orphaned record lands in FAILED rather than QUEUED forever.
	job, err := store.Get(ctx, pub.published[0])
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, job.State)
	assert.NotEmpty(t, job.Error)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, store := newIntake(pub)

	res, err := svc.CreateJob(ctx, &CreateRequest{StoragePath: "uploads/a.docx"})
	require.NoError(t, err)

	require.NoError(t, store.SetProgress(ctx, res.JobID, 50, "Formatting your document"))

	st, err := svc.Status(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, res.JobID, st.JobID)
	assert.Equal(t, "QUEUED", st.State)
	assert.Equal(t, st.State, st.Status)
	assert.Equal(t, "Queued", st.DisplayMessage)
}

func TestStatusAliases(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, store := newIntake(pub)

	res, err := svc.CreateJob(ctx, &CreateRequest{StoragePath: "uploads/a.docx"})
	require.NoError(t, err)
	_, _, err = store.BeginProcessing(ctx, res.JobID)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, res.JobID, "https://dl.example/out", "body text"))

	st, err := svc.Status(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", st.State)
	assert.Equal(t, "COMPLETED", st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, "https://dl.example/out", st.DownloadURL)
	assert.Equal(t, st.DownloadURL, st.URL)
	assert.Equal(t, st.DownloadURL, st.OutputRef)
	assert.Equal(t, "body text", st.FormattedText)
}

func TestStatusUnknownJob(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newIntake(pub)

	_, err := svc.Status(context.Background(), "nope")
	require.ErrorIs(t, err, jobs.ErrNotFound)

	_, err = svc.Status(context.Background(), "")
	require.ErrorIs(t, err, ErrValidation)
}
