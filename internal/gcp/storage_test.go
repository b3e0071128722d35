package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStoragePath(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare path", "uploads/report.docx", "uploads/report.docx"},
		{"gs uri", "gs://my-bucket/uploads/report.docx", "uploads/report.docx"},
		{
			"firebase url",
			"https://firebasestorage.googleapis.com/v0/b/my-bucket/o/uploads%2Freport.docx?alt=media&token=abc",
			"uploads/report.docx",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := NormalizeStoragePath(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestNormalizeStoragePathInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"gs://bucket-only",
		"https://firebasestorage.googleapis.com/v0/b/my-bucket",
	} {
		_, err := NormalizeStoragePath(in)
		assert.Error(t, err, in)
	}
}

func TestDownloadURL(t *testing.T) {
	b := &Bucket{name: "my-bucket"}
	got := b.DownloadURL("outputs/doc-1_formatted.docx", "tok-123")
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/my-bucket/o/outputs%2Fdoc-1_formatted.docx?alt=media&token=tok-123",
		got)
}
