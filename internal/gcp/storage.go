package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ErrObjectNotFound means the referenced storage object does not exist.
var ErrObjectNotFound = errors.New("storage object not found")

// tokenMetadataKey is the object metadata key Firebase clients read the
// download token from.
const tokenMetadataKey = "firebaseStorageDownloadTokens"

// Bucket wraps a GCS bucket with the operations the formatter needs.
type Bucket struct {
	name   string
	handle *storage.BucketHandle
}

// NewBucket binds a client to a named bucket.
func NewBucket(client *storage.Client, name string) *Bucket {
	return &Bucket{name: name, handle: client.Bucket(name)}
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Download reads the full object into memory.
func (b *Bucket) Download(ctx context.Context, objectPath string) ([]byte, error) {
	r, err := b.handle.Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
		}
		return nil, fmt.Errorf("opening object %s: %w", objectPath, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", objectPath, err)
	}
	return data, nil
}

// Upload writes the object with a fresh download token, only if it does
// not already exist. On a precondition conflict the existing object's
// token is reused, so redeliveries converge on one stable download URL.
func (b *Bucket) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	token := uuid.NewString()

	obj := b.handle.Object(objectPath)
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{tokenMetadataKey: token}

	_, writeErr := w.Write(data)
	closeErr := w.Close()
	err := writeErr
	if err == nil {
		err = closeErr
	}
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			return b.existingToken(ctx, objectPath)
		}
		return "", fmt.Errorf("writing object %s: %w", objectPath, err)
	}
	return token, nil
}

func (b *Bucket) existingToken(ctx context.Context, objectPath string) (string, error) {
	attrs, err := b.handle.Object(objectPath).Attrs(ctx)
	if err != nil {
		return "", fmt.Errorf("reading attrs of existing object %s: %w", objectPath, err)
	}
	token := attrs.Metadata[tokenMetadataKey]
	if token == "" {
		return "", fmt.Errorf("existing object %s has no download token", objectPath)
	}
	return token, nil
}

// DownloadURL builds the tokenized Firebase download URL for an object.
func (b *Bucket) DownloadURL(objectPath, token string) string {
	escaped := strings.ReplaceAll(url.PathEscape(objectPath), "/", "%2F")
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		b.name, escaped, token)
}

// NormalizeStoragePath extracts a bucket-relative object path from the
// reference forms clients submit: a Firebase download URL, a gs:// URI,
// or an already bare object path.
func NormalizeStoragePath(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("parsing storage URL: %w", err)
		}
		_, encoded, ok := strings.Cut(u.Path, "/o/")
		if !ok {
			return "", fmt.Errorf("storage URL has no object component: %s", ref)
		}
		objectPath, err := url.PathUnescape(encoded)
		if err != nil {
			return "", fmt.Errorf("unescaping object path: %w", err)
		}
		return objectPath, nil
	case strings.HasPrefix(ref, "gs://"):
		rest := strings.TrimPrefix(ref, "gs://")
		_, objectPath, ok := strings.Cut(rest, "/")
		if !ok || objectPath == "" {
			return "", fmt.Errorf("gs URI has no object component: %s", ref)
		}
		return objectPath, nil
	case ref == "":
		return "", fmt.Errorf("empty storage reference")
	default:
		return ref, nil
	}
}
