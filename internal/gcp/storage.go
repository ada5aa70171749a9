package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// URIScheme prefixes Cloud Storage object URIs.
const URIScheme = "gs://"

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// IsRemote reports whether path is a gs:// URI.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, URIScheme)
}

// ParseURI splits gs://bucket/object into its bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsRemote(uri) {
		return "", "", fmt.Errorf("not a gs:// URI: %s", uri)
	}
	bucket, object, _ = strings.Cut(strings.TrimPrefix(uri, URIScheme), "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("URI %s must name a bucket and an object", uri)
	}
	return bucket, object, nil
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// ObjectStore stages operation inputs from and outputs to Cloud Storage.
type ObjectStore struct {
	client        *storage.Client
	uploadTimeout time.Duration
	logger        *slog.Logger
}

// NewObjectStore creates a storage client. uploadTimeout bounds a single upload
// attempt.
func NewObjectStore(ctx context.Context, uploadTimeout time.Duration, logger *slog.Logger) (*ObjectStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectStore{client: client, uploadTimeout: uploadTimeout, logger: logger}, nil
}

// Exists reports whether the object named by uri exists.
func (s *ObjectStore) Exists(ctx context.Context, uri string) (bool, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return false, err
	}
	if _, err := s.client.Bucket(bucket).Object(object).Attrs(ctx); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get attributes of %s: %w", uri, err)
	}
	return true, nil
}

// Download copies the object named by uri to destPath.
func (s *ObjectStore) Download(ctx context.Context, uri, destPath string) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}
	gcsReader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for %s: %w", uri, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		localFile.Close()
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	if err := localFile.Close(); err != nil {
		return fmt.Errorf("failed to close local file %s: %w", destPath, err)
	}
	return nil
}

// Upload copies localPath to the object named by uri, retrying with
// exponential backoff.
func (s *ObjectStore) Upload(ctx context.Context, localPath, uri string) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}

	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := s.uploadOnce(ctx, localPath, bucket, object)
		if err == nil {
			return nil
		}

		lastErr = err
		s.logger.Warn(
			"Upload failed, will retry.",
			"gcsObject", uri,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			s.logger.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", uri, "error", ctx.Err())
			return ctx.Err()
		}
	}
	s.logger.Error("Upload failed after all retries.", "gcsObject", uri, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", uri, lastErr)
}

func (s *ObjectStore) uploadOnce(ctx context.Context, localPath, bucket, object string) error {
	localFileReader, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer localFileReader.Close()

	writeCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	gcsWriter := s.client.Bucket(bucket).Object(object).NewWriter(writeCtx)
	if _, err := io.Copy(gcsWriter, localFileReader); err != nil {
		_ = gcsWriter.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := gcsWriter.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
	}
	return nil
}

// Close releases the storage client.
func (s *ObjectStore) Close() error {
	return s.client.Close()
}
