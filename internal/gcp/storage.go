package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt64 reads an integer environment variable, returning fallback when
// it is unset or malformed.
func GetEnvInt64(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.Warn("Ignoring malformed integer environment variable.", "key", key, "value", raw)
		return fallback
	}
	return v
}

// GetEnvFloat reads a decimal environment variable, returning fallback when
// it is unset or malformed.
func GetEnvFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("Ignoring malformed decimal environment variable.", "key", key, "value", raw)
		return fallback
	}
	return v
}

// ObjectURL returns the stable retrieval URL for a GCS object.
func ObjectURL(bucket, objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, (&url.URL{Path: objectName}).EscapedPath())
}

// Uploader writes binary files to a single GCS bucket.
type Uploader struct {
	client     *storage.Client
	bucket     string
	maxRetries int
	backoff    time.Duration
}

// NewUploader creates an Uploader for bucket.
func NewUploader(client *storage.Client, bucket string) *Uploader {
	return &Uploader{
		client:     client,
		bucket:     bucket,
		maxRetries: 4,
		backoff:    1 * time.Second,
	}
}

// Upload writes data to objectName only if the object doesn't already exist
// and returns its retrieval URL. A 412 on a retry means an earlier attempt
// already landed the object, which is treated as success.
func (u *Uploader) Upload(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	backoff := u.backoff
	var lastErr error

	for i := 0; i < u.maxRetries; i++ {
		err := u.write(ctx, objectName, contentType, data)
		if err == nil || isPreconditionFailed(err) {
			return ObjectURL(u.bucket, objectName), nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", u.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", objectName, "error", ctx.Err())
			return "", ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", objectName, "error", lastErr)
	return "", fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

func (u *Uploader) write(ctx context.Context, objectName, contentType string, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
	defer cancel()

	writer := u.client.Bucket(u.bucket).Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
