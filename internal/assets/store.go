// Package assets stores downloaded binary assets (cover images) in a blob
// bucket addressed by flat relative keys.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// Store writes and removes assets in a bucket. Keys are never overwritten by
// callers that generate unique names, so no locking is needed.
type Store struct {
	bucket *blob.Bucket
}

// New wraps an already opened bucket.
func New(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// OpenDir opens a directory-backed store, creating the directory if absent.
func OpenDir(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("asset directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // Standard dir permissions
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset directory: %w", err)
	}
	return &Store{bucket: bucket}, nil
}

// Put streams r into key. If the copy fails the partial object is discarded.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	key, err := sanitizeKey(key)
	if err != nil {
		return err
	}

	// Cancelling the writer's context before Close aborts the write.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to open asset %s: %w", key, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("failed to write asset %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to store asset %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	key, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	if err := s.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("failed to delete asset %s: %w", key, err)
	}
	return nil
}

// Close releases the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// sanitizeKey rejects keys that could escape the bucket root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	clean := path.Clean(key)
	if key == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid asset key %q", key)
	}
	return clean, nil
}
