// Package storage holds the blob stores templates and fonts are read from
// and generated contracts are written to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// ContentTypePDF is the content type of generated contracts.
const ContentTypePDF = "application/pdf"

// Reference is a durable pointer to a stored blob.
type Reference struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// BlobStore reads blobs by key.
type BlobStore interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
}

// Sink writes blobs and returns a link to them.
type Sink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Reference, error)
}

// Store is a backend that serves both directions.
type Store interface {
	BlobStore
	Sink
	Close() error
}

// TryGet is Get with absence reported as ok == false instead of an error.
func TryGet(ctx context.Context, store BlobStore, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	data, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// OutputKey returns a fresh key for a contract of entityID generated at now:
// contracts/<entityID>/<UTC timestamp>-<UUIDv7>.pdf. Keys of one entity sort
// by generation time.
func OutputKey(entityID string, now time.Time) (string, error) {
	if err := validateSegment(entityID); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	stamp := now.UTC().Format("20060102T150405Z")
	return fmt.Sprintf("contracts/%s/%s-%s.pdf", entityID, stamp, id), nil
}

func validateSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return nil
}

// cleanKey rejects keys that escape their root and joins them under prefix.
func cleanKey(prefix, key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	if prefix == "" {
		return path.Clean(key), nil
	}
	return path.Join(prefix, key), nil
}
