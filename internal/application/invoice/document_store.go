package invoice

import (
	"context"
	"time"
)

// DocumentStore archives uploaded invoice files so the original document can
// be produced during a laboratory dispute. Implementations live in the
// infrastructure layer (S3-compatible storage, in-memory for development).
type DocumentStore interface {
	// Put stores the raw document under the given key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// PresignDownload returns a time-limited URL for retrieving the document.
	PresignDownload(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)

	// Exists reports whether a document is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the document. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
