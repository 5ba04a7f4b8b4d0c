package reporting

import (
	"context"
	"time"
)

// ArchiveStorage stores generated fiscal artifacts (FEC exports, Factur-X
// documents) and hands out time-limited download URLs. Exported accounting
// files must stay retrievable for audits, so implementations are expected to
// be durable object stores.
type ArchiveStorage interface {
	// Upload stores the artifact under the given key
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error

	// GenerateDownloadURL returns a presigned URL and its expiry
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// ObjectExists reports whether an artifact is present under the key
	ObjectExists(ctx context.Context, storageKey string) (bool, error)

	// DeleteObject removes the artifact under the key
	DeleteObject(ctx context.Context, storageKey string) error
}
