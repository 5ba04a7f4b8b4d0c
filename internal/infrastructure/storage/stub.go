// Package storage provides object storage implementations for fiscal archives.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	reportingapp "github.com/facturio/backend/internal/application/reporting"
)

// StubArchiveStorage is an in-memory implementation of ArchiveStorage.
// Use this for development and tests until a real S3 backend is configured.
// Contents are lost on restart, which makes it unfit for fiscal retention.
type StubArchiveStorage struct {
	// BaseURL is the base URL for generated download URLs
	// Defaults to "https://storage.example.com" if not set
	BaseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

// NewStubArchiveStorage creates a new StubArchiveStorage
func NewStubArchiveStorage() *StubArchiveStorage {
	return &StubArchiveStorage{
		BaseURL: "https://storage.example.com",
		objects: make(map[string][]byte),
	}
}

// Ensure StubArchiveStorage implements ArchiveStorage
var _ reportingapp.ArchiveStorage = (*StubArchiveStorage)(nil)

// Upload stores the artifact in memory
func (s *StubArchiveStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[storageKey] = stored
	return nil
}

// GenerateDownloadURL generates a stub download URL for a stored artifact
func (s *StubArchiveStorage) GenerateDownloadURL(
	ctx context.Context,
	storageKey string,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	expiresAt := time.Now().Add(expiresIn)
	url := s.BaseURL + "/download/" + storageKey + "?expires=" + expiresAt.Format(time.RFC3339)

	return url, expiresAt, nil
}

// DeleteObject removes the artifact from memory
func (s *StubArchiveStorage) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storageKey)
	return nil
}

// ObjectExists reports whether the artifact was uploaded
func (s *StubArchiveStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[storageKey]
	return ok, nil
}

// Get returns the stored artifact bytes (for tests)
func (s *StubArchiveStorage) Get(storageKey string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[storageKey]
	return data, ok
}
