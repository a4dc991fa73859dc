package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	invoiceapp "github.com/rfa/backend/internal/application/invoice"
)

var _ invoiceapp.DocumentStore = (*InMemoryDocumentStore)(nil)

type storedObject struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

// InMemoryDocumentStore keeps archived documents in process memory. It backs
// development setups and tests where no S3-compatible service is running.
type InMemoryDocumentStore struct {
	mu      sync.RWMutex
	objects map[string]storedObject

	// BaseURL prefixes the fake presigned URLs.
	BaseURL string
}

// NewInMemoryDocumentStore creates an empty in-memory store.
func NewInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		objects: make(map[string]storedObject),
		BaseURL: "https://storage.local",
	}
}

func (s *InMemoryDocumentStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = storedObject{data: buf, contentType: contentType, storedAt: time.Now()}
	return nil
}

func (s *InMemoryDocumentStore) PresignDownload(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", time.Time{}, errors.New("document not found: " + key)
	}

	expiresAt := time.Now().Add(expiresIn)
	return s.BaseURL + "/" + key + "?expires=" + expiresAt.Format(time.RFC3339), expiresAt, nil
}

func (s *InMemoryDocumentStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("storage key is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *InMemoryDocumentStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get returns the stored bytes and content type. Test helper.
func (s *InMemoryDocumentStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.contentType, true
}

// Size returns the number of stored documents. Test helper.
func (s *InMemoryDocumentStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
