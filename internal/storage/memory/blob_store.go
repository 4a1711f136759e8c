package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

type blob struct {
	data        []byte
	contentType string
}

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		blobs: make(map[string]blob),
	}
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = blob{data: byteData, contentType: contentType}
	return fmt.Sprintf("memory://%s", path), nil
}

// GetObject returns a reader over a copy of the stored bytes.
func (s *BlobStore) GetObject(_ context.Context, path string) (analytics.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[path]
	if !ok {
		return analytics.Object{}, fmt.Errorf("%s: %w", path, analytics.ErrNotFound)
	}
	cp := append([]byte(nil), b.data...)
	return analytics.Object{
		Body:        io.NopCloser(bytes.NewReader(cp)),
		ContentType: b.contentType,
		Size:        int64(len(cp)),
	}, nil
}
