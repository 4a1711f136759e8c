package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "og/home.png", "image/png", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://og/home.png" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'

	obj, err := store.GetObject(context.Background(), "og/home.png")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	defer obj.Body.Close() //nolint:errcheck // in-memory reader
	got, err := io.ReadAll(obj.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", got)
	}
	if obj.ContentType != "image/png" || obj.Size != int64(len("content")) {
		t.Fatalf("unexpected object attrs %+v", obj)
	}
}

func TestBlobStoreGetObjectMissing(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "missing.png")
	if !errors.Is(err, analytics.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
