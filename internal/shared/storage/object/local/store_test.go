package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/object"
)

func TestPutThenOpen(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	if _, err := store.Put(ctx, "catalogs/active.yaml", "application/yaml", strings.NewReader("version: v1\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "catalogs/active.yaml", "application/yaml", strings.NewReader("version: v2\n")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	rc, err := store.Open(ctx, "catalogs/active.yaml")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "version: v2\n" {
		t.Fatalf("expected overwritten body, got %q", data)
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Open(context.Background(), "nope.yaml")
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../secret", "/etc/passwd", ""} {
		if _, err := store.Open(context.Background(), key); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestStatTracksContent(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	if _, err := store.Stat(ctx, "catalog.yaml"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Put(ctx, "catalog.yaml", "application/yaml", strings.NewReader("version: v1\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	first, err := store.Stat(ctx, "catalog.yaml")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if first.Size != int64(len("version: v1\n")) || first.ETag == "" || first.ModTime.IsZero() {
		t.Fatalf("unexpected info %+v", first)
	}

	again, _ := store.Stat(ctx, "catalog.yaml")
	if again.ETag != first.ETag {
		t.Fatal("etag changed without a write")
	}
	if _, err := store.Put(ctx, "catalog.yaml", "application/yaml", strings.NewReader("version: v2\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, _ := store.Stat(ctx, "catalog.yaml")
	if second.ETag == first.ETag {
		t.Fatal("etag did not change after overwrite")
	}
}
