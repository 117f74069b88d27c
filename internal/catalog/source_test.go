package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/object"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/object/local"
)

const miniCatalog = `
version: %s
rules:
  - id: r
    when: {field: industry, op: notEmpty}
    blockers:
      - message: m
`

func miniDoc(version string) []byte {
	return []byte(fmt.Sprintf(miniCatalog, version))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, miniDoc("f1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := FileSource{Path: path}
	cat, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Version() != "f1" || src.Name() != "file:"+path {
		t.Fatalf("unexpected catalog %s from %s", cat.Version(), src.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestObjectSource(t *testing.T) {
	store := local.New(t.TempDir())
	src := &ObjectSource{Store: store, Key: "catalogs/current.yaml"}

	if _, err := src.Load(context.Background()); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Put(context.Background(), src.Key, "application/yaml", bytes.NewReader(miniDoc("o1"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cat, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Version() != "o1" {
		t.Fatalf("unexpected version %s", cat.Version())
	}

	again, err := src.Load(context.Background())
	if err != nil || again != cat {
		t.Fatalf("expected cached catalog for unchanged object, got %v", err)
	}

	if _, err := store.Put(context.Background(), src.Key, "application/yaml", bytes.NewReader(miniDoc("o2"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	next, err := src.Load(context.Background())
	if err != nil || next.Version() != "o2" {
		t.Fatalf("expected o2 after overwrite, got %v", err)
	}
}

// swappingStore replaces the object the first time it is opened.
type swappingStore struct {
	*local.Store
	replacement []byte
	swapped     bool
}

func (s *swappingStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !s.swapped {
		s.swapped = true
		if _, err := s.Store.Put(ctx, key, "application/yaml", bytes.NewReader(s.replacement)); err != nil {
			return nil, err
		}
	}
	return s.Store.Open(ctx, key)
}

func TestObjectSourceSkipsCacheWhenObjectChangesDuringRead(t *testing.T) {
	store := &swappingStore{Store: local.New(t.TempDir()), replacement: miniDoc("o2")}
	src := &ObjectSource{Store: store, Key: "catalogs/current.yaml"}
	put := func(version string) {
		t.Helper()
		if _, err := store.Store.Put(context.Background(), src.Key, "application/yaml", bytes.NewReader(miniDoc(version))); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	put("o1")

	cat, err := src.Load(context.Background())
	if err != nil || cat.Version() != "o2" {
		t.Fatalf("expected content read after the swap, got %v", err)
	}

	put("o1")
	cat, err = src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Version() != "o1" {
		t.Fatalf("expected o1 after restore, got stale %s", cat.Version())
	}
}

func TestRevisionSourceAndPublish(t *testing.T) {
	repo := NewMemoryRevisionRepo()
	src := RevisionSource{Repo: repo}
	if _, err := src.Load(context.Background()); !errors.Is(err, ErrNoRevision) {
		t.Fatalf("expected ErrNoRevision, got %v", err)
	}

	rev, cat, err := PublishDocument(context.Background(), repo, miniDoc("r1"), " alice ", "first")
	if err != nil {
		t.Fatalf("PublishDocument: %v", err)
	}
	if rev.Author != "alice" || rev.Version != "r1" || rev.Checksum != cat.Checksum() || !rev.Active {
		t.Fatalf("unexpected revision %+v", rev)
	}

	loaded, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Checksum() != cat.Checksum() {
		t.Fatalf("checksum mismatch: %s vs %s", loaded.Checksum(), cat.Checksum())
	}
}

func TestPublishDocumentRejectsInvalidCatalog(t *testing.T) {
	repo := NewMemoryRevisionRepo()
	_, _, err := PublishDocument(context.Background(), repo, []byte("version: x\nrules:\n  - id: r\n"), "", "")
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	revs, _ := repo.List(context.Background(), 0, 0)
	if len(revs) != 0 {
		t.Fatalf("invalid catalog must not be stored, got %d revisions", len(revs))
	}
}

func TestMemoryRevisionRepoKeepsOneActive(t *testing.T) {
	repo := NewMemoryRevisionRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rev := Revision{ID: id, Version: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Publish(context.Background(), rev); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	active, err := repo.Active(context.Background())
	if err != nil || active.ID != "c" {
		t.Fatalf("expected c active, got %+v (%v)", active, err)
	}

	revs, err := repo.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revs) != 2 || revs[0].ID != "c" || revs[1].ID != "b" {
		t.Fatalf("unexpected page %+v", revs)
	}
	if revs[1].Active {
		t.Fatal("older revision still active")
	}

	revs, _ = repo.List(context.Background(), 2, 2)
	if len(revs) != 1 || revs[0].ID != "a" {
		t.Fatalf("unexpected second page %+v", revs)
	}
	revs, _ = repo.List(context.Background(), 2, 5)
	if len(revs) != 0 {
		t.Fatalf("expected empty page, got %+v", revs)
	}
}
