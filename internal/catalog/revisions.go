package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNoRevision = errors.New("no active catalog revision")

// Revision is a published catalog document. Document holds the canonical JSON.
type Revision struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
	Document  []byte    `json:"-"`
	Author    string    `json:"author,omitempty"`
	Note      string    `json:"note,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// RevisionRepo stores published revisions. Exactly one revision is active after
// the first publish.
type RevisionRepo interface {
	Publish(ctx context.Context, rev Revision) error
	Active(ctx context.Context) (Revision, error)
	List(ctx context.Context, limit, offset int) ([]Revision, error)
}

// PublishDocument validates raw as a catalog, stores it as the new active
// revision and returns the compiled catalog alongside the revision record.
func PublishDocument(ctx context.Context, repo RevisionRepo, raw []byte, author, note string) (Revision, *Static, error) {
	doc, err := Parse(raw)
	if err != nil {
		return Revision{}, nil, err
	}
	cat, err := Compile(doc)
	if err != nil {
		return Revision{}, nil, err
	}
	canonical, err := doc.Canonical()
	if err != nil {
		return Revision{}, nil, fmt.Errorf("encode catalog: %w", err)
	}
	rev := Revision{
		ID:        uuid.NewString(),
		Version:   cat.Version(),
		Checksum:  cat.Checksum(),
		Document:  canonical,
		Author:    strings.TrimSpace(author),
		Note:      strings.TrimSpace(note),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Publish(ctx, rev); err != nil {
		return Revision{}, nil, err
	}
	return rev, cat, nil
}

// MemoryRevisionRepo keeps revisions in memory and is safe for concurrent use.
type MemoryRevisionRepo struct {
	mu        sync.RWMutex
	revisions []Revision
}

// NewMemoryRevisionRepo constructs a MemoryRevisionRepo.
func NewMemoryRevisionRepo() *MemoryRevisionRepo {
	return &MemoryRevisionRepo{}
}

func (r *MemoryRevisionRepo) Publish(ctx context.Context, rev Revision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.revisions {
		r.revisions[i].Active = false
	}
	rev.Active = true
	r.revisions = append(r.revisions, rev)
	return nil
}

func (r *MemoryRevisionRepo) Active(ctx context.Context) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.revisions) - 1; i >= 0; i-- {
		if r.revisions[i].Active {
			return r.revisions[i], nil
		}
	}
	return Revision{}, ErrNoRevision
}

// List returns revisions newest first, with limit/offset.
func (r *MemoryRevisionRepo) List(ctx context.Context, limit, offset int) ([]Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	r.mu.RLock()
	out := make([]Revision, len(r.revisions))
	copy(out, r.revisions)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Revision{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}
