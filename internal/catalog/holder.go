package catalog

import (
	"errors"
	"sync/atomic"
	"time"
)

var ErrNoCatalog = errors.New("no catalog loaded")

// Snapshot is one published catalog plus where and when it was loaded.
type Snapshot struct {
	Catalog  *Static
	Source   string
	LoadedAt time.Time
}

// Holder publishes the active catalog. Readers take one snapshot per request
// and keep using it even if a reload swaps in a newer one meanwhile.
type Holder struct {
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	return &Holder{now: time.Now}
}

// Current returns the active snapshot or nil before the first load.
func (h *Holder) Current() *Snapshot {
	if h == nil {
		return nil
	}
	return h.current.Load()
}

// Catalog returns the active catalog or ErrNoCatalog.
func (h *Holder) Catalog() (*Static, error) {
	snap := h.Current()
	if snap == nil || snap.Catalog == nil {
		return nil, ErrNoCatalog
	}
	return snap.Catalog, nil
}

// Swap publishes cat and returns the snapshot it replaced.
func (h *Holder) Swap(cat *Static, source string) *Snapshot {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	next := &Snapshot{Catalog: cat, Source: source, LoadedAt: now().UTC()}
	return h.current.Swap(next)
}
