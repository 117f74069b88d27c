package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/iammrherb/authensi-smart-sub008/internal/shared/metrics"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/telemetry"
)

// Reloader keeps a Holder in sync with a Source.
type Reloader struct {
	Source   Source
	Holder   *Holder
	Interval time.Duration
	// OnSwap is called after a new catalog is published.
	OnSwap func(prev, next *Snapshot)
}

// ReloadNow loads the source once. It publishes the result only when the
// checksum differs from the active catalog and reports whether it did.
// On error the active catalog stays in place.
func (r *Reloader) ReloadNow(ctx context.Context) (bool, error) {
	if r.Source == nil || r.Holder == nil {
		return false, errors.New("reloader: source and holder are required")
	}
	cat, err := r.Source.Load(ctx)
	if err != nil {
		metrics.IncCatalogReload(metrics.OutcomeFailed)
		telemetry.Error("catalog.reload_failed", map[string]any{
			"source": r.Source.Name(),
			"error":  err,
		})
		return false, err
	}

	if cur := r.Holder.Current(); cur != nil && cur.Catalog != nil && cur.Catalog.Checksum() == cat.Checksum() {
		metrics.IncCatalogReload(metrics.OutcomeUnchanged)
		return false, nil
	}

	prev := r.Holder.Swap(cat, r.Source.Name())
	next := r.Holder.Current()
	metrics.IncCatalogReload(metrics.OutcomeSwapped)
	metrics.SetCatalogRules(len(cat.rules))

	fields := map[string]any{
		"source":   r.Source.Name(),
		"version":  cat.Version(),
		"checksum": cat.Checksum(),
		"rules":    len(cat.rules),
	}
	if prev != nil && prev.Catalog != nil {
		fields["previous_version"] = prev.Catalog.Version()
	}
	telemetry.Info("catalog.loaded", fields)

	if r.OnSwap != nil {
		r.OnSwap(prev, next)
	}
	return true, nil
}

// Run reloads on every tick until ctx is done. It does not perform an initial
// load; call ReloadNow first when startup must fail on a bad catalog.
func (r *Reloader) Run(ctx context.Context) {
	if r.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.ReloadNow(ctx)
		}
	}
}
