// Package scoping exposes the decision engine as a service: it resolves the
// active catalog, enforces the evaluation budget and caches results.
package scoping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iammrherb/authensi-smart-sub008/internal/cache"
	"github.com/iammrherb/authensi-smart-sub008/internal/catalog"
	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/metrics"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/telemetry"
)

// Catalog is an engine catalog that can identify its content.
type Catalog interface {
	engine.Catalog
	Checksum() string
}

// CatalogProvider returns the catalog to use for one request.
type CatalogProvider interface {
	Active() (Catalog, error)
}

type holderProvider struct {
	holder *catalog.Holder
}

// FromHolder serves whatever catalog the holder currently publishes.
func FromHolder(h *catalog.Holder) CatalogProvider {
	return holderProvider{holder: h}
}

func (p holderProvider) Active() (Catalog, error) {
	cat, err := p.holder.Catalog()
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// Analysis is an evaluation plus whether it came from the cache.
type Analysis struct {
	engine.Evaluation
	Cached bool
}

// ChecklistResult is a checklist and the catalog version that produced it.
type ChecklistResult struct {
	engine.Checklist
	CatalogVersion string
}

// Service runs evaluations and planning against the active catalog.
type Service struct {
	Catalogs CatalogProvider
	Cache    cache.DecisionCache
	// Budget bounds the wall-clock time of one evaluation or plan. Zero disables it.
	Budget time.Duration
}

// AnalyzeContext normalizes input and evaluates it against the active catalog.
func (s *Service) AnalyzeContext(ctx context.Context, input map[string]any) (Analysis, error) {
	start := time.Now()
	cat, err := s.catalog()
	if err != nil {
		metrics.IncEvaluation(metrics.OutcomeError)
		return Analysis{}, err
	}

	c, err := engine.Normalizer{Vocabulary: cat.Vocabulary()}.DecodeAndNormalize(input)
	if err != nil {
		metrics.IncEvaluation(metrics.OutcomeInvalid)
		return Analysis{}, err
	}

	key, keyErr := cache.Key(cat.Checksum(), c)
	if keyErr == nil {
		if eval, ok := s.lookup(ctx, key); ok {
			metrics.IncEvaluation(metrics.OutcomeOK)
			metrics.ObserveDuration("evaluate", time.Since(start))
			return Analysis{Evaluation: eval, Cached: true}, nil
		}
	}

	eval, err := withBudget(ctx, s.Budget, func() (engine.Evaluation, error) {
		return engine.Evaluate(c, cat), nil
	})
	metrics.ObserveDuration("evaluate", time.Since(start))
	if err != nil {
		metrics.IncEvaluation(outcomeFor(err))
		return Analysis{}, err
	}
	metrics.IncEvaluation(metrics.OutcomeOK)
	recordFailures(eval)

	if keyErr == nil {
		s.store(ctx, key, eval)
	}
	return Analysis{Evaluation: eval}, nil
}

// GenerateChecklist normalizes input and plans the selected recommendations.
func (s *Service) GenerateChecklist(ctx context.Context, input map[string]any, selected []engine.Recommendation) (ChecklistResult, error) {
	start := time.Now()
	cat, err := s.catalog()
	if err != nil {
		metrics.IncPlan(metrics.OutcomeError)
		return ChecklistResult{}, err
	}

	c, err := engine.Normalizer{Vocabulary: cat.Vocabulary()}.DecodeAndNormalize(input)
	if err != nil {
		metrics.IncPlan(metrics.OutcomeInvalid)
		return ChecklistResult{}, err
	}

	checklist, err := withBudget(ctx, s.Budget, func() (engine.Checklist, error) {
		return engine.Plan(c, selected, cat)
	})
	metrics.ObserveDuration("plan", time.Since(start))
	if err != nil {
		metrics.IncPlan(outcomeFor(err))
		var perr *engine.PlannerError
		if errors.As(err, &perr) {
			telemetry.Warn("plan.rejected", map[string]any{
				"catalog_version": cat.Version(),
				"kind":            perr.Kind,
				"ids":             perr.IDs,
			})
		}
		return ChecklistResult{}, err
	}
	metrics.IncPlan(metrics.OutcomeOK)
	if len(checklist.Unplanned) > 0 {
		telemetry.Info("plan.unplanned", map[string]any{
			"catalog_version":    cat.Version(),
			"recommendation_ids": checklist.Unplanned,
		})
	}
	return ChecklistResult{Checklist: checklist, CatalogVersion: cat.Version()}, nil
}

func (s *Service) catalog() (Catalog, error) {
	if s.Catalogs == nil {
		return nil, ErrCatalogUnavailable
	}
	cat, err := s.Catalogs.Active()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if cat == nil {
		return nil, ErrCatalogUnavailable
	}
	return cat, nil
}

func (s *Service) lookup(ctx context.Context, key string) (engine.Evaluation, bool) {
	if s.Cache == nil {
		return engine.Evaluation{}, false
	}
	eval, err := s.Cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.IncCache("hit")
		return eval, true
	case errors.Is(err, cache.ErrMiss):
		metrics.IncCache("miss")
	default:
		metrics.IncCache("error")
		telemetry.Warn("cache.get_failed", map[string]any{"error": err})
	}
	return engine.Evaluation{}, false
}

func (s *Service) store(ctx context.Context, key string, eval engine.Evaluation) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, key, eval); err != nil {
		telemetry.Warn("cache.set_failed", map[string]any{"error": err})
	}
}

func recordFailures(eval engine.Evaluation) {
	counts := make(map[engine.FailureKind]int)
	for _, f := range eval.Failures {
		counts[f.Kind]++
		telemetry.Warn("rule.failed", map[string]any{
			"catalog_version": eval.CatalogVersion,
			"rule_id":         f.RuleID,
			"kind":            string(f.Kind),
			"error":           f.Err,
		})
	}
	for kind, n := range counts {
		metrics.AddRuleFailures(string(kind), n)
	}
}

func outcomeFor(err error) string {
	var verr *engine.ValidationError
	var perr *engine.PlannerError
	switch {
	case errors.Is(err, ErrBudgetExceeded):
		return metrics.OutcomeBudget
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	case errors.As(err, &verr):
		return metrics.OutcomeInvalid
	case errors.As(err, &perr):
		return metrics.OutcomePlanning
	default:
		return metrics.OutcomeError
	}
}

// withBudget runs fn in its own goroutine and gives up once the budget or ctx
// expires. The engine holds no shared state, so an abandoned run only costs CPU
// until it returns and its result is dropped. Only the budget's own timer maps
// to ErrBudgetExceeded; a caller's cancellation or deadline is returned as is.
func withBudget[T any](ctx context.Context, budget time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, budget, ErrBudgetExceeded)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("engine panic: %v", rec)}
			}
		}()
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		if errors.Is(context.Cause(ctx), ErrBudgetExceeded) {
			return zero, ErrBudgetExceeded
		}
		return zero, ctx.Err()
	}
}
