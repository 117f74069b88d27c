// Package engine evaluates organizational context against a rule catalog and
// expands accepted recommendations into a dependency-ordered checklist.
// Everything here is pure: no I/O, no shared mutable state.
package engine

// Catalog is the narrow interface the engine needs from a rule catalog.
// Implementations must be safe for concurrent reads and never mutate in place.
type Catalog interface {
	Version() string
	ForEachRule(fn func(Rule) error) error
	ForEachConflict(fn func(ConflictRule) error) error
	LookupPlanTemplates(key string) []PlanTemplate
	Vocabulary() Vocabulary
}

// Rule maps a predicate over the context to recommendations and blockers.
type Rule struct {
	ID              string
	Predicate       Predicate
	Recommendations []RecommendationTemplate
	Blockers        []BlockerTemplate
}

// RecommendationTemplate is materialized into a Recommendation when its rule matches.
type RecommendationTemplate struct {
	ID          string
	Type        RecommendationType
	Priority    Priority
	Title       Template
	Description Template
	Reasoning   Template
}

// BlockerTemplate is materialized into a Blocker.
type BlockerTemplate struct {
	Code    string
	Message Template
}

// ConflictRule inspects the final recommendation set. It fires when every IfAll
// selector is present, at least one IfAny selector is present (if any are given),
// no Unless selector is present, and When (if set) holds for the context.
// Selectors are recommendation ids or "type:<recommendation type>".
type ConflictRule struct {
	ID      string
	IfAll   []string
	IfAny   []string
	Unless  []string
	When    Predicate
	Blocker BlockerTemplate
}

// PlanTemplate is the checklist contribution of one recommendation to one phase.
type PlanTemplate struct {
	Phase     string
	DependsOn []string
	Tasks     []TaskTemplate
}

// TaskTemplate is materialized into a Task.
type TaskTemplate struct {
	ID             string
	Title          Template
	Description    Template
	EstimatedHours float64
	Prerequisites  []string
}
