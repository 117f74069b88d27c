package engine

import (
	"fmt"
	"strings"
)

// RecommendationType classifies a recommendation.
type RecommendationType string

const (
	TypeUseCase              RecommendationType = "use_case"
	TypeVendor               RecommendationType = "vendor"
	TypeRequirement          RecommendationType = "requirement"
	TypeAuthenticationMethod RecommendationType = "authentication_method"
)

// Valid reports whether t is one of the defined recommendation types.
func (t RecommendationType) Valid() bool {
	switch t {
	case TypeUseCase, TypeVendor, TypeRequirement, TypeAuthenticationMethod:
		return true
	default:
		return false
	}
}

// Priority is totally ordered: critical > high > medium > low.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns a comparable weight; unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// ParsePriority matches a priority case-insensitively.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return p, nil
}

// ParseRecommendationType matches a recommendation type case-insensitively.
func ParseRecommendationType(raw string) (RecommendationType, error) {
	t := RecommendationType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown recommendation type %q", raw)
	}
	return t, nil
}

// Recommendation is a single suggested action, vendor, requirement or use case.
type Recommendation struct {
	ID          string             `json:"id"`
	Type        RecommendationType `json:"type"`
	Priority    Priority           `json:"priority"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Reasoning   string             `json:"reasoning"`
	RuleID      string             `json:"ruleId,omitempty"`
}

// Blocker is a condition that prevents or complicates deployment.
type Blocker struct {
	Code                     string   `json:"code"`
	Message                  string   `json:"message"`
	RuleID                   string   `json:"ruleId,omitempty"`
	RelatedRecommendationIDs []string `json:"relatedRecommendationIds,omitempty"`
}

// String renders the blocker for consumers that expect plain strings.
func (b Blocker) String() string {
	return b.Message
}

// DecisionPath is the evaluator output.
type DecisionPath struct {
	Recommendations []Recommendation `json:"recommendations"`
	Blockers        []Blocker        `json:"blockers"`
}

// BlockerStrings returns the blockers in their plain string form, preserving
// order. Blockers with different codes but the same message appear once.
func (d DecisionPath) BlockerStrings() []string {
	out := make([]string, 0, len(d.Blockers))
	seen := make(map[string]struct{}, len(d.Blockers))
	for _, b := range d.Blockers {
		s := b.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Task is a unit of deployment work.
type Task struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	EstimatedHours float64  `json:"estimatedHours"`
	Prerequisites  []string `json:"prerequisites"`
}

// Phase is an ordered group of tasks.
type Phase struct {
	Name      string   `json:"phase"`
	Tasks     []Task   `json:"tasks"`
	DependsOn []string `json:"dependsOn"`
}

// Checklist is the planner output. Unplanned lists selected recommendation ids
// for which the catalog has no plan templates.
type Checklist struct {
	Phases    []Phase  `json:"phases"`
	Unplanned []string `json:"unplanned,omitempty"`
}

// TotalHours sums the estimated hours of every task in the checklist.
func (c Checklist) TotalHours() float64 {
	var total float64
	for _, p := range c.Phases {
		for _, t := range p.Tasks {
			total += t.EstimatedHours
		}
	}
	return total
}
