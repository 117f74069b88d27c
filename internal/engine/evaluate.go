package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FailureCatalog marks a failure reported by the catalog iterator itself.
const FailureCatalog FailureKind = "catalog"

// Evaluation is a DecisionPath plus the rules that failed along the way.
type Evaluation struct {
	DecisionPath
	CatalogVersion string        `json:"catalogVersion"`
	Failures       []RuleFailure `json:"failures"`
}

type candidate struct {
	rec      Recommendation
	ruleID   string
	position int
}

// Evaluate runs every catalog rule against c and returns the ranked, deduplicated
// recommendations and the sorted blockers. It is a pure function of its inputs:
// rule iteration order does not affect the result, and failing rules are reported
// in Failures instead of aborting the run.
func Evaluate(c Context, cat Catalog) Evaluation {
	out := Evaluation{
		DecisionPath: DecisionPath{
			Recommendations: []Recommendation{},
			Blockers:        []Blocker{},
		},
		Failures: []RuleFailure{},
	}
	if cat == nil {
		return out
	}
	out.CatalogVersion = cat.Version()

	candidates := make([]candidate, 0, 16)
	blockers := make([]Blocker, 0, 4)
	if err := cat.ForEachRule(func(r Rule) error {
		cands, bls, failure := applyRule(c, r)
		if failure != nil {
			out.Failures = append(out.Failures, *failure)
			return nil
		}
		candidates = append(candidates, cands...)
		blockers = append(blockers, bls...)
		return nil
	}); err != nil {
		out.Failures = append(out.Failures, RuleFailure{Kind: FailureCatalog, Err: err.Error()})
	}

	recs := dedupe(candidates)
	sortRecommendations(recs)

	conflictBlockers, conflictFailures := detectConflicts(c, recs, cat)
	blockers = append(blockers, conflictBlockers...)
	out.Failures = append(out.Failures, conflictFailures...)

	out.Recommendations = recs
	out.Blockers = finalizeBlockers(blockers)
	sortFailures(out.Failures)
	return out
}

func applyRule(c Context, r Rule) (cands []candidate, blockers []Blocker, failure *RuleFailure) {
	stage := FailurePredicate
	defer func() {
		if rec := recover(); rec != nil {
			cands, blockers = nil, nil
			failure = &RuleFailure{RuleID: r.ID, Kind: stage, Err: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	if r.Predicate == nil {
		return nil, nil, &RuleFailure{RuleID: r.ID, Kind: FailurePredicate, Err: "rule has no predicate"}
	}
	m := &Matches{}
	ok, err := r.Predicate.Eval(c, m)
	if err != nil {
		return nil, nil, &RuleFailure{RuleID: r.ID, Kind: FailurePredicate, Err: err.Error()}
	}
	if !ok {
		return nil, nil, nil
	}

	stage = FailureTemplate
	data := TemplateData{Context: c, Matched: m.Values(), RuleID: r.ID}
	cands = make([]candidate, 0, len(r.Recommendations))
	for i, t := range r.Recommendations {
		rec, err := renderRecommendation(t, data)
		if err != nil {
			return nil, nil, &RuleFailure{RuleID: r.ID, Kind: FailureTemplate, Err: err.Error()}
		}
		rec.RuleID = r.ID
		cands = append(cands, candidate{rec: rec, ruleID: r.ID, position: i})
	}
	blockers = make([]Blocker, 0, len(r.Blockers))
	for _, t := range r.Blockers {
		b, err := renderBlocker(t, data, r.ID)
		if err != nil {
			return nil, nil, &RuleFailure{RuleID: r.ID, Kind: FailureTemplate, Err: err.Error()}
		}
		blockers = append(blockers, b)
	}
	return cands, blockers, nil
}

func renderRecommendation(t RecommendationTemplate, data TemplateData) (Recommendation, error) {
	id := strings.TrimSpace(t.ID)
	if id == "" {
		return Recommendation{}, errors.New("recommendation template has no id")
	}
	if !t.Type.Valid() {
		return Recommendation{}, fmt.Errorf("recommendation %s: invalid type %q", id, t.Type)
	}
	if !t.Priority.Valid() {
		return Recommendation{}, fmt.Errorf("recommendation %s: invalid priority %q", id, t.Priority)
	}
	title, err := t.Title.Render(data)
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommendation %s title: %w", id, err)
	}
	desc, err := t.Description.Render(data)
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommendation %s description: %w", id, err)
	}
	reasoning, err := t.Reasoning.Render(data)
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommendation %s reasoning: %w", id, err)
	}
	return Recommendation{
		ID:          id,
		Type:        t.Type,
		Priority:    t.Priority,
		Title:       title,
		Description: desc,
		Reasoning:   reasoning,
	}, nil
}

func renderBlocker(t BlockerTemplate, data TemplateData, sourceID string) (Blocker, error) {
	msg, err := t.Message.Render(data)
	if err != nil {
		return Blocker{}, fmt.Errorf("blocker %s: %w", t.Code, err)
	}
	if msg == "" {
		return Blocker{}, fmt.Errorf("blocker %s rendered an empty message", t.Code)
	}
	code := strings.TrimSpace(t.Code)
	if code == "" {
		code = sourceID
	}
	return Blocker{Code: code, Message: msg, RuleID: sourceID}, nil
}

// dedupe keeps one candidate per id: highest priority, then smallest rule id,
// then earliest template position within that rule.
func dedupe(cands []candidate) []Recommendation {
	best := make(map[string]candidate, len(cands))
	for _, c := range cands {
		cur, ok := best[c.rec.ID]
		if !ok || outranks(c, cur) {
			best[c.rec.ID] = c
		}
	}
	out := make([]Recommendation, 0, len(best))
	for _, c := range best {
		out = append(out, c.rec)
	}
	return out
}

func outranks(a, b candidate) bool {
	if ra, rb := a.rec.Priority.Rank(), b.rec.Priority.Rank(); ra != rb {
		return ra > rb
	}
	if a.ruleID != b.ruleID {
		return a.ruleID < b.ruleID
	}
	return a.position < b.position
}

func sortRecommendations(items []Recommendation) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra > rb
		}
		return a.ID < b.ID
	})
}

func finalizeBlockers(items []Blocker) []Blocker {
	type key struct{ code, msg string }
	merged := make(map[key]Blocker, len(items))
	for _, b := range items {
		k := key{b.Code, b.Message}
		cur, ok := merged[k]
		if !ok {
			b.RelatedRecommendationIDs = uniqueSorted(b.RelatedRecommendationIDs)
			merged[k] = b
			continue
		}
		cur.RelatedRecommendationIDs = uniqueSorted(append(cur.RelatedRecommendationIDs, b.RelatedRecommendationIDs...))
		if b.RuleID != "" && (cur.RuleID == "" || b.RuleID < cur.RuleID) {
			cur.RuleID = b.RuleID
		}
		merged[k] = cur
	}
	out := make([]Blocker, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Message != out[j].Message {
			return out[i].Message < out[j].Message
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func sortFailures(items []RuleFailure) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].RuleID != items[j].RuleID {
			return items[i].RuleID < items[j].RuleID
		}
		return items[i].Kind < items[j].Kind
	})
}

func uniqueSorted(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
