package engine

import (
	"fmt"
	"strings"
)

// TypeSelectorPrefix selects every recommendation of a type in conflict rules.
const TypeSelectorPrefix = "type:"

type recommendationIndex struct {
	byID   map[string]bool
	byType map[RecommendationType][]string
}

func indexRecommendations(recs []Recommendation) recommendationIndex {
	idx := recommendationIndex{
		byID:   make(map[string]bool, len(recs)),
		byType: make(map[RecommendationType][]string),
	}
	for _, r := range recs {
		idx.byID[r.ID] = true
		idx.byType[r.Type] = append(idx.byType[r.Type], r.ID)
	}
	return idx
}

func (idx recommendationIndex) hits(selector string) []string {
	if t, ok := strings.CutPrefix(selector, TypeSelectorPrefix); ok {
		return idx.byType[RecommendationType(t)]
	}
	if idx.byID[selector] {
		return []string{selector}
	}
	return nil
}

// detectConflicts runs the catalog's conflict rules over the final,
// deduplicated recommendation set.
func detectConflicts(c Context, recs []Recommendation, cat Catalog) ([]Blocker, []RuleFailure) {
	idx := indexRecommendations(recs)
	var blockers []Blocker
	var failures []RuleFailure
	if err := cat.ForEachConflict(func(cr ConflictRule) error {
		b, fired, failure := applyConflict(c, idx, cr)
		switch {
		case failure != nil:
			failures = append(failures, *failure)
		case fired:
			blockers = append(blockers, b)
		}
		return nil
	}); err != nil {
		failures = append(failures, RuleFailure{Kind: FailureCatalog, Err: err.Error()})
	}
	return blockers, failures
}

func applyConflict(c Context, idx recommendationIndex, cr ConflictRule) (b Blocker, fired bool, failure *RuleFailure) {
	defer func() {
		if rec := recover(); rec != nil {
			b, fired = Blocker{}, false
			failure = &RuleFailure{RuleID: cr.ID, Kind: FailureConflict, Err: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	if len(cr.IfAll) == 0 && len(cr.IfAny) == 0 {
		return Blocker{}, false, &RuleFailure{RuleID: cr.ID, Kind: FailureConflict, Err: "conflict rule has no selectors"}
	}

	var related []string
	for _, sel := range cr.IfAll {
		h := idx.hits(sel)
		if len(h) == 0 {
			return Blocker{}, false, nil
		}
		related = append(related, h...)
	}
	if len(cr.IfAny) > 0 {
		var anyHits []string
		for _, sel := range cr.IfAny {
			anyHits = append(anyHits, idx.hits(sel)...)
		}
		if len(anyHits) == 0 {
			return Blocker{}, false, nil
		}
		related = append(related, anyHits...)
	}
	for _, sel := range cr.Unless {
		if len(idx.hits(sel)) > 0 {
			return Blocker{}, false, nil
		}
	}

	m := &Matches{}
	if cr.When != nil {
		ok, err := cr.When.Eval(c, m)
		if err != nil {
			return Blocker{}, false, &RuleFailure{RuleID: cr.ID, Kind: FailureConflict, Err: err.Error()}
		}
		if !ok {
			return Blocker{}, false, nil
		}
	}

	related = uniqueSorted(related)
	data := TemplateData{Context: c, Matched: m.Values(), RuleID: cr.ID, Related: related}
	b, err := renderBlocker(cr.Blocker, data, cr.ID)
	if err != nil {
		return Blocker{}, false, &RuleFailure{RuleID: cr.ID, Kind: FailureConflict, Err: err.Error()}
	}
	b.RelatedRecommendationIDs = related
	return b, true, nil
}
