package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
)

var ErrNoPlanTemplate = errors.New("no plan template")

const lintTypePrefix = "lint-type:"

// Lint reports problems Compile cannot see because they depend on which
// recommendations end up selected together. It plans every plan key at once
// against a neutral context, so dangling prerequisites and cycles that span
// templates surface as *engine.PlannerError. Recommendations that no plan key
// covers are reported with ErrNoPlanTemplate.
func Lint(s *Static) []error {
	if s == nil {
		return []error{ErrNoCatalog}
	}
	var issues []error

	produced := producedRecommendations(s)
	for _, id := range sortedKeys(produced) {
		typ := produced[id]
		if len(s.plans[id]) == 0 && len(s.plans[string(typ)]) == 0 {
			issues = append(issues, fmt.Errorf("recommendation %s (%s): %w", id, typ, ErrNoPlanTemplate))
		}
	}

	selection := make([]engine.Recommendation, 0, len(s.plans))
	for _, key := range sortedKeys(s.plans) {
		rec := engine.Recommendation{ID: key, Priority: engine.PriorityMedium, Title: key}
		if typ, err := engine.ParseRecommendationType(key); err == nil {
			rec.ID = lintTypePrefix + key
			rec.Type = typ
		} else if typ, ok := produced[key]; ok {
			rec.Type = typ
		} else {
			rec.Type = engine.TypeUseCase
		}
		selection = append(selection, rec)
	}
	if _, err := engine.Plan(neutralContext(), selection, s); err != nil {
		issues = append(issues, err)
	}
	return issues
}

func producedRecommendations(s *Static) map[string]engine.RecommendationType {
	out := make(map[string]engine.RecommendationType)
	for _, r := range s.rules {
		for _, rt := range r.Recommendations {
			if _, ok := out[rt.ID]; !ok {
				out[rt.ID] = rt.Type
			}
		}
	}
	return out
}

func neutralContext() engine.Context {
	return engine.Context{
		Industry:                   "lint",
		ComplianceFrameworks:       []string{},
		PainPoints:                 []string{},
		ExistingVendors:            map[string][]string{},
		AuthenticationRequirements: []string{},
		SecurityLevel:              engine.SecurityStandard,
		DeploymentType:             "lint",
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
