package catalog

import (
	"sort"

	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
)

// Static is a compiled, immutable catalog. It implements engine.Catalog and is
// safe for concurrent use.
type Static struct {
	version   string
	checksum  string
	rules     []engine.Rule
	conflicts []engine.ConflictRule
	plans     map[string][]engine.PlanTemplate
	vocab     engine.Vocabulary
	doc       Document
}

var _ engine.Catalog = (*Static)(nil)

func (s *Static) Version() string { return s.version }

// Checksum identifies the catalog content independently of its declared version.
func (s *Static) Checksum() string { return s.checksum }

// ForEachRule visits rules in id order.
func (s *Static) ForEachRule(fn func(engine.Rule) error) error {
	for _, r := range s.rules {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Static) ForEachConflict(fn func(engine.ConflictRule) error) error {
	for _, cr := range s.conflicts {
		if err := fn(cr); err != nil {
			return err
		}
	}
	return nil
}

func (s *Static) LookupPlanTemplates(key string) []engine.PlanTemplate {
	return s.plans[key]
}

func (s *Static) Vocabulary() engine.Vocabulary { return s.vocab }

// Document returns the source document the catalog was compiled from.
func (s *Static) Document() Document { return s.doc }

// Stats summarizes the catalog for metadata endpoints and metrics.
type Stats struct {
	Version   string   `json:"version"`
	Checksum  string   `json:"checksum"`
	Rules     int      `json:"rules"`
	Conflicts int      `json:"conflicts"`
	PlanKeys  []string `json:"planKeys"`
}

func (s *Static) Stats() Stats {
	keys := make([]string, 0, len(s.plans))
	for k := range s.plans {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Stats{
		Version:   s.version,
		Checksum:  s.checksum,
		Rules:     len(s.rules),
		Conflicts: len(s.conflicts),
		PlanKeys:  keys,
	}
}
