package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
)

// CompileError aggregates every problem found in a document.
type CompileError struct {
	Problems []string
}

func (e *CompileError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid catalog: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid catalog: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

type compiler struct {
	problems []string
}

func (c *compiler) addf(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *compiler) template(where, raw string) engine.Template {
	t, err := engine.ParseTemplate(where, raw)
	if err != nil {
		c.addf("%s: %v", where, err)
	}
	return t
}

// Compile validates doc and builds an immutable catalog from it.
func Compile(doc Document) (*Static, error) {
	c := &compiler{}
	checksum, err := doc.Checksum()
	if err != nil {
		return nil, err
	}

	s := &Static{
		version:  strings.TrimSpace(doc.Version),
		checksum: checksum,
		vocab:    doc.Vocabulary,
		plans:    make(map[string][]engine.PlanTemplate, len(doc.Plans)),
		doc:      doc,
	}
	if s.version == "" {
		s.version = "sha256:" + checksum[:12]
	}

	seen := make(map[string]bool, len(doc.Rules))
	for i, rd := range doc.Rules {
		if r, ok := c.rule(i, rd, seen); ok {
			s.rules = append(s.rules, r)
		}
	}
	sort.Slice(s.rules, func(i, j int) bool { return s.rules[i].ID < s.rules[j].ID })

	seenConflicts := make(map[string]bool, len(doc.Conflicts))
	for i, cd := range doc.Conflicts {
		if cr, ok := c.conflict(i, cd, seenConflicts); ok {
			s.conflicts = append(s.conflicts, cr)
		}
	}
	sort.Slice(s.conflicts, func(i, j int) bool { return s.conflicts[i].ID < s.conflicts[j].ID })

	for key, pds := range doc.Plans {
		if pts, ok := c.plans(key, pds); ok {
			s.plans[strings.TrimSpace(key)] = pts
		}
	}

	if len(c.problems) > 0 {
		sort.Strings(c.problems)
		return nil, &CompileError{Problems: c.problems}
	}
	return s, nil
}

func (c *compiler) rule(i int, rd RuleDoc, seen map[string]bool) (engine.Rule, bool) {
	before := len(c.problems)
	id := strings.TrimSpace(rd.ID)
	where := fmt.Sprintf("rules[%d]", i)
	if id == "" {
		c.addf("%s: id is required", where)
	} else {
		where = "rule " + id
		if seen[id] {
			c.addf("%s: duplicate rule id", where)
		}
		seen[id] = true
	}
	if err := rd.When.Validate(); err != nil {
		c.addf("%s: when: %v", where, err)
	}
	if len(rd.Recommendations) == 0 && len(rd.Blockers) == 0 {
		c.addf("%s: produces neither recommendations nor blockers", where)
	}

	r := engine.Rule{ID: id, Predicate: rd.When}
	for j, rec := range rd.Recommendations {
		r.Recommendations = append(r.Recommendations, c.recommendation(fmt.Sprintf("%s recommendations[%d]", where, j), rec))
	}
	for j, b := range rd.Blockers {
		r.Blockers = append(r.Blockers, c.blocker(fmt.Sprintf("%s blockers[%d]", where, j), b))
	}
	return r, len(c.problems) == before
}

func (c *compiler) recommendation(where string, rd RecommendationDoc) engine.RecommendationTemplate {
	id := strings.TrimSpace(rd.ID)
	if id == "" {
		c.addf("%s: id is required", where)
	}
	typ, err := engine.ParseRecommendationType(rd.Type)
	if err != nil {
		c.addf("%s: %v", where, err)
	}
	prio, err := engine.ParsePriority(rd.Priority)
	if err != nil {
		c.addf("%s: %v", where, err)
	}
	if strings.TrimSpace(rd.Title) == "" {
		c.addf("%s: title is required", where)
	}
	return engine.RecommendationTemplate{
		ID:          id,
		Type:        typ,
		Priority:    prio,
		Title:       c.template(where+" title", rd.Title),
		Description: c.template(where+" description", rd.Description),
		Reasoning:   c.template(where+" reasoning", rd.Reasoning),
	}
}

func (c *compiler) blocker(where string, bd BlockerDoc) engine.BlockerTemplate {
	if strings.TrimSpace(bd.Message) == "" {
		c.addf("%s: message is required", where)
	}
	return engine.BlockerTemplate{
		Code:    strings.TrimSpace(bd.Code),
		Message: c.template(where+" message", bd.Message),
	}
}

func (c *compiler) conflict(i int, cd ConflictDoc, seen map[string]bool) (engine.ConflictRule, bool) {
	before := len(c.problems)
	id := strings.TrimSpace(cd.ID)
	where := fmt.Sprintf("conflicts[%d]", i)
	if id == "" {
		c.addf("%s: id is required", where)
	} else {
		where = "conflict " + id
		if seen[id] {
			c.addf("%s: duplicate conflict id", where)
		}
		seen[id] = true
	}
	if len(cd.IfAll) == 0 && len(cd.IfAny) == 0 {
		c.addf("%s: needs at least one ifAll or ifAny selector", where)
	}
	for _, sel := range append(append(append([]string{}, cd.IfAll...), cd.IfAny...), cd.Unless...) {
		c.selector(where, sel)
	}

	cr := engine.ConflictRule{
		ID:      id,
		IfAll:   trimAll(cd.IfAll),
		IfAny:   trimAll(cd.IfAny),
		Unless:  trimAll(cd.Unless),
		Blocker: c.blocker(where+" blocker", cd.Blocker),
	}
	if cd.When != nil {
		if err := cd.When.Validate(); err != nil {
			c.addf("%s: when: %v", where, err)
		}
		cr.When = *cd.When
	}
	return cr, len(c.problems) == before
}

func (c *compiler) selector(where, sel string) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		c.addf("%s: blank selector", where)
		return
	}
	if t, ok := strings.CutPrefix(sel, engine.TypeSelectorPrefix); ok {
		if !engine.RecommendationType(t).Valid() {
			c.addf("%s: selector %q names an unknown recommendation type", where, sel)
		}
	}
}

func (c *compiler) plans(key string, pds []PlanDoc) ([]engine.PlanTemplate, bool) {
	before := len(c.problems)
	key = strings.TrimSpace(key)
	where := "plans[" + key + "]"
	if key == "" {
		c.addf("plans: blank key")
	}
	if len(pds) == 0 {
		c.addf("%s: no phases", where)
	}
	out := make([]engine.PlanTemplate, 0, len(pds))
	for i, pd := range pds {
		pw := fmt.Sprintf("%s[%d]", where, i)
		phase := strings.TrimSpace(pd.Phase)
		if phase == "" {
			c.addf("%s: phase is required", pw)
		}
		pt := engine.PlanTemplate{Phase: phase, DependsOn: trimAll(pd.DependsOn)}
		for _, dep := range pt.DependsOn {
			if dep == phase {
				c.addf("%s: phase %s depends on itself", pw, phase)
			}
		}
		seenTasks := make(map[string]bool, len(pd.Tasks))
		for j, td := range pd.Tasks {
			tw := fmt.Sprintf("%s tasks[%d]", pw, j)
			id := strings.TrimSpace(td.ID)
			if id == "" {
				c.addf("%s: id is required", tw)
			} else if seenTasks[id] {
				c.addf("%s: duplicate task id %s", tw, id)
			}
			seenTasks[id] = true
			if td.EstimatedHours < 0 {
				c.addf("%s: estimatedHours must be non-negative", tw)
			}
			if strings.TrimSpace(td.Title) == "" {
				c.addf("%s: title is required", tw)
			}
			pt.Tasks = append(pt.Tasks, engine.TaskTemplate{
				ID:             id,
				Title:          c.template(tw+" title", td.Title),
				Description:    c.template(tw+" description", td.Description),
				EstimatedHours: td.EstimatedHours,
				Prerequisites:  trimAll(td.Prerequisites),
			})
		}
		out = append(out, pt)
	}
	return out, len(c.problems) == before
}

func trimAll(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if t := strings.TrimSpace(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}
