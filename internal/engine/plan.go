package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Plan expands the selected recommendations into ordered checklist phases.
//
// Contribution order is the selection sorted the way Evaluate sorts
// recommendations (priority desc, id asc), so the same selection always yields
// the same checklist regardless of the order the caller sent it in. Within a
// phase, tasks keep contribution order except that a task is moved after any
// prerequisite living in the same phase.
//
// Cycles, dangling prerequisites, a task id claimed by two phases and template
// failures are returned as *PlannerError.
func Plan(c Context, selected []Recommendation, cat Catalog) (Checklist, error) {
	if err := ValidateSelection(selected); err != nil {
		return Checklist{}, err
	}
	out := Checklist{Phases: []Phase{}}
	if cat == nil || len(selected) == 0 {
		return out, nil
	}

	b := newPlanBuilder()
	for _, rec := range canonicalSelection(selected) {
		templates := cat.LookupPlanTemplates(rec.ID)
		if len(templates) == 0 {
			templates = cat.LookupPlanTemplates(string(rec.Type))
		}
		if len(templates) == 0 {
			out.Unplanned = append(out.Unplanned, rec.ID)
			continue
		}
		data := TemplateData{Context: c, RuleID: rec.RuleID, Recommendation: rec}
		for _, pt := range templates {
			if err := b.add(pt, data); err != nil {
				return Checklist{}, err
			}
		}
	}
	if err := b.checkPrerequisites(); err != nil {
		return Checklist{}, err
	}
	phases, err := b.order()
	if err != nil {
		return Checklist{}, err
	}
	out.Phases = phases
	return out, nil
}

// ValidateSelection rejects selected recommendations with blank ids or values
// outside the type and priority vocabularies.
func ValidateSelection(selected []Recommendation) error {
	verr := &ValidationError{}
	for i, rec := range selected {
		prefix := fmt.Sprintf("selected[%d]", i)
		if strings.TrimSpace(rec.ID) == "" {
			verr.add(prefix+".id", "is required")
		}
		if !rec.Type.Valid() {
			verr.add(prefix+".type", "unknown recommendation type %q", rec.Type)
		}
		if !rec.Priority.Valid() {
			verr.add(prefix+".priority", "unknown priority %q", rec.Priority)
		}
	}
	return verr.orNil()
}

func canonicalSelection(selected []Recommendation) []Recommendation {
	cands := make([]candidate, 0, len(selected))
	for i, rec := range selected {
		rec.ID = strings.TrimSpace(rec.ID)
		cands = append(cands, candidate{rec: rec, ruleID: rec.RuleID, position: i})
	}
	recs := dedupe(cands)
	sortRecommendations(recs)
	return recs
}

type taskBuild struct {
	task    Task
	prereqs map[string]bool
}

type phaseBuild struct {
	name      string
	dependsOn []string
	tasks     []*taskBuild
	byID      map[string]*taskBuild
}

type planBuilder struct {
	phases    []*phaseBuild
	byName    map[string]*phaseBuild
	taskPhase map[string]string
}

func newPlanBuilder() *planBuilder {
	return &planBuilder{
		byName:    make(map[string]*phaseBuild),
		taskPhase: make(map[string]string),
	}
}

func (b *planBuilder) add(pt PlanTemplate, data TemplateData) error {
	recID := data.Recommendation.ID
	name := strings.TrimSpace(pt.Phase)
	if name == "" {
		return &PlannerError{Kind: ErrTemplate, IDs: []string{recID}, Msg: fmt.Sprintf("recommendation %s: plan template has no phase", recID)}
	}
	ph, ok := b.byName[name]
	if !ok {
		ph = &phaseBuild{name: name, byID: make(map[string]*taskBuild)}
		b.byName[name] = ph
		b.phases = append(b.phases, ph)
	}
	for _, dep := range pt.DependsOn {
		dep = strings.TrimSpace(dep)
		if dep != "" && !containsExact(ph.dependsOn, dep) {
			ph.dependsOn = append(ph.dependsOn, dep)
		}
	}

	for _, tt := range pt.Tasks {
		id := strings.TrimSpace(tt.ID)
		if id == "" {
			return &PlannerError{Kind: ErrTemplate, IDs: []string{recID, name}, Msg: fmt.Sprintf("recommendation %s: task in phase %s has no id", recID, name)}
		}
		if owner, exists := b.taskPhase[id]; exists && owner != name {
			return &PlannerError{Kind: ErrDuplicateTask, IDs: []string{id, owner, name}, Msg: fmt.Sprintf("task %s is contributed to phases %s and %s", id, owner, name)}
		}
		if tt.EstimatedHours < 0 {
			return &PlannerError{Kind: ErrTemplate, IDs: []string{recID, id}, Msg: fmt.Sprintf("task %s has negative estimated hours", id)}
		}
		title, err := tt.Title.Render(data)
		if err != nil {
			return &PlannerError{Kind: ErrTemplate, IDs: []string{recID, id}, Msg: fmt.Sprintf("task %s title: %v", id, err)}
		}
		desc, err := tt.Description.Render(data)
		if err != nil {
			return &PlannerError{Kind: ErrTemplate, IDs: []string{recID, id}, Msg: fmt.Sprintf("task %s description: %v", id, err)}
		}

		b.taskPhase[id] = name
		existing, ok := ph.byID[id]
		if !ok {
			tb := &taskBuild{
				task: Task{
					ID:             id,
					Title:          title,
					Description:    desc,
					EstimatedHours: tt.EstimatedHours,
				},
				prereqs: make(map[string]bool),
			}
			tb.addPrereqs(tt.Prerequisites)
			ph.byID[id] = tb
			ph.tasks = append(ph.tasks, tb)
			continue
		}
		existing.merge(title, desc, tt.EstimatedHours, tt.Prerequisites)
	}
	return nil
}

// merge folds a second contribution of the same task: the longer description
// wins (ties go to the later one), hours take the maximum, prerequisites union.
func (t *taskBuild) merge(title, desc string, hours float64, prereqs []string) {
	if t.task.Title == "" {
		t.task.Title = title
	}
	if desc != "" && len(desc) >= len(t.task.Description) {
		t.task.Description = desc
	}
	if hours > t.task.EstimatedHours {
		t.task.EstimatedHours = hours
	}
	t.addPrereqs(prereqs)
}

func (t *taskBuild) addPrereqs(prereqs []string) {
	for _, p := range prereqs {
		p = strings.TrimSpace(p)
		if p == "" || t.prereqs[p] {
			continue
		}
		t.prereqs[p] = true
		t.task.Prerequisites = append(t.task.Prerequisites, p)
	}
}

func (b *planBuilder) checkPrerequisites() error {
	var dangling []string
	for _, ph := range b.phases {
		for _, tb := range ph.tasks {
			for _, p := range tb.task.Prerequisites {
				if p == tb.task.ID {
					return &PlannerError{Kind: ErrDependencyCycle, IDs: []string{p}, Msg: fmt.Sprintf("task %s lists itself as a prerequisite", p)}
				}
				if _, ok := b.taskPhase[p]; !ok {
					dangling = append(dangling, tb.task.ID+"->"+p)
				}
			}
		}
	}
	if len(dangling) > 0 {
		sort.Strings(dangling)
		return &PlannerError{Kind: ErrDanglingPrerequisite, IDs: dangling}
	}
	return nil
}

func (b *planBuilder) order() ([]Phase, error) {
	names := make([]string, 0, len(b.phases))
	for _, ph := range b.phases {
		names = append(names, ph.name)
	}
	g := newDepGraph(names)
	resolved := make(map[string][]string, len(b.phases))
	for _, ph := range b.phases {
		for _, dep := range ph.dependsOn {
			if _, ok := b.byName[dep]; ok {
				g.addEdge(dep, ph.name)
				resolved[ph.name] = appendUnique(resolved[ph.name], dep)
			}
		}
		for _, tb := range ph.tasks {
			for _, p := range tb.task.Prerequisites {
				if owner := b.taskPhase[p]; owner != ph.name {
					g.addEdge(owner, ph.name)
					resolved[ph.name] = appendUnique(resolved[ph.name], owner)
				}
			}
		}
	}

	order, cycle := g.sort()
	if cycle != nil {
		return nil, &PlannerError{
			Kind: ErrDependencyCycle,
			IDs:  uniqueSorted(cycle),
			Msg:  "phases " + strings.Join(cycle, " -> "),
		}
	}

	out := make([]Phase, 0, len(order))
	for _, name := range order {
		ph := b.byName[name]
		tasks, err := ph.orderedTasks()
		if err != nil {
			return nil, err
		}
		deps := append([]string{}, resolved[name]...)
		sort.Strings(deps)
		out = append(out, Phase{Name: name, Tasks: tasks, DependsOn: deps})
	}
	return out, nil
}

func (ph *phaseBuild) orderedTasks() ([]Task, error) {
	ids := make([]string, 0, len(ph.tasks))
	for _, tb := range ph.tasks {
		ids = append(ids, tb.task.ID)
	}
	g := newDepGraph(ids)
	for _, tb := range ph.tasks {
		for _, p := range tb.task.Prerequisites {
			g.addEdge(p, tb.task.ID)
		}
	}
	order, cycle := g.sort()
	if cycle != nil {
		return nil, &PlannerError{
			Kind: ErrDependencyCycle,
			IDs:  uniqueSorted(cycle),
			Msg:  fmt.Sprintf("tasks in phase %s: %s", ph.name, strings.Join(cycle, " -> ")),
		}
	}
	out := make([]Task, 0, len(order))
	for _, id := range order {
		t := ph.byID[id].task
		prereqs := append([]string{}, t.Prerequisites...)
		sort.Strings(prereqs)
		t.Prerequisites = prereqs
		out = append(out, t)
	}
	return out, nil
}

func containsExact(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func appendUnique(items []string, v string) []string {
	if containsExact(items, v) {
		return items
	}
	return append(items, v)
}
