package catalog

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
)

func loadFixture(t *testing.T) *Static {
	t.Helper()
	doc, err := ParseFile(filepath.Join("testdata", "catalog.yaml"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	cat, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return cat
}

func fixtureContext(t *testing.T, cat *Static) engine.Context {
	t.Helper()
	n := engine.Normalizer{Vocabulary: cat.Vocabulary()}
	c, err := n.DecodeAndNormalize(map[string]any{
		"industry":                   "Healthcare",
		"organizationSize":           500,
		"complianceFrameworks":       []any{"HIPAA"},
		"painPoints":                 []any{"Shadow IT"},
		"existingVendors":            map[string]any{"NAC": []any{"Cisco ISE"}},
		"authenticationRequirements": []any{"802.1X", "TACACS+"},
		"securityLevel":              "enhanced",
		"deploymentType":             "hybrid",
	})
	if err != nil {
		t.Fatalf("DecodeAndNormalize: %v", err)
	}
	return c
}

func TestFixtureEvaluatesAndPlans(t *testing.T) {
	cat := loadFixture(t)
	if cat.Version() != "2026.10-demo" {
		t.Fatalf("unexpected version %q", cat.Version())
	}

	eval := engine.Evaluate(fixtureContext(t, cat), cat)
	if len(eval.Failures) != 0 {
		t.Fatalf("unexpected failures %+v", eval.Failures)
	}
	var ids []string
	for _, r := range eval.Recommendations {
		ids = append(ids, r.ID)
	}
	if got := strings.Join(ids, ","); got != "hipaa-segmentation,cloud-nac,tacacs-admin" {
		t.Fatalf("unexpected recommendations %s", got)
	}
	if !strings.Contains(eval.Recommendations[0].Reasoning, "HIPAA") {
		t.Fatalf("expected HIPAA in reasoning, got %q", eval.Recommendations[0].Reasoning)
	}
	if !strings.Contains(eval.Recommendations[1].Reasoning, "Cisco ISE") {
		t.Fatalf("expected vendor in reasoning, got %q", eval.Recommendations[1].Reasoning)
	}
	if len(eval.Blockers) != 0 {
		t.Fatalf("expected no blockers, got %+v", eval.Blockers)
	}

	checklist, err := engine.Plan(fixtureContext(t, cat), eval.Recommendations, cat)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	var phases []string
	for _, p := range checklist.Phases {
		phases = append(phases, p.Name)
	}
	if got := strings.Join(phases, ","); got != "Planning,Deployment,Testing" && got != "Planning,Testing,Deployment" {
		t.Fatalf("unexpected phases %s", got)
	}
	if checklist.Phases[0].Name != "Planning" {
		t.Fatalf("Planning must come first, got %s", checklist.Phases[0].Name)
	}
}

func TestConflictFiresForOnPremCloudNAC(t *testing.T) {
	cat := loadFixture(t)
	n := engine.Normalizer{Vocabulary: cat.Vocabulary()}
	c, err := n.DecodeAndNormalize(map[string]any{
		"industry":         "Retail",
		"organizationSize": 2000,
		"painPoints":       []any{"Complex upgrades"},
		"existingVendors":  map[string]any{"NAC": []any{"Aruba ClearPass"}},
		"securityLevel":    "maximum",
		"deploymentType":   "on-premise",
	})
	if err != nil {
		t.Fatalf("DecodeAndNormalize: %v", err)
	}

	eval := engine.Evaluate(c, cat)
	codes := make([]string, 0, len(eval.Blockers))
	for _, b := range eval.Blockers {
		codes = append(codes, b.Code)
	}
	got := strings.Join(codes, ",")
	if !strings.Contains(got, "air-gap") || !strings.Contains(got, "deployment-mismatch") {
		t.Fatalf("expected both blockers, got %s", got)
	}
}

func TestVocabularyRejectsUnknownDeploymentType(t *testing.T) {
	cat := loadFixture(t)
	n := engine.Normalizer{Vocabulary: cat.Vocabulary()}
	_, err := n.DecodeAndNormalize(map[string]any{
		"industry":         "Retail",
		"organizationSize": 10,
		"deploymentType":   "mainframe",
	})
	var verr *engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseRejectsUnknownKeysAndEmptyInput(t *testing.T) {
	if _, err := Parse([]byte("  \n")); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if _, err := Parse([]byte("version: x\nrulez: []\n")); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestParseAcceptsJSON(t *testing.T) {
	doc, err := Parse([]byte(`{"version":"j1","rules":[{"id":"r","when":{"field":"industry","op":"eq","value":"Retail"},"recommendations":[{"id":"a","type":"use_case","priority":"low","title":"A"}]}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cat, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if cat.Version() != "j1" || cat.Stats().Rules != 1 {
		t.Fatalf("unexpected catalog %+v", cat.Stats())
	}
}

func TestChecksumIgnoresFormatting(t *testing.T) {
	yamlDoc, err := Parse([]byte("version: v\nrules:\n  - id: r\n    when: {field: industry, op: eq, value: Retail}\n    blockers:\n      - message: m\n"))
	if err != nil {
		t.Fatalf("Parse yaml: %v", err)
	}
	jsonDoc, err := Parse([]byte(`{"rules":[{"blockers":[{"message":"m"}],"id":"r","when":{"value":"Retail","op":"eq","field":"industry"}}],"version":"v"}`))
	if err != nil {
		t.Fatalf("Parse json: %v", err)
	}
	a, _ := yamlDoc.Checksum()
	b, _ := jsonDoc.Checksum()
	if a != b {
		t.Fatalf("checksums differ: %s vs %s", a, b)
	}
}

func TestCompileDefaultsVersionToChecksum(t *testing.T) {
	doc := Document{Rules: []RuleDoc{{
		ID:       "r",
		When:     engine.Condition{Field: engine.FieldIndustry, Op: engine.OpNotEmpty},
		Blockers: []BlockerDoc{{Message: "m"}},
	}}}
	cat, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.HasPrefix(cat.Version(), "sha256:") || len(cat.Version()) != len("sha256:")+12 {
		t.Fatalf("unexpected version %q", cat.Version())
	}
	if !strings.HasPrefix(cat.Checksum(), strings.TrimPrefix(cat.Version(), "sha256:")) {
		t.Fatalf("version %q does not match checksum %q", cat.Version(), cat.Checksum())
	}
}

func TestCompileReportsEveryProblem(t *testing.T) {
	leaf := engine.Condition{Field: engine.FieldIndustry, Op: engine.OpEq, Value: "Retail"}
	doc := Document{
		Rules: []RuleDoc{
			{ID: "dup", When: leaf, Blockers: []BlockerDoc{{Message: "m"}}},
			{ID: "dup", When: leaf, Blockers: []BlockerDoc{{Message: "m"}}},
			{ID: "bad-field", When: engine.Condition{Field: "budget", Op: engine.OpEq, Value: 1}, Blockers: []BlockerDoc{{Message: "m"}}},
			{ID: "empty", When: leaf},
			{ID: "bad-rec", When: leaf, Recommendations: []RecommendationDoc{{ID: "x", Type: "gadget", Priority: "urgent", Title: "{{.Nope"}}},
		},
		Conflicts: []ConflictDoc{
			{ID: "no-selectors", Blocker: BlockerDoc{Message: "m"}},
			{ID: "bad-type", IfAll: []string{"type:gadget"}, Blocker: BlockerDoc{Message: "m"}},
		},
		Plans: map[string][]PlanDoc{
			"x": {{Phase: "Deployment", DependsOn: []string{"Deployment"}, Tasks: []TaskDoc{
				{ID: "t", Title: "T", EstimatedHours: -1},
				{ID: "t", Title: "T"},
			}}},
		},
	}

	_, err := Compile(doc)
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CompileError, got %v", err)
	}

	wants := []string{
		"rule dup: duplicate rule id",
		`rule bad-field: when: unknown field "budget"`,
		"rule empty: produces neither recommendations nor blockers",
		`unknown recommendation type "gadget"`,
		`unknown priority "urgent"`,
		"rule bad-rec recommendations[0] title",
		"conflict no-selectors: needs at least one ifAll or ifAny selector",
		`conflict bad-type: selector "type:gadget" names an unknown recommendation type`,
		"phase Deployment depends on itself",
		"estimatedHours must be non-negative",
		"duplicate task id t",
	}
	joined := strings.Join(cerr.Problems, "\n")
	for _, want := range wants {
		if !strings.Contains(joined, want) {
			t.Errorf("missing problem %q in:\n%s", want, joined)
		}
	}
}

func TestStaticIteratesRulesByID(t *testing.T) {
	cat := loadFixture(t)
	var ids []string
	_ = cat.ForEachRule(func(r engine.Rule) error {
		ids = append(ids, r.ID)
		return nil
	})
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("rules not sorted: %v", ids)
		}
	}

	stats := cat.Stats()
	if stats.Rules != 5 || stats.Conflicts != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if strings.Join(stats.PlanKeys, ",") != "hipaa-segmentation,tacacs-admin,vendor" {
		t.Fatalf("unexpected plan keys %v", stats.PlanKeys)
	}
}

func TestLintFixture(t *testing.T) {
	issues := Lint(loadFixture(t))
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", issues)
	}
	if !errors.Is(issues[0], ErrNoPlanTemplate) || !strings.Contains(issues[0].Error(), "phased-rollout") {
		t.Fatalf("unexpected issue %v", issues[0])
	}
}

func TestLintFindsCrossTemplateProblems(t *testing.T) {
	leaf := engine.Condition{Field: engine.FieldIndustry, Op: engine.OpNotEmpty}
	doc := Document{
		Rules: []RuleDoc{{ID: "r", When: leaf, Recommendations: []RecommendationDoc{
			{ID: "a", Type: "use_case", Priority: "high", Title: "A"},
			{ID: "b", Type: "use_case", Priority: "high", Title: "B"},
		}}},
		Plans: map[string][]PlanDoc{
			"a": {{Phase: "Testing", DependsOn: []string{"Deployment"}, Tasks: []TaskDoc{{ID: "test", Title: "Test"}}}},
			"b": {{Phase: "Deployment", DependsOn: []string{"Testing"}, Tasks: []TaskDoc{{ID: "deploy", Title: "Deploy"}}}},
		},
	}
	cat, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	issues := Lint(cat)
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", issues)
	}
	var perr *engine.PlannerError
	if !errors.As(issues[0], &perr) || !errors.Is(perr, engine.ErrDependencyCycle) {
		t.Fatalf("expected dependency cycle, got %v", issues[0])
	}
}

func TestLintNilCatalog(t *testing.T) {
	issues := Lint(nil)
	if len(issues) != 1 || !errors.Is(issues[0], ErrNoCatalog) {
		t.Fatalf("unexpected issues %v", issues)
	}
}
