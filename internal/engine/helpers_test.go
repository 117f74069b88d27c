package engine

// testCatalog is a minimal in-memory Catalog. Rules are iterated in the order
// given so tests can check that order does not leak into results.
type testCatalog struct {
	rules     []Rule
	conflicts []ConflictRule
	plans     map[string][]PlanTemplate
	vocab     Vocabulary
}

func (c *testCatalog) Version() string { return "test" }

func (c *testCatalog) ForEachRule(fn func(Rule) error) error {
	for _, r := range c.rules {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (c *testCatalog) ForEachConflict(fn func(ConflictRule) error) error {
	for _, cr := range c.conflicts {
		if err := fn(cr); err != nil {
			return err
		}
	}
	return nil
}

func (c *testCatalog) LookupPlanTemplates(key string) []PlanTemplate {
	return c.plans[key]
}

func (c *testCatalog) Vocabulary() Vocabulary { return c.vocab }

func always() Predicate {
	return PredicateFunc(func(Context) (bool, error) { return true, nil })
}

func rec(id string, typ RecommendationType, p Priority, title string) RecommendationTemplate {
	return RecommendationTemplate{
		ID:        id,
		Type:      typ,
		Priority:  p,
		Title:     MustTemplate(title),
		Reasoning: MustTemplate("because"),
	}
}

func task(id string, hours float64, prereqs ...string) TaskTemplate {
	return TaskTemplate{
		ID:             id,
		Title:          MustTemplate(id),
		Description:    MustTemplate("do " + id),
		EstimatedHours: hours,
		Prerequisites:  prereqs,
	}
}

func healthcareContext() Context {
	return Context{
		Industry:             "Healthcare",
		OrganizationSize:     500,
		ComplianceFrameworks: []string{"HIPAA"},
		PainPoints:           []string{"Shadow IT"},
		ExistingVendors: map[string][]string{
			"NAC": {"Cisco ISE"},
			"MDM": {"Intune"},
		},
		AuthenticationRequirements: []string{"802.1X", "TACACS+"},
		SecurityLevel:              SecurityEnhanced,
		DeploymentType:             "hybrid",
	}
}
