package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Predicate decides whether a rule applies. Positive set matches may be
// recorded in m so templates can reference the triggering values.
type Predicate interface {
	Eval(c Context, m *Matches) (bool, error)
}

// PredicateFunc adapts a Go function to Predicate.
type PredicateFunc func(c Context) (bool, error)

// Eval calls f.
func (f PredicateFunc) Eval(c Context, _ *Matches) (bool, error) {
	return f(c)
}

// Matches collects the context values that satisfied a predicate.
type Matches struct {
	values []string
}

func (m *Matches) add(values ...string) {
	if m == nil {
		return
	}
	m.values = append(m.values, values...)
}

// Values returns the recorded values, deduplicated and sorted.
func (m *Matches) Values() []string {
	if m == nil {
		return nil
	}
	return uniqueFold(m.values)
}

// Operators understood by Condition.
const (
	OpEq          = "eq"
	OpNe          = "ne"
	OpIn          = "in"
	OpContains    = "contains"
	OpContainsAny = "containsAny"
	OpContainsAll = "containsAll"
	OpEmpty       = "empty"
	OpNotEmpty    = "notEmpty"
	OpGt          = "gt"
	OpGte         = "gte"
	OpLt          = "lt"
	OpLte         = "lte"
)

// Fields addressable by Condition. existingVendors also accepts "existingVendors.<category>".
const (
	FieldIndustry                   = "industry"
	FieldOrganizationSize           = "organizationSize"
	FieldComplianceFrameworks       = "complianceFrameworks"
	FieldPainPoints                 = "painPoints"
	FieldExistingVendors            = "existingVendors"
	FieldAuthenticationRequirements = "authenticationRequirements"
	FieldSecurityLevel              = "securityLevel"
	FieldDeploymentType             = "deploymentType"
)

var errEmptyCondition = errors.New("condition has no field and no combinator")

// Condition is a declarative predicate. Exactly one of All, Any, Not or Field is set.
type Condition struct {
	All    []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any    []Condition `json:"any,omitempty" yaml:"any,omitempty"`
	Not    *Condition  `json:"not,omitempty" yaml:"not,omitempty"`
	Field  string      `json:"field,omitempty" yaml:"field,omitempty"`
	Op     string      `json:"op,omitempty" yaml:"op,omitempty"`
	Value  any         `json:"value,omitempty" yaml:"value,omitempty"`
	Values []string    `json:"values,omitempty" yaml:"values,omitempty"`
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindOrdinal
	kindSet
)

func fieldKindOf(field string) (fieldKind, bool) {
	switch field {
	case FieldIndustry, FieldDeploymentType:
		return kindString, true
	case FieldOrganizationSize:
		return kindNumber, true
	case FieldSecurityLevel:
		return kindOrdinal, true
	case FieldComplianceFrameworks, FieldPainPoints, FieldAuthenticationRequirements, FieldExistingVendors:
		return kindSet, true
	}
	if cat, ok := strings.CutPrefix(field, FieldExistingVendors+"."); ok && strings.TrimSpace(cat) != "" {
		return kindSet, true
	}
	return 0, false
}

func opAllowed(kind fieldKind, op string) bool {
	switch op {
	case OpEq, OpNe, OpIn:
		return kind != kindSet
	case OpContains, OpContainsAny, OpContainsAll:
		return kind == kindSet
	case OpEmpty, OpNotEmpty:
		return kind == kindSet || kind == kindString
	case OpGt, OpGte, OpLt, OpLte:
		return kind == kindNumber || kind == kindOrdinal
	default:
		return false
	}
}

// Validate checks structure, field names, operators and operand types.
func (c Condition) Validate() error {
	combinators := 0
	if len(c.All) > 0 {
		combinators++
	}
	if len(c.Any) > 0 {
		combinators++
	}
	if c.Not != nil {
		combinators++
	}
	if combinators > 1 || (combinators == 1 && c.Field != "") {
		return fmt.Errorf("condition mixes combinators and field %q", c.Field)
	}
	for i, sub := range c.All {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("all[%d]: %w", i, err)
		}
	}
	for i, sub := range c.Any {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("any[%d]: %w", i, err)
		}
	}
	if c.Not != nil {
		if err := c.Not.Validate(); err != nil {
			return fmt.Errorf("not: %w", err)
		}
	}
	if combinators == 1 {
		return nil
	}
	if c.Field == "" {
		return errEmptyCondition
	}
	kind, ok := fieldKindOf(c.Field)
	if !ok {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	if !opAllowed(kind, c.Op) {
		return fmt.Errorf("operator %q is not supported for field %q", c.Op, c.Field)
	}
	switch c.Op {
	case OpIn, OpContainsAny, OpContainsAll:
		if len(c.Values) == 0 {
			return fmt.Errorf("operator %q on %q requires values", c.Op, c.Field)
		}
	case OpEmpty, OpNotEmpty:
	default:
		if c.Value == nil {
			return fmt.Errorf("operator %q on %q requires a value", c.Op, c.Field)
		}
	}
	if kind == kindNumber && c.Value != nil {
		if _, err := toFloat(c.Value); err != nil {
			return fmt.Errorf("field %q: %w", c.Field, err)
		}
	}
	if kind == kindOrdinal && c.Value != nil {
		if _, err := ParseSecurityLevel(fmt.Sprint(c.Value)); err != nil {
			return fmt.Errorf("field %q: %w", c.Field, err)
		}
	}
	return nil
}

// Eval evaluates the condition against c.
func (c Condition) Eval(ctx Context, m *Matches) (bool, error) {
	switch {
	case len(c.All) > 0:
		// Matches from every branch are kept only when the whole conjunction holds.
		local := &Matches{}
		for _, sub := range c.All {
			ok, err := sub.Eval(ctx, local)
			if err != nil || !ok {
				return false, err
			}
		}
		m.add(local.values...)
		return true, nil
	case len(c.Any) > 0:
		matched := false
		for _, sub := range c.Any {
			ok, err := sub.Eval(ctx, m)
			if err != nil {
				return false, err
			}
			matched = matched || ok
		}
		return matched, nil
	case c.Not != nil:
		ok, err := c.Not.Eval(ctx, nil)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return c.evalLeaf(ctx, m)
}

func (c Condition) evalLeaf(ctx Context, m *Matches) (bool, error) {
	kind, ok := fieldKindOf(c.Field)
	if !ok {
		return false, fmt.Errorf("unknown field %q", c.Field)
	}
	switch kind {
	case kindString:
		return c.evalString(stringField(ctx, c.Field), m)
	case kindNumber:
		return c.evalNumber(float64(ctx.OrganizationSize))
	case kindOrdinal:
		return c.evalOrdinal(ctx.SecurityLevel, m)
	default:
		return c.evalSet(setField(ctx, c.Field), m)
	}
}

func (c Condition) evalString(actual string, m *Matches) (bool, error) {
	switch c.Op {
	case OpEq:
		ok := strings.EqualFold(actual, fmt.Sprint(c.Value))
		if ok {
			m.add(actual)
		}
		return ok, nil
	case OpNe:
		return !strings.EqualFold(actual, fmt.Sprint(c.Value)), nil
	case OpIn:
		ok := containsFold(c.Values, actual)
		if ok {
			m.add(actual)
		}
		return ok, nil
	case OpEmpty:
		return actual == "", nil
	case OpNotEmpty:
		return actual != "", nil
	}
	return false, fmt.Errorf("operator %q is not supported for field %q", c.Op, c.Field)
}

func (c Condition) evalNumber(actual float64) (bool, error) {
	if c.Op == OpIn {
		for _, v := range c.Values {
			want, err := toFloat(v)
			if err != nil {
				return false, fmt.Errorf("field %q: %w", c.Field, err)
			}
			if actual == want {
				return true, nil
			}
		}
		return false, nil
	}
	want, err := toFloat(c.Value)
	if err != nil {
		return false, fmt.Errorf("field %q: %w", c.Field, err)
	}
	return compare(c.Op, actual, want)
}

func (c Condition) evalOrdinal(actual SecurityLevel, m *Matches) (bool, error) {
	if c.Op == OpIn {
		ok := containsFold(c.Values, string(actual))
		if ok {
			m.add(string(actual))
		}
		return ok, nil
	}
	want, err := ParseSecurityLevel(fmt.Sprint(c.Value))
	if err != nil {
		return false, fmt.Errorf("field %q: %w", c.Field, err)
	}
	ok, err := compare(c.Op, float64(actual.Rank()), float64(want.Rank()))
	if ok {
		m.add(string(actual))
	}
	return ok, err
}

func (c Condition) evalSet(actual []string, m *Matches) (bool, error) {
	switch c.Op {
	case OpContains:
		want := fmt.Sprint(c.Value)
		if containsFold(actual, want) {
			m.add(canonicalIn(actual, want))
			return true, nil
		}
		return false, nil
	case OpContainsAny:
		var hits []string
		for _, v := range c.Values {
			if containsFold(actual, v) {
				hits = append(hits, canonicalIn(actual, v))
			}
		}
		m.add(hits...)
		return len(hits) > 0, nil
	case OpContainsAll:
		hits := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			if !containsFold(actual, v) {
				return false, nil
			}
			hits = append(hits, canonicalIn(actual, v))
		}
		m.add(hits...)
		return true, nil
	case OpEmpty:
		return len(actual) == 0, nil
	case OpNotEmpty:
		if len(actual) > 0 {
			m.add(actual...)
			return true, nil
		}
		return false, nil
	}
	return false, fmt.Errorf("operator %q is not supported for field %q", c.Op, c.Field)
}

func stringField(ctx Context, field string) string {
	if field == FieldIndustry {
		return ctx.Industry
	}
	return ctx.DeploymentType
}

func setField(ctx Context, field string) []string {
	switch field {
	case FieldComplianceFrameworks:
		return ctx.ComplianceFrameworks
	case FieldPainPoints:
		return ctx.PainPoints
	case FieldAuthenticationRequirements:
		return ctx.AuthenticationRequirements
	case FieldExistingVendors:
		return ctx.AllVendors()
	}
	cat := strings.TrimPrefix(field, FieldExistingVendors+".")
	return ctx.Vendors(cat)
}

func canonicalIn(set []string, value string) string {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return s
		}
	}
	return value
}

func compare(op string, actual, want float64) (bool, error) {
	switch op {
	case OpEq:
		return actual == want, nil
	case OpNe:
		return actual != want, nil
	case OpGt:
		return actual > want, nil
	case OpGte:
		return actual >= want, nil
	case OpLt:
		return actual < want, nil
	case OpLte:
		return actual <= want, nil
	}
	return false, fmt.Errorf("operator %q is not a comparison", op)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, fmt.Errorf("value %q is not a number", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("value %v (%T) is not a number", v, v)
}
