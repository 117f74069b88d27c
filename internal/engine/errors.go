package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDependencyCycle      = errors.New("dependency cycle")
	ErrDanglingPrerequisite = errors.New("dangling prerequisite")
	ErrDuplicateTask        = errors.New("duplicate task")
	ErrTemplate             = errors.New("template render failed")
)

// FieldError names a single offending input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"issue"`
}

// ValidationError reports malformed or out-of-vocabulary input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("invalid context: %s: %s", e.Fields[0].Field, e.Fields[0].Reason)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("invalid context: %d errors: %s", len(e.Fields), strings.Join(parts, "; "))
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	sort.SliceStable(e.Fields, func(i, j int) bool {
		return e.Fields[i].Field < e.Fields[j].Field
	})
	return e
}

// PlannerError is a structural integrity violation found while planning.
// IDs carries the offending phase/task ids so the catalog can be corrected.
type PlannerError struct {
	Kind error
	IDs  []string
	Msg  string
}

func (e *PlannerError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("plan: %v: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("plan: %v: %s", e.Kind, strings.Join(e.IDs, ", "))
}

func (e *PlannerError) Unwrap() error {
	return e.Kind
}

// FailureKind distinguishes where a non-fatal rule failure happened.
type FailureKind string

const (
	FailurePredicate FailureKind = "predicate"
	FailureTemplate  FailureKind = "template"
	FailureConflict  FailureKind = "conflict"
)

// RuleFailure records a rule that could not be evaluated. It never aborts a run.
type RuleFailure struct {
	RuleID string      `json:"ruleId"`
	Kind   FailureKind `json:"kind"`
	Err    string      `json:"error"`
}

func (f RuleFailure) Error() string {
	return fmt.Sprintf("rule %s (%s): %s", f.RuleID, f.Kind, f.Err)
}
