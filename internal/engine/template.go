package engine

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"has":   containsFold,
}

// Template is a compiled text template that binds context values into catalog text.
// The zero value renders as an empty string.
type Template struct {
	raw  string
	tmpl *template.Template
}

// ParseTemplate compiles raw. Text without actions is stored verbatim.
func ParseTemplate(name, raw string) (Template, error) {
	if !strings.Contains(raw, "{{") {
		return Template{raw: raw}, nil
	}
	t, err := template.New(name).Option("missingkey=error").Funcs(templateFuncs).Parse(raw)
	if err != nil {
		return Template{}, fmt.Errorf("parse template %s: %w", name, err)
	}
	return Template{raw: raw, tmpl: t}, nil
}

// MustTemplate is ParseTemplate for static text in tests and Go-defined catalogs.
func MustTemplate(raw string) Template {
	t, err := ParseTemplate("inline", raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Raw returns the source text.
func (t Template) Raw() string {
	return t.raw
}

// Render executes the template against data.
func (t Template) Render(data any) (string, error) {
	if t.tmpl == nil {
		return t.raw, nil
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// TemplateData is what catalog templates see: the context fields at the top level,
// the values that matched the predicate, and for plan templates the recommendation.
type TemplateData struct {
	Context
	Matched        []string
	Related        []string
	RuleID         string
	Recommendation Recommendation
}
