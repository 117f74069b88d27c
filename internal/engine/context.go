package engine

import (
	"fmt"
	"sort"
	"strings"
)

// SecurityLevel is ordered: standard < enhanced < maximum.
type SecurityLevel string

const (
	SecurityStandard SecurityLevel = "standard"
	SecurityEnhanced SecurityLevel = "enhanced"
	SecurityMaximum  SecurityLevel = "maximum"
)

// Rank returns the ordinal position of the level, 0 when unknown.
func (s SecurityLevel) Rank() int {
	switch s {
	case SecurityStandard:
		return 1
	case SecurityEnhanced:
		return 2
	case SecurityMaximum:
		return 3
	default:
		return 0
	}
}

// ParseSecurityLevel matches a level case-insensitively. Empty input means standard.
func ParseSecurityLevel(raw string) (SecurityLevel, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return SecurityStandard, nil
	}
	level := SecurityLevel(trimmed)
	if level.Rank() == 0 {
		return "", fmt.Errorf("must be one of standard, enhanced, maximum (got %q)", raw)
	}
	return level, nil
}

// Context is the normalized description of an organization's environment.
// Set-valued fields are deduplicated and sorted; treat values as read-only.
type Context struct {
	Industry                   string              `json:"industry"`
	OrganizationSize           int                 `json:"organizationSize"`
	ComplianceFrameworks       []string            `json:"complianceFrameworks"`
	PainPoints                 []string            `json:"painPoints"`
	ExistingVendors            map[string][]string `json:"existingVendors"`
	AuthenticationRequirements []string            `json:"authenticationRequirements"`
	SecurityLevel              SecurityLevel       `json:"securityLevel"`
	DeploymentType             string              `json:"deploymentType"`
}

// RawContext is the loosely typed input shape accepted from callers.
type RawContext struct {
	Industry                   string              `json:"industry" mapstructure:"industry"`
	OrganizationSize           any                 `json:"organizationSize" mapstructure:"organizationSize"`
	ComplianceFrameworks       []string            `json:"complianceFrameworks" mapstructure:"complianceFrameworks"`
	PainPoints                 []string            `json:"painPoints" mapstructure:"painPoints"`
	ExistingVendors            map[string][]string `json:"existingVendors" mapstructure:"existingVendors"`
	AuthenticationRequirements []string            `json:"authenticationRequirements" mapstructure:"authenticationRequirements"`
	SecurityLevel              string              `json:"securityLevel" mapstructure:"securityLevel"`
	DeploymentType             string              `json:"deploymentType" mapstructure:"deploymentType"`
}

// Vocabulary restricts free-text enum fields. Empty lists accept any non-blank value.
type Vocabulary struct {
	Industries      []string `json:"industries,omitempty" yaml:"industries,omitempty"`
	DeploymentTypes []string `json:"deploymentTypes,omitempty" yaml:"deploymentTypes,omitempty"`
}

// VendorCategories returns the existing vendor categories in sorted order.
func (c Context) VendorCategories() []string {
	out := make([]string, 0, len(c.ExistingVendors))
	for k := range c.ExistingVendors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AllVendors returns every existing vendor across categories, deduplicated and sorted.
func (c Context) AllVendors() []string {
	var all []string
	for _, cat := range c.VendorCategories() {
		all = append(all, c.ExistingVendors[cat]...)
	}
	return uniqueFold(all)
}

// Vendors returns the vendors for a category, matched case-insensitively.
func (c Context) Vendors(category string) []string {
	if v, ok := c.ExistingVendors[category]; ok {
		return v
	}
	for k, v := range c.ExistingVendors {
		if strings.EqualFold(k, category) {
			return v
		}
	}
	return nil
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}

// uniqueFold deduplicates case-insensitively (first spelling wins) and sorts.
func uniqueFold(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i]), strings.ToLower(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out
}
