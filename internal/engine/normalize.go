package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Normalizer validates raw input into a Context.
type Normalizer struct {
	Vocabulary Vocabulary
}

// DecodeAndNormalize decodes a generic JSON object and normalizes it.
// Unknown keys are rejected by name.
func (n Normalizer) DecodeAndNormalize(input map[string]any) (Context, error) {
	verr := &ValidationError{}
	if input == nil {
		verr.add("context", "is required")
		return Context{}, verr
	}

	var raw RawContext
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &raw,
		Metadata:   &md,
		DecodeHook: mapstructure.DecodeHookFuncType(scalarToSet),
	})
	if err != nil {
		return Context{}, fmt.Errorf("build context decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) {
			for _, msg := range merr.Errors {
				verr.add(fieldFromDecodeError(msg), "%s", msg)
			}
		} else {
			verr.add("context", "%v", err)
		}
	}
	unused := append([]string(nil), md.Unused...)
	sort.Strings(unused)
	for _, key := range unused {
		verr.add(key, "unknown field")
	}
	if len(verr.Fields) > 0 {
		return Context{}, verr.orNil()
	}
	return n.Normalize(raw)
}

var stringSliceType = reflect.TypeOf([]string(nil))

// scalarToSet lets a set field be given as one string. Every other type
// mismatch is left to the decoder, which reports it.
func scalarToSet(from, to reflect.Type, data any) (any, error) {
	if to == stringSliceType && from.Kind() == reflect.String {
		return []string{reflect.ValueOf(data).String()}, nil
	}
	return data, nil
}

// Normalize canonicalizes raw input. It never returns a partially valid Context.
func (n Normalizer) Normalize(raw RawContext) (Context, error) {
	verr := &ValidationError{}
	c := Context{}

	c.Industry = strings.TrimSpace(raw.Industry)
	if c.Industry == "" {
		verr.add("industry", "is required")
	} else if canonical, ok := matchVocabulary(c.Industry, n.Vocabulary.Industries); ok {
		c.Industry = canonical
	} else {
		verr.add("industry", "%q is not a known industry", c.Industry)
	}

	size, err := coerceSize(raw.OrganizationSize)
	if err != nil {
		verr.add("organizationSize", "%v", err)
	}
	c.OrganizationSize = size

	level, err := ParseSecurityLevel(raw.SecurityLevel)
	if err != nil {
		verr.add("securityLevel", "%v", err)
	}
	c.SecurityLevel = level

	c.DeploymentType = strings.TrimSpace(raw.DeploymentType)
	if c.DeploymentType != "" {
		if canonical, ok := matchVocabulary(c.DeploymentType, n.Vocabulary.DeploymentTypes); ok {
			c.DeploymentType = canonical
		} else {
			verr.add("deploymentType", "%q is not a known deployment type", c.DeploymentType)
		}
	}

	c.ComplianceFrameworks = normalizeSet("complianceFrameworks", raw.ComplianceFrameworks, verr)
	c.PainPoints = normalizeSet("painPoints", raw.PainPoints, verr)
	c.AuthenticationRequirements = normalizeSet("authenticationRequirements", raw.AuthenticationRequirements, verr)
	c.ExistingVendors = normalizeVendors(raw.ExistingVendors, verr)

	if err := verr.orNil(); err != nil {
		return Context{}, err
	}
	return c, nil
}

func normalizeSet(field string, values []string, verr *ValidationError) []string {
	trimmed := make([]string, 0, len(values))
	for i, v := range values {
		t := strings.TrimSpace(v)
		if t == "" {
			verr.add(fmt.Sprintf("%s[%d]", field, i), "must not be blank")
			continue
		}
		trimmed = append(trimmed, t)
	}
	return uniqueFold(trimmed)
}

func normalizeVendors(raw map[string][]string, verr *ValidationError) map[string][]string {
	out := make(map[string][]string, len(raw))
	if len(raw) == 0 {
		return out
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := make(map[string]string, len(keys))
	for _, k := range keys {
		cat := strings.TrimSpace(k)
		if cat == "" {
			verr.add("existingVendors", "category name must not be blank")
			continue
		}
		field := "existingVendors." + cat
		vendors := normalizeSet(field, raw[k], verr)
		lower := strings.ToLower(cat)
		if existing, ok := canonical[lower]; ok {
			out[existing] = uniqueFold(append(out[existing], vendors...))
			continue
		}
		canonical[lower] = cat
		out[cat] = vendors
	}
	return out
}

func matchVocabulary(value string, allowed []string) (string, bool) {
	if len(allowed) == 0 {
		return value, true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), value) {
			return strings.TrimSpace(a), true
		}
	}
	return "", false
}

func coerceSize(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return checkSize(int64(n))
	case int32:
		return checkSize(int64(n))
	case int64:
		return checkSize(n)
	case uint:
		return checkSize(int64(n))
	case uint32:
		return checkSize(int64(n))
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("is too large")
		}
		return checkSize(int64(n))
	case float32:
		return checkFloatSize(float64(n))
	case float64:
		return checkFloatSize(n)
	case json.Number:
		return coerceSizeString(n.String())
	case string:
		return coerceSizeString(n)
	default:
		return 0, fmt.Errorf("must be a number (got %T)", v)
	}
}

func coerceSizeString(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return checkSize(i)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("must be a number (got %q)", s)
	}
	return checkFloatSize(f)
}

func checkFloatSize(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("must be a whole number (got %v)", f)
	}
	if f > math.MaxInt32 {
		return 0, fmt.Errorf("is too large")
	}
	return checkSize(int64(f))
}

func checkSize(n int64) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("must be non-negative (got %d)", n)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("is too large")
	}
	return int(n), nil
}

// fieldFromDecodeError extracts the quoted field name mapstructure puts first in its messages.
func fieldFromDecodeError(msg string) string {
	start := strings.IndexByte(msg, '\'')
	if start < 0 {
		return "context"
	}
	end := strings.IndexByte(msg[start+1:], '\'')
	if end <= 0 {
		return "context"
	}
	return msg[start+1 : start+1+end]
}
