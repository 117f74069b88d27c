// Package catalog loads, validates and publishes rule catalogs for the engine.
package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
)

// Document is the on-disk catalog format. YAML and JSON are both accepted.
type Document struct {
	Version    string               `yaml:"version" json:"version"`
	Vocabulary engine.Vocabulary    `yaml:"vocabulary,omitempty" json:"vocabulary,omitempty"`
	Rules      []RuleDoc            `yaml:"rules" json:"rules"`
	Conflicts  []ConflictDoc        `yaml:"conflicts,omitempty" json:"conflicts,omitempty"`
	Plans      map[string][]PlanDoc `yaml:"plans,omitempty" json:"plans,omitempty"`
}

type RuleDoc struct {
	ID              string              `yaml:"id" json:"id"`
	When            engine.Condition    `yaml:"when" json:"when"`
	Recommendations []RecommendationDoc `yaml:"recommendations,omitempty" json:"recommendations,omitempty"`
	Blockers        []BlockerDoc        `yaml:"blockers,omitempty" json:"blockers,omitempty"`
}

type RecommendationDoc struct {
	ID          string `yaml:"id" json:"id"`
	Type        string `yaml:"type" json:"type"`
	Priority    string `yaml:"priority" json:"priority"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Reasoning   string `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
}

type BlockerDoc struct {
	Code    string `yaml:"code,omitempty" json:"code,omitempty"`
	Message string `yaml:"message" json:"message"`
}

type ConflictDoc struct {
	ID      string            `yaml:"id" json:"id"`
	IfAll   []string          `yaml:"ifAll,omitempty" json:"ifAll,omitempty"`
	IfAny   []string          `yaml:"ifAny,omitempty" json:"ifAny,omitempty"`
	Unless  []string          `yaml:"unless,omitempty" json:"unless,omitempty"`
	When    *engine.Condition `yaml:"when,omitempty" json:"when,omitempty"`
	Blocker BlockerDoc        `yaml:"blocker" json:"blocker"`
}

type PlanDoc struct {
	Phase     string    `yaml:"phase" json:"phase"`
	DependsOn []string  `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	Tasks     []TaskDoc `yaml:"tasks" json:"tasks"`
}

type TaskDoc struct {
	ID             string   `yaml:"id" json:"id"`
	Title          string   `yaml:"title" json:"title"`
	Description    string   `yaml:"description,omitempty" json:"description,omitempty"`
	EstimatedHours float64  `yaml:"estimatedHours" json:"estimatedHours"`
	Prerequisites  []string `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
}

var (
	ErrEmptyDocument    = errors.New("catalog document is empty")
	ErrDocumentTooLarge = errors.New("catalog document too large")
)

// MaxDocumentBytes bounds a catalog document read from a store or request.
const MaxDocumentBytes = 4 << 20

// ParseError reports a document that is not valid YAML or JSON for the schema.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "decode catalog: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes a YAML or JSON document. Unknown keys are rejected.
func Parse(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, ErrEmptyDocument
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, ErrEmptyDocument
		}
		return Document{}, &ParseError{Err: err}
	}
	return doc, nil
}

// ParseFile reads and decodes the document at path.
func ParseFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Canonical returns the JSON encoding used for checksums and stored revisions.
// Map keys are sorted by encoding/json, so equal documents encode identically.
func (d Document) Canonical() ([]byte, error) {
	return json.Marshal(d)
}

// Checksum is the hex sha256 of the canonical encoding.
func (d Document) Checksum() (string, error) {
	data, err := d.Canonical()
	if err != nil {
		return "", fmt.Errorf("encode catalog: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
