package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriteEmitsOneJSONObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Info("catalog.reload", map[string]any{"version": "v2", "rules": 12})
	Warn("rule.failed", map[string]any{"rule_id": "r1", "error": errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg", "version", "rules"} {
		if _, ok := first[key]; !ok {
			t.Fatalf("missing key %s in %v", key, first)
		}
	}
	if first["level"] != "info" || first["msg"] != "catalog.reload" {
		t.Fatalf("unexpected entry %v", first)
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second["level"] != "warn" || second["error"] != "boom" {
		t.Fatalf("unexpected entry %v", second)
	}
}
