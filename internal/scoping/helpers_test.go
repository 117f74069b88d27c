package scoping

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iammrherb/authensi-smart-sub008/internal/cache"
	"github.com/iammrherb/authensi-smart-sub008/internal/catalog"
	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/middleware"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/telemetry"
)

const testCatalogYAML = `
version: t1
rules:
  - id: hipaa
    when: {field: complianceFrameworks, op: contains, value: HIPAA}
    recommendations:
      - id: hipaa-segmentation
        type: requirement
        priority: critical
        title: Segment clinical devices
        reasoning: "{{join .Matched \", \"}} requires isolating protected health information."
  - id: onprem
    when: {field: deploymentType, op: eq, value: on-premise}
    blockers:
      - code: onprem-hardware
        message: On-premise deployments need appliance capacity planning.
plans:
  hipaa-segmentation:
    - phase: Planning
      tasks:
        - {id: inventory, title: Inventory devices, estimatedHours: 4}
    - phase: Deployment
      dependsOn: [Planning]
      tasks:
        - {id: segment, title: Apply segmentation, estimatedHours: 8, prerequisites: [inventory]}
  loop-a:
    - phase: Testing
      dependsOn: [Deployment]
      tasks:
        - {id: test, title: Test}
  loop-b:
    - phase: Deployment
      dependsOn: [Testing]
      tasks:
        - {id: deploy, title: Deploy}
`

func quietLogs(t *testing.T) {
	t.Helper()
	restore := telemetry.SetOutput(io.Discard)
	t.Cleanup(restore)
}

func compileTestCatalog(t *testing.T, raw string) *catalog.Static {
	t.Helper()
	doc, err := catalog.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cat, err := catalog.Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return cat
}

func newTestHolder(t *testing.T) *catalog.Holder {
	t.Helper()
	h := catalog.NewHolder()
	h.Swap(compileTestCatalog(t, testCatalogYAML), "test")
	return h
}

func hipaaContext() map[string]any {
	return map[string]any{
		"industry":             "Healthcare",
		"organizationSize":     250,
		"complianceFrameworks": []any{"HIPAA"},
		"deploymentType":       "on-premise",
	}
}

// memoryCache is a DecisionCache backed by a map.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]engine.Evaluation
	setErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]engine.Evaluation)}
}

func (m *memoryCache) Get(_ context.Context, key string) (engine.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eval, ok := m.entries[key]
	if !ok {
		return engine.Evaluation{}, cache.ErrMiss
	}
	return eval, nil
}

func (m *memoryCache) Set(_ context.Context, key string, eval engine.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = eval
	return nil
}

// slowCatalog delays rule iteration to exercise the evaluation budget.
type slowCatalog struct {
	*catalog.Static
	delay time.Duration
}

func (s slowCatalog) ForEachRule(fn func(engine.Rule) error) error {
	time.Sleep(s.delay)
	return s.Static.ForEachRule(fn)
}

type fixedProvider struct {
	cat Catalog
	err error
}

func (p fixedProvider) Active() (Catalog, error) { return p.cat, p.err }

func setupRouter(t *testing.T, svc *Service, holder *catalog.Holder, admin *AdminHandler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	quietLogs(t)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery())
	api := r.Group("/api/v1")
	NewHandler(svc, holder).RegisterRoutes(api)
	if admin != nil {
		adminGroup := api.Group("", middleware.AdminToken("secret"))
		admin.RegisterRoutes(adminGroup)
	}
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

type errorEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env
}

func writeCatalogFile(t *testing.T, dir, raw string) string {
	t.Helper()
	path := dir + "/catalog.yaml"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}
