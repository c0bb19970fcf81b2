package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/alert"
	"github.com/westonopentrain/capsule-match/internal/api"
	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/embed"
	"github.com/westonopentrain/capsule-match/internal/gate"
	"github.com/westonopentrain/capsule-match/internal/matchpipeline"
	"github.com/westonopentrain/capsule-match/internal/qualstore"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	embedder := embed.NewMock(16)
	gateCache := gate.NewCache(embedder)
	qual := qualstore.NewMemory()

	pipeline := matchpipeline.New(
		store,
		classify.NewHeuristic(),
		embedder,
		gateCache,
		qual,
		audit.NewSink(audit.NoopWriter{}),
		alert.Noop{},
		matchpipeline.Namespaces{Users: "users", Jobs: "jobs"},
		16,
	)

	registry := vectorstore.NewRegistry()
	registry.Register(store.Kind(), store)

	h := api.NewHandlers(pipeline, qual, store, registry, gateCache, "test")
	return api.NewRouter(h, "", "test")
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndVersion(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/version", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /version status = %d, want 200", rec.Code)
	}
}

func TestUpsertUser_MissingUserIDReturnsValidationError(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/users/upsert", map[string]interface{}{"bio": "no id"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST /v1/users/upsert (no userId) status = %d, want 400", rec.Code)
	}
}

func TestUpsertUser_ThenUpsertJob_ThenNotify(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/users/upsert", map[string]interface{}{
		"userId":          "user-1",
		"bio":             "Experienced customer support agent",
		"yearsExperience": 4,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/users/upsert status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/jobs/upsert", map[string]interface{}{
		"jobId":       "job-1",
		"title":       "Customer support",
		"description": "Answer support tickets",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/jobs/upsert status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/jobs/notify", map[string]interface{}{
		"jobId":       "job-2",
		"title":       "Customer support",
		"description": "Answer support tickets",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/jobs/notify status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body["jobId"] != "job-2" {
		t.Errorf("notify response jobId = %v, want job-2", body["jobId"])
	}
}

func TestUnauthorizedRequest_RejectedWhenKeyConfigured(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := embed.NewMock(16)
	gateCache := gate.NewCache(embedder)
	qual := qualstore.NewMemory()
	pipeline := matchpipeline.New(store, classify.NewHeuristic(), embedder, gateCache, qual, audit.NewSink(audit.NoopWriter{}), alert.Noop{}, matchpipeline.Namespaces{}, 16)
	registry := vectorstore.NewRegistry()
	registry.Register(store.Kind(), store)
	h := api.NewHandlers(pipeline, qual, store, registry, gateCache, "test")
	router := api.NewRouter(h, "secret-key", "test")

	rec := doJSON(t, router, http.MethodPost, "/v1/users/upsert", map[string]interface{}{"userId": "u1", "bio": "x"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST /v1/users/upsert without bearer token status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/users/upsert", bytes.NewReader([]byte(`{"userId":"u1","bio":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-key")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Errorf("POST /v1/users/upsert with correct bearer token status = %d, want 200, body = %s", rec2.Code, rec2.Body.String())
	}
}

func TestVectorStoreHealth(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/admin/vectorstore/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/admin/vectorstore/health status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body["healthy"] != true {
		t.Errorf("vectorstore health response healthy = %v, want true", body["healthy"])
	}
	drivers, ok := body["drivers"].(map[string]interface{})
	if !ok || len(drivers) != 1 {
		t.Errorf("vectorstore health response drivers = %v, want one registered driver", body["drivers"])
	}
}

func TestSubjectCacheStats(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/admin/subject-cache/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/admin/subject-cache/stats status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteUser(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/users/upsert", map[string]interface{}{"userId": "user-del", "bio": "to be deleted"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/users/upsert status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/users/user-del", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Errorf("DELETE /v1/users/user-del status = %d, want 200, body = %s", rec2.Code, rec2.Body.String())
	}
}
