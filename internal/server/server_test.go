package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lucidmem/lucid/internal/engine"
	"github.com/lucidmem/lucid/internal/location"
	"github.com/lucidmem/lucid/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, engine.New(db), location.NewService(db), "test-version")
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestStoreAndQueryMemory(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/memories",
		`{"content":"The retry loop needs exponential backoff.","kind":"learning"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("store status = %d: %s", w.Code, w.Body.String())
	}

	var created map[string]any
	json.Unmarshal(w.Body.Bytes(), &created)
	if created["id"] == "" {
		t.Fatal("expected id in response")
	}

	// No embedder configured: the query runs in base-level fallback mode.
	w = doJSON(t, srv, "GET", "/api/memories?q=backoff", "")
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", w.Code, w.Body.String())
	}
	var result engine.RetrievalResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Fallback {
		t.Error("expected fallback mode without embedder")
	}
	if len(result.Results) != 1 {
		t.Errorf("results = %d, want 1", len(result.Results))
	}
}

func TestStoreMemoryRequiresContent(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/memories", `{"kind":"learning"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestForgetMemory(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/memories", `{"content":"ephemeral","kind":"context"}`)
	var created map[string]string
	json.Unmarshal(w.Body.Bytes(), &created)

	w = doJSON(t, srv, "DELETE", "/api/memories/"+created["id"], "")
	if w.Code != http.StatusOK {
		t.Fatalf("forget status = %d", w.Code)
	}

	w = doJSON(t, srv, "DELETE", "/api/memories/"+created["id"], "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second forget status = %d, want 404", w.Code)
	}
}

func TestRecordAndGetLocation(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/locations/record",
		`{"path":"/src/main.go","context":"reading the entrypoint"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("record status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "GET", "/api/locations?path=/src/main.go", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var loc store.Location
	if err := json.Unmarshal(w.Body.Bytes(), &loc); err != nil {
		t.Fatalf("decode location: %v", err)
	}
	if loc.AccessCount != 1 {
		t.Errorf("access count = %d, want 1", loc.AccessCount)
	}

	w = doJSON(t, srv, "GET", "/api/locations?path=/never", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", w.Code)
	}
}

func TestMergeLocationsNotFound(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/locations/merge",
		`{"old_path":"/a","new_path":"/b"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when neither path is known", w.Code)
	}
}

func TestMigrateStatusAndPurge(t *testing.T) {
	srv := testServer(t)

	m := &store.Memory{Content: "legacy", Kind: "context"}
	srv.db.CreateMemory(m)
	srv.db.SaveEmbedding(m.ID, []float64{1, 0}, "old")

	w := doJSON(t, srv, "GET", "/api/migrate/status?model=new", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status engine.MigrationStatus
	json.Unmarshal(w.Body.Bytes(), &status)
	if status.NotMatching != 1 {
		t.Errorf("not matching = %d, want 1", status.NotMatching)
	}

	w = doJSON(t, srv, "POST", "/api/migrate/purge", `{"model":"new"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("purge status = %d", w.Code)
	}
	var purge map[string]int
	json.Unmarshal(w.Body.Bytes(), &purge)
	if purge["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", purge["deleted"])
	}
}
