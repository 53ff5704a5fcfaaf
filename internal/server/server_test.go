package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazypower/pulse/internal/kernel"
	"github.com/lazypower/pulse/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	k, err := kernel.New(db)
	if err != nil {
		t.Fatalf("New kernel: %v", err)
	}
	return New(k, "test-version")
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

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

func TestErrorStatusMapping(t *testing.T) {
	srv := testServer(t)

	// With no active identity everything identity-scoped is 401.
	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{"GET", "/api/identity", "", http.StatusUnauthorized},
		{"POST", "/api/pulses", `{"action":"test"}`, http.StatusUnauthorized},
		{"GET", "/api/pulses", "", http.StatusUnauthorized},
		{"GET", "/api/pulses/verify", "", http.StatusUnauthorized},
		{"GET", "/api/export", "", http.StatusUnauthorized},
		{"POST", "/api/pulses", `not json`, http.StatusBadRequest},
	}

	for _, c := range cases {
		req := newJSONRequest(c.method, c.path, c.body)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		if w.Code != c.want {
			t.Errorf("%s %s: status = %d, want %d; body: %s", c.method, c.path, w.Code, c.want, w.Body.String())
		}
	}
}
