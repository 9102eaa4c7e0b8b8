package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"repfinds.local/internal/platform/config"
)

func TestAdminMux(t *testing.T) {
	mux := newAdminMux(config.Config{ServiceName: "linkconv-test"}, nil, nil)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz without deps: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	var v map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("version not json: %v", err)
	}
	if v["service_name"] != "linkconv-test" || v["version"] != version {
		t.Fatalf("unexpected version body: %v", v)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("pprof should be off by default, got %d", w.Code)
	}
}
