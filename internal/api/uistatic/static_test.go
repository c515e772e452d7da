package uistatic

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesIndexForRoutes(t *testing.T) {
	for _, path := range []string{"/", "/index.html", "/console/history"} {
		rr := httptest.NewRecorder()
		Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "<title>askmesh</title>") {
			t.Fatalf("%s: body = %q", path, rr.Body.String())
		}
		if got := rr.Header().Get("Cache-Control"); got != "no-cache" {
			t.Fatalf("%s: Cache-Control = %q", path, got)
		}
	}
}

func TestHandlerServesAssets(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "/v1/ask") {
		t.Fatal("expected app script")
	}
	if got := rr.Header().Get("Cache-Control"); !strings.HasPrefix(got, "public") {
		t.Fatalf("Cache-Control = %q", got)
	}
}

func TestHandlerMissingAssetIsNotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/vendor/missing.js", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
