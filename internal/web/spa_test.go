package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func testSPA() *SPA {
	return NewSPA(fstest.MapFS{
		"index.html":    {Data: []byte("<html>app</html>")},
		"assets/app.js": {Data: []byte("console.log(1)")},
		"assets/sub/x":  {Data: []byte("x")},
		"favicon.ico":   {Data: []byte("ico")},
	})
}

func get(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSPA_ServesFiles(t *testing.T) {
	t.Parallel()
	rec := get(testSPA(), http.MethodGet, "/assets/app.js")
	if rec.Code != http.StatusOK || rec.Body.String() != "console.log(1)" {
		t.Fatalf("expected asset got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSPA_FallsBackToIndex(t *testing.T) {
	t.Parallel()
	h := testSPA()
	for _, p := range []string{"/", "/index.html", "/edit", "/deep/client/route", "/assets", "/assets/", "/../../etc/passwd", "/api/verify-passcode"} {
		rec := get(h, http.MethodGet, p)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", p, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "<html>app</html>") {
			t.Fatalf("%s: expected index body got %q", p, rec.Body.String())
		}
	}
}

func TestSPA_HeadHasNoBody(t *testing.T) {
	t.Parallel()
	rec := get(testSPA(), http.MethodHead, "/route")
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("expected empty 200 got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSPA_RejectsWrites(t *testing.T) {
	t.Parallel()
	rec := get(testSPA(), http.MethodPost, "/")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}
}

func TestSPA_MissingIndex(t *testing.T) {
	t.Parallel()
	rec := get(NewSPA(fstest.MapFS{}), http.MethodGet, "/")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
