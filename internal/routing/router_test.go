package routing

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testRouter() *Router {
	rr := New()
	rr.Add(NewRoute(RoutePasscode, "/api/verify-passcode", true, http.MethodPost))
	rr.Add(NewRoute(RouteRelay, "/api/genai/", false))
	rr.Add(NewRoute(RouteStatic, "/", false, http.MethodGet, http.MethodHead))
	return rr
}

func TestMatch(t *testing.T) {
	t.Parallel()
	rr := testRouter()

	cases := []struct {
		method, path string
		want         string
		ok           bool
	}{
		{"POST", "/api/verify-passcode", RoutePasscode, true},
		{"post", "/api/verify-passcode", RoutePasscode, true},
		{"GET", "/api/verify-passcode", RouteStatic, true},
		{"POST", "/api/verify-passcode/x", "", false},
		{"POST", "/api/genai/v1beta/models/x:generateContent", RouteRelay, true},
		{"GET", "/api/genai", RouteRelay, true},
		{"GET", "/api/genaix", RouteStatic, true},
		{"GET", "/", RouteStatic, true},
		{"HEAD", "/assets/app.js", RouteStatic, true},
		{"DELETE", "/assets/app.js", "", false},
	}
	for _, tc := range cases {
		rt, ok := rr.Match(tc.method, tc.path)
		if ok != tc.ok {
			t.Fatalf("%s %s: expected ok=%v got %v", tc.method, tc.path, tc.ok, ok)
		}
		if ok && rt.ID != tc.want {
			t.Fatalf("%s %s: expected %s got %s", tc.method, tc.path, tc.want, rt.ID)
		}
	}
}

func TestRouteContext(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if IDFrom(r) != "unknown" {
		t.Fatalf("expected unknown before matching")
	}
	r = WithRoute(r, NewRoute(RouteStatic, "/", false))
	if IDFrom(r) != RouteStatic {
		t.Fatalf("expected static got %s", IDFrom(r))
	}
}

func TestRouteSink(t *testing.T) {
	t.Parallel()
	var got string
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithRouteSink(r.Context(), func(id string) { got = id }))
	WithRoute(r, NewRoute(RoutePasscode, "/api/verify-passcode", true))
	if got != RoutePasscode {
		t.Fatalf("expected sink to receive passcode got %q", got)
	}
}
