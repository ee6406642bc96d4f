package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func post(h http.Handler, body string) (*httptest.ResponseRecorder, verifyResponse) {
	req := httptest.NewRequest(http.MethodPost, "/api/verify-passcode", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out verifyResponse
	_ = json.NewDecoder(rec.Body).Decode(&out)
	return rec, out
}

func TestPasscode_ExactMatch(t *testing.T) {
	t.Parallel()
	var results []bool
	p := NewPasscode("Banana42", func(ok bool) { results = append(results, ok) })
	h := p.Handler()

	rec, out := post(h, `{"passcode":"Banana42"}`)
	if rec.Code != http.StatusOK || !out.Success {
		t.Fatalf("expected success got %d %+v", rec.Code, out)
	}

	for _, wrong := range []string{"banana42", "Banana4", "Banana42 ", " Banana42", "", "Banana420"} {
		rec, out := post(h, `{"passcode":"`+wrong+`"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401 got %d", wrong, rec.Code)
		}
		if out.Success || out.Message != "Invalid passcode" {
			t.Fatalf("%q: unexpected body %+v", wrong, out)
		}
	}
	if len(results) != 7 || !results[0] || results[1] {
		t.Fatalf("unexpected hook results %v", results)
	}
}

func TestPasscode_DefaultSecret(t *testing.T) {
	t.Parallel()
	p := NewPasscode("", nil)
	if !p.Verify(DefaultPasscode) {
		t.Fatalf("expected default passcode to verify")
	}
	if p.Verify("JIMMYLIAO") {
		t.Fatalf("expected case-sensitive comparison")
	}
}

func TestPasscode_MissingFieldIsMismatch(t *testing.T) {
	t.Parallel()
	var results []bool
	h := NewPasscode("x", func(ok bool) { results = append(results, ok) }).Handler()
	for _, body := range []string{`{}`, ``} {
		rec, out := post(h, body)
		if rec.Code != http.StatusUnauthorized || out.Success || out.Message != "Invalid passcode" {
			t.Fatalf("%q: expected 401 Invalid passcode got %d %+v", body, rec.Code, out)
		}
	}
	if len(results) != 2 || results[0] || results[1] {
		t.Fatalf("expected two rejected attempts got %v", results)
	}
}

func TestPasscode_BadBody(t *testing.T) {
	t.Parallel()
	rec, out := post(NewPasscode("x", nil).Handler(), `{"passcode":`)
	if rec.Code != http.StatusBadRequest || out.Message != "Invalid request body" {
		t.Fatalf("expected 400 got %d %+v", rec.Code, out)
	}
}

func TestPasscode_WrongMethod(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/api/verify-passcode", nil)
	rec := httptest.NewRecorder()
	NewPasscode("x", nil).Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}
}
