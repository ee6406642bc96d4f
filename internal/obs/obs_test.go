package obs

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AlexKimmel/BananaGate/internal/routing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "WARN", false)
	if l.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn got %s", l.GetLevel())
	}
	l = NewLogger(&buf, "nonsense", false)
	if l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback got %s", l.GetLevel())
	}
}

func TestLogger_WritesAccessLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "info", false)
	h := Logger(l)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("User-Agent", "test-agent")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{`"status":418`, `"path":"/x"`, `"ua":"test-agent"`, `"req_id"`, `"message":"req"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}

func TestMetrics_RouteLabelFromInnerMatcher(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routing.WithRoute(r, routing.NewRoute(routing.RoutePasscode, "/api/verify-passcode", true))
		w.WriteHeader(http.StatusUnauthorized)
	})
	h := m.Middleware(nil)(inner)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/verify-passcode", nil))

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(routing.RoutePasscode, http.MethodPost, "401"))
	if got != 1 {
		t.Fatalf("expected 1 request recorded got %v", got)
	}
}

func TestMetrics_HooksAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.OnLimited("short")
	m.OnLimited("short")
	m.OnLimiterError()
	m.OnPasscode(true)
	m.OnPasscode(false)

	if v := testutil.ToFloat64(m.RateLimited.WithLabelValues("short")); v != 2 {
		t.Fatalf("expected 2 limited got %v", v)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`bananagate_rate_limited_total{window="short"} 2`,
		`bananagate_limiter_errors_total 1`,
		`bananagate_passcode_attempts_total{result="accepted"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
