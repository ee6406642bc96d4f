package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/routing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RateLimited      *prometheus.CounterVec
	LimiterErrors    prometheus.Counter
	PasscodeAttempts *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bananagate_requests_total",
				Help: "Total HTTP requests processed by the gateway",
			},
			[]string{"route", "method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bananagate_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bananagate_rate_limited_total",
				Help: "Total requests rejected by an admission window",
			},
			[]string{"window"},
		),
		LimiterErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bananagate_limiter_errors_total",
				Help: "Total admission store errors",
			},
		),
		PasscodeAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bananagate_passcode_attempts_total",
				Help: "Passcode verification attempts by result",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.RateLimited, m.LimiterErrors, m.PasscodeAttempts)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) OnLimited(window string) { m.RateLimited.WithLabelValues(window).Inc() }

func (m *Metrics) OnLimiterError() { m.LimiterErrors.Inc() }

func (m *Metrics) OnPasscode(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.PasscodeAttempts.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Middleware records per-request metrics. Place it outside RouteMatcher so
// the route label is read after the inner handlers have run.
func (m *Metrics) Middleware(skip map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			holder := &routeHolder{}

			next.ServeHTTP(rec, withRouteHolder(r, holder))

			code := rec.status
			if code == 0 {
				code = http.StatusOK
			}

			route := holder.id
			if route == "" {
				route = "unknown"
			}
			m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		})
	}
}

// routeHolder lets inner middleware report the matched route back out.
type routeHolder struct{ id string }

func withRouteHolder(r *http.Request, h *routeHolder) *http.Request {
	return r.WithContext(routing.WithRouteSink(r.Context(), func(id string) { h.id = id }))
}
