package routing

import (
	"context"
	"net/http"
	"strings"
)

const (
	RoutePasscode = "passcode"
	RouteRelay    = "relay"
	RouteCounters = "counters"
	RouteHealth   = "health"
	RouteMetrics  = "metrics"
	RouteStatic   = "static"
)

// Route labels a family of requests. An empty Methods set matches any method.
type Route struct {
	ID      string
	Methods map[string]struct{}
	Prefix  string
	Exact   bool
}

func NewRoute(id, prefix string, exact bool, methods ...string) *Route {
	rt := &Route{ID: id, Prefix: prefix, Exact: exact}
	if len(methods) > 0 {
		rt.Methods = make(map[string]struct{}, len(methods))
		for _, m := range methods {
			rt.Methods[strings.ToUpper(m)] = struct{}{}
		}
	}
	return rt
}

type Router struct {
	routes []*Route
}

func New() *Router {
	return &Router{}
}

func (r *Router) Add(rt *Route) {
	r.routes = append(r.routes, rt)
}

func (r *Router) Routes() []*Route {
	return r.routes
}

// Match returns the first route, in insertion order, accepting method and path.
func (r *Router) Match(method string, path string) (*Route, bool) {
	m := strings.ToUpper(method)
	for _, rt := range r.routes {
		if rt.Methods != nil {
			if _, ok := rt.Methods[m]; !ok {
				continue
			}
		}
		prefix := strings.TrimSpace(rt.Prefix)
		if rt.Exact {
			if path == prefix {
				return rt, true
			}
			continue
		}
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix == "" {
			return rt, true
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return rt, true
		}
	}
	return nil, false
}

// --- context helpers ---
type ctxKey int

const (
	keyRoute ctxKey = iota
	keySink
)

// WithRoute stores rt on the request and reports its ID to any sink installed
// further out with WithRouteSink.
func WithRoute(r *http.Request, rt *Route) *http.Request {
	if sink, ok := r.Context().Value(keySink).(func(string)); ok && rt != nil {
		sink(rt.ID)
	}
	ctx := context.WithValue(r.Context(), keyRoute, rt)
	return r.WithContext(ctx)
}

func WithRouteSink(ctx context.Context, sink func(id string)) context.Context {
	return context.WithValue(ctx, keySink, sink)
}

func RouteFrom(r *http.Request) (*Route, bool) {
	v := r.Context().Value(keyRoute)
	if v == nil {
		return nil, false
	}
	rt, ok := v.(*Route)
	return rt, ok
}

// IDFrom returns the matched route ID or "unknown".
func IDFrom(r *http.Request) string {
	if rt, ok := RouteFrom(r); ok && rt != nil && rt.ID != "" {
		return rt.ID
	}
	return "unknown"
}
