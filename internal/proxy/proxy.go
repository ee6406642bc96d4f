// Package proxy relays browser calls to the generative collaborator so the
// platform key never leaves the server.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"
)

const (
	Prefix    = "/api/genai"
	KeyHeader = "x-goog-api-key"
)

func NewHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type Relay struct {
	Upstream    *url.URL
	Transport   http.RoundTripper
	PlatformKey string
	Timeout     time.Duration
}

func hasKey(r *http.Request) bool {
	return strings.TrimSpace(r.Header.Get(KeyHeader)) != "" || r.URL.Query().Get("key") != ""
}

// Handler forwards Prefix+path to Upstream+path. Callers without their own
// key get the platform key; if there is none the call is refused.
func (rl *Relay) Handler() http.Handler {
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = rl.Upstream.Scheme
			req.URL.Host = rl.Upstream.Host
			req.URL.Path = singleJoin(rl.Upstream.Path, strings.TrimPrefix(req.URL.Path, Prefix))
			req.URL.RawPath = ""
			req.Host = rl.Upstream.Host
			req.Header.Set("X-Forwarded-Proto", "http")
			// never leak the gateway passcode or browser cookies upstream
			req.Header.Del("Cookie")
			req.Header.Del("Authorization")
		},
		Transport: rl.Transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			hlog.FromRequest(r).Warn().Err(err).Msg("relay upstream error")
			code := http.StatusBadGateway
			if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
				code = http.StatusGatewayTimeout
			}
			writeError(w, code, "upstream unavailable")
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasKey(r) {
			if rl.PlatformKey == "" {
				writeError(w, http.StatusUnauthorized, "missing credential")
				return
			}
			r.Header.Set(KeyHeader, rl.PlatformKey)
		}
		if rl.Timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), rl.Timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		proxy.ServeHTTP(w, r)
	})
}

func singleJoin(base, p string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return base + p
}

type errorBody struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Status: code, Error: msg})
}
