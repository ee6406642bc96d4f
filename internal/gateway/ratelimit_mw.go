package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/ratelimit"
	"github.com/rs/zerolog/hlog"
)

// AdmissionOptions carries outcome hooks and the clock; nil fields are skipped
// (Now defaults to time.Now).
type AdmissionOptions struct {
	OnLimited func(window string)
	OnError   func()
	Now       func() time.Time
}

// Admission rejects requests over any window of chain before they reach next.
func Admission(
	chain ratelimit.Chain,
	keyFn func(*http.Request) string,
	skipPaths map[string]struct{},
	opts AdmissionOptions,
) Middleware {
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// ops endpoints are never limited
			if _, ok := skipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFn(r)
			if key == "" {
				key = "anon"
			}
			now := clock()

			dec, err := chain.Allow(r.Context(), key, now)
			if err != nil {
				if opts.OnError != nil {
					opts.OnError()
				}
				hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("admission check failed")
				writeJSON(w, http.StatusInternalServerError, "internal rate limiter error")
				return
			}

			if dec.Limit > 0 {
				reset := secondsUntil(dec.ResetUnixSec, now)
				w.Header().Set("RateLimit-Limit", strconv.Itoa(dec.Limit))
				w.Header().Set("RateLimit-Remaining", strconv.Itoa(max(dec.Remaining, 0)))
				w.Header().Set("RateLimit-Reset", strconv.FormatInt(reset, 10))
				if !dec.Allowed {
					w.Header().Set("Retry-After", strconv.FormatInt(reset, 10))
				}
			}

			if !dec.Allowed {
				if opts.OnLimited != nil {
					opts.OnLimited(dec.Window.Name)
				}
				hlog.FromRequest(r).Warn().
					Str("key", key).
					Str("window", dec.Window.Name).
					Msg("rate limited")
				writeJSON(w, http.StatusTooManyRequests, dec.Window.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func secondsUntil(unix int64, now time.Time) int64 {
	d := unix - now.Unix()
	if d < 0 {
		return 0
	}
	return d
}

type errorBody struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// writeJSON writes the gateway error shape {"status":code,"error":msg}.
func writeJSON(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Status: code, Error: msg})
}
