package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window configures one counter of the admission chain.
type Window struct {
	Name     string
	Duration time.Duration
	Max      int
	Message  string
}

type Decision struct {
	Allowed      bool
	Limit        int   // max requests in the window
	Remaining    int   // requests left in the window (min 0)
	ResetUnixSec int64 // when the current window closes
	Window       Window
}

type Count struct {
	Hits    int
	ResetAt time.Time
}

// Store counts hits per key in fixed windows.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (Count, error)
	Close() error
}

const (
	Short  = "short"
	Medium = "medium"
	Long   = "long"
)

func DefaultWindows() []Window {
	return []Window{
		{Name: Short, Duration: time.Minute, Max: 5, Message: "Rate limit exceeded: You can only make 5 requests per minute."},
		{Name: Medium, Duration: 5 * time.Minute, Max: 30, Message: "Rate limit exceeded: You can only make 30 requests per 5 minutes."},
		{Name: Long, Duration: 10 * time.Minute, Max: 80, Message: "Rate limit exceeded: You can only make 80 requests per 10 minutes."},
	}
}

// ParseWindow reads "<windowMs>,<max>". Anything else returns def unchanged.
// Only the duration and max are overridden.
func ParseWindow(raw string, def Window) Window {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return def
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || ms <= 0 {
		return def
	}
	max, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || max <= 0 {
		return def
	}

	// the 429 text stays the window's configured message
	w := def
	w.Duration = time.Duration(ms) * time.Millisecond
	w.Max = max
	return w
}

type Counter struct {
	window Window
	store  Store
}

func NewCounter(w Window, s Store) *Counter {
	return &Counter{window: w, store: s}
}

func (c *Counter) Window() Window { return c.window }

func (c *Counter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	cnt, err := c.store.Incr(ctx, c.window.Name+":"+key, c.window.Duration, now)
	if err != nil {
		return Decision{}, fmt.Errorf("%s window: %w", c.window.Name, err)
	}

	remaining := c.window.Max - cnt.Hits
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:      cnt.Hits <= c.window.Max,
		Limit:        c.window.Max,
		Remaining:    remaining,
		ResetUnixSec: cnt.ResetAt.Unix(),
		Window:       c.window,
	}, nil
}

// Chain applies every counter in order. The first rejection wins and later
// counters are not charged.
type Chain []*Counter

func (ch Chain) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	var tightest Decision
	for i, c := range ch {
		dec, err := c.Allow(ctx, key, now)
		if err != nil {
			return Decision{}, err
		}
		if !dec.Allowed {
			return dec, nil
		}
		if i == 0 || dec.Remaining < tightest.Remaining {
			tightest = dec
		}
	}
	if len(ch) == 0 {
		return Decision{Allowed: true}, nil
	}
	return tightest, nil
}

func (ch Chain) Close() error {
	var first error
	for _, c := range ch {
		if err := c.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
