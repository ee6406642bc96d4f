package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/ratelimit"
)

type window struct {
	mu   sync.Mutex
	end  time.Time
	hits int
	dead bool
}

// Store keeps fixed-window counts in process memory. Counts are lost on restart.
type Store struct {
	windows sync.Map
}

func New() *Store {
	return &Store{}
}

func (s *Store) Close() error { return nil }

func (s *Store) Incr(_ context.Context, key string, d time.Duration, now time.Time) (ratelimit.Count, error) {
	for {
		v, _ := s.windows.LoadOrStore(key, &window{end: now.Add(d)})
		w := v.(*window)

		w.mu.Lock()
		if w.dead {
			// swept between load and lock
			w.mu.Unlock()
			continue
		}
		// window elapsed: open a fresh one
		if !now.Before(w.end) {
			w.end = now.Add(d)
			w.hits = 0
		}
		w.hits++
		cnt := ratelimit.Count{Hits: w.hits, ResetAt: w.end}
		w.mu.Unlock()
		return cnt, nil
	}
}

// Sweep drops windows that closed before now and reports how many were removed.
func (s *Store) Sweep(now time.Time) int {
	n := 0
	s.windows.Range(func(k, v any) bool {
		w := v.(*window)
		w.mu.Lock()
		if !now.Before(w.end) {
			w.dead = true
			s.windows.CompareAndDelete(k, v)
			n++
		}
		w.mu.Unlock()
		return true
	})
	return n
}

// Start sweeps every interval until ctx is done.
func (s *Store) Start(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				s.Sweep(now)
			}
		}
	}()
}

func (s *Store) Len() int {
	n := 0
	s.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
