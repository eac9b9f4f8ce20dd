package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/nhle/worklist/internal/store"
)

// NewTestStore creates an in-memory snooze store with all migrations
// applied, using now as its clock. It automatically closes the store when
// the test completes.
func NewTestStore(t *testing.T, now func() time.Time) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", store.WithClock(now))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Clock is a settable test clock, safe for concurrent use.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
