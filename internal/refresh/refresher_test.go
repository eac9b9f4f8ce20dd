package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nhle/worklist/internal/logging"
	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/worklist"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type countingAggregator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *countingAggregator) GetUnifiedWorklist(context.Context) (*worklist.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &worklist.Result{
		Tasks:       []model.Task{{ID: "m1", Source: model.SourceTypeGmail}},
		RunID:       "run",
		RefreshedAt: t0,
	}, nil
}

type recordingCleaner struct {
	mu      sync.Mutex
	befores []time.Time
}

func (c *recordingCleaner) CleanupExpired(_ context.Context, before time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.befores = append(c.befores, before)
	return 1, nil
}

func (c *recordingCleaner) calls() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.befores...)
}

func waitUpdate(t *testing.T, r *Refresher) Update {
	t.Helper()
	select {
	case u := <-r.Updates():
		return u
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
		return Update{}
	}
}

func TestRunRefreshesImmediatelyAndOnTrigger(t *testing.T) {
	agg := &countingAggregator{}
	cleaner := &recordingCleaner{}
	r := New(agg, Options{
		Interval:     time.Hour,
		CleanupAfter: 24 * time.Hour,
		Cleaner:      cleaner,
		Logger:       logging.Discard(),
		Now:          func() time.Time { return t0 },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	first := waitUpdate(t, r)
	if first.Err != nil || first.Result == nil || len(first.Result.Tasks) != 1 {
		t.Fatalf("unexpected first update %+v", first)
	}
	if got := r.Session().Tasks(); len(got) != 1 {
		t.Fatalf("expected session updated, got %d tasks", len(got))
	}

	r.Trigger()
	waitUpdate(t, r)

	cancel()
	<-done

	agg.mu.Lock()
	calls := agg.calls
	agg.mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected 2 refreshes, got %d", calls)
	}

	cleanups := cleaner.calls()
	if len(cleanups) != 1 {
		t.Fatalf("expected one cleanup within the hour, got %d", len(cleanups))
	}
	if !cleanups[0].Equal(t0.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected cleanup cutoff %v", cleanups[0])
	}
}

func TestRunPublishesFailuresAndKeepsSession(t *testing.T) {
	agg := &countingAggregator{err: errors.New("all sources down")}
	session := worklist.NewSession()
	session.Update(&worklist.Result{Tasks: []model.Task{{ID: "old", Source: model.SourceTypeGmail}}})

	r := New(agg, Options{Interval: time.Hour, Session: session, Logger: logging.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	u := waitUpdate(t, r)
	if u.Err == nil {
		t.Fatalf("expected failure update")
	}
	if got := session.Tasks(); len(got) != 1 || got[0].ID != "old" {
		t.Fatalf("expected previous result kept, got %+v", got)
	}
}

func TestPublishKeepsLatestOnly(t *testing.T) {
	r := New(&countingAggregator{}, Options{Logger: logging.Discard()})

	r.publish(Update{Err: errors.New("first")})
	r.publish(Update{Err: errors.New("second")})

	u := <-r.Updates()
	if u.Err == nil || u.Err.Error() != "second" {
		t.Fatalf("expected latest update, got %v", u.Err)
	}
	select {
	case extra := <-r.Updates():
		t.Fatalf("unexpected buffered update %v", extra)
	default:
	}
}

func TestTriggerNeverBlocks(t *testing.T) {
	r := New(&countingAggregator{}, Options{Logger: logging.Discard()})
	for i := 0; i < 5; i++ {
		r.Trigger()
	}
}
