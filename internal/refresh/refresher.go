package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/worklist/internal/worklist"
)

const (
	defaultInterval = 120 * time.Second

	// cleanupEvery spaces out housekeeping passes.
	cleanupEvery = time.Hour
)

// Update is delivered after every refresh attempt.
type Update struct {
	Result *worklist.Result
	Err    error
}

// Aggregator produces a worklist.
type Aggregator interface {
	GetUnifiedWorklist(ctx context.Context) (*worklist.Result, error)
}

// Cleaner removes long-expired snooze rows.
type Cleaner interface {
	CleanupExpired(ctx context.Context, before time.Time) (int64, error)
}

// Options configures a Refresher.
type Options struct {
	// Interval between scheduled refreshes. Defaults to two minutes.
	Interval time.Duration

	// CleanupAfter is how long past its wake time a snooze row is kept.
	// Zero disables housekeeping.
	CleanupAfter time.Duration

	Cleaner Cleaner
	Session *worklist.Session
	Logger  *slog.Logger
	Now     func() time.Time
}

// Refresher re-runs aggregation on a timer and on demand, storing each
// result in a session and publishing it on Updates.
type Refresher struct {
	agg          Aggregator
	session      *worklist.Session
	cleaner      Cleaner
	interval     time.Duration
	cleanupAfter time.Duration
	now          func() time.Time
	logger       *slog.Logger

	updates     chan Update
	trigger     chan struct{}
	lastCleanup time.Time

	mu      sync.Mutex
	running bool
}

// New creates a Refresher over agg.
func New(agg Aggregator, opts Options) *Refresher {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	session := opts.Session
	if session == nil {
		session = worklist.NewSession()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		agg:          agg,
		session:      session,
		cleaner:      opts.Cleaner,
		interval:     interval,
		cleanupAfter: opts.CleanupAfter,
		now:          now,
		logger:       logger.With("component", "refresh"),
		updates:      make(chan Update, 1),
		trigger:      make(chan struct{}, 1),
	}
}

// Session returns the session results are stored in.
func (r *Refresher) Session() *worklist.Session {
	return r.session
}

// Updates delivers the outcome of each refresh. Only the latest update is
// buffered; a slow reader sees the newest result, not a backlog.
func (r *Refresher) Updates() <-chan Update {
	return r.updates
}

// Trigger requests an immediate refresh. It never blocks; a request made
// while one is already pending is coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes once immediately, then on every tick or trigger until ctx
// is cancelled. Calling Run while it is already running returns at once.
func (r *Refresher) Run(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		case <-r.trigger:
			r.refreshOnce(ctx)
		}
	}
}

// refreshOnce runs one aggregation pass, then housekeeping if due.
func (r *Refresher) refreshOnce(ctx context.Context) {
	res, err := r.agg.GetUnifiedWorklist(ctx)
	if err != nil {
		r.logger.Warn("refresh failed", "error", err)
	} else {
		r.session.Update(res)
	}
	r.publish(Update{Result: res, Err: err})

	r.cleanupIfDue(ctx)
}

func (r *Refresher) cleanupIfDue(ctx context.Context) {
	if r.cleaner == nil || r.cleanupAfter <= 0 {
		return
	}
	now := r.now()
	if !r.lastCleanup.IsZero() && now.Sub(r.lastCleanup) < cleanupEvery {
		return
	}
	r.lastCleanup = now

	removed, err := r.cleaner.CleanupExpired(ctx, now.Add(-r.cleanupAfter))
	if err != nil {
		r.logger.Warn("snooze cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		r.logger.Info("removed expired snoozes", "count", removed)
	}
}

// publish replaces any unread update with u.
func (r *Refresher) publish(u Update) {
	for {
		select {
		case r.updates <- u:
			return
		default:
		}
		select {
		case <-r.updates:
		default:
		}
	}
}
