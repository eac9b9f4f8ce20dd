// Package worklist merges the actionable items of every registered source
// into one ordered list, hiding tasks that are currently snoozed.
package worklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
)

// ErrWorklistUnavailable is returned when no source produced a result.
var ErrWorklistUnavailable = errors.New("worklist unavailable")

// defaultFetchTimeout bounds a single adapter fetch.
const defaultFetchTimeout = 30 * time.Second

// abandonGrace is how long past its deadline an adapter that ignores
// cancellation is waited for before its result is abandoned.
const abandonGrace = 2 * time.Second

// SnoozeLookup is the part of the snooze store the engine reads.
type SnoozeLookup interface {
	ActiveSnoozeKeys(ctx context.Context, now time.Time) (map[model.TaskKey]struct{}, error)
}

// SourceFailure records one source that contributed no items.
type SourceFailure struct {
	Source model.SourceType
	Err    error
}

func (f SourceFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Source, f.Err)
}

func (f SourceFailure) Unwrap() error {
	return f.Err
}

// Result is one aggregation pass.
type Result struct {
	// Tasks is sorted by timestamp descending, then source and id
	// ascending. Each (source, id) appears at most once.
	Tasks []model.Task

	// Failures lists the sources whose fetch failed, in registration
	// order.
	Failures []SourceFailure

	// Skipped counts undecodable items per source.
	Skipped map[model.SourceType]int

	// Snoozed is how many fetched tasks were hidden by an active snooze.
	Snoozed int

	RunID       string
	RefreshedAt time.Time
}

// Degraded reports whether at least one source failed.
func (r *Result) Degraded() bool {
	return len(r.Failures) > 0
}

// Engine fans a fetch out to every source and merges the results. It
// keeps no state between calls; every call fetches afresh.
type Engine struct {
	sources  []source.Source
	snoozes  SnoozeLookup
	reporter Reporter
	logger   *slog.Logger
	timeout  time.Duration
	grace    time.Duration
	now      func() time.Time
	newRunID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithReporter sets the collaborator failures are reported to.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithFetchTimeout bounds each adapter's fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock overrides the clock used for snooze filtering.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over sources. snoozes may be nil, in which
// case nothing is filtered.
func NewEngine(sources []source.Source, snoozes SnoozeLookup, opts ...Option) *Engine {
	e := &Engine{
		sources:  append([]source.Source(nil), sources...),
		snoozes:  snoozes,
		logger:   slog.Default(),
		timeout:  defaultFetchTimeout,
		grace:    abandonGrace,
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reporter == nil {
		e.reporter = NewLogReporter(e.logger)
	}
	e.logger = e.logger.With("component", "worklist")
	return e
}

// Sources returns the registered source types in registration order.
func (e *Engine) Sources() []model.SourceType {
	types := make([]model.SourceType, len(e.sources))
	for i, src := range e.sources {
		types[i] = src.Type()
	}
	return types
}

// fetchOutcome is the result of one adapter's fetch.
type fetchOutcome struct {
	index  int
	result *source.FetchResult
	err    error
}

// GetUnifiedWorklist fetches every source concurrently and returns the
// merged, snooze-filtered, sorted worklist. A failing source is reported
// and contributes no items; the call fails only when no source succeeds.
func (e *Engine) GetUnifiedWorklist(ctx context.Context) (*Result, error) {
	runID := e.newRunID()
	logger := e.logger.With("run_id", runID)

	if len(e.sources) == 0 {
		return nil, fmt.Errorf("%w: no sources registered", ErrWorklistUnavailable)
	}

	outcomes := e.fetchAll(ctx)

	result := &Result{
		Skipped: make(map[model.SourceType]int),
		RunID:   runID,
	}

	var merged []model.Task
	var errs []error
	succeeded := 0
	for i, out := range outcomes {
		st := e.sources[i].Type()
		if out.err != nil {
			failure := SourceFailure{Source: st, Err: out.err}
			result.Failures = append(result.Failures, failure)
			errs = append(errs, failure)
			e.reporter.ReportFailure(ctx, runID, failure)
			continue
		}

		succeeded++
		if out.result.Skipped > 0 {
			result.Skipped[st] += out.result.Skipped
			logger.Info("skipped undecodable items",
				"source", st, "count", out.result.Skipped)
		}
		merged = append(merged, out.result.Items...)
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: %w", ErrWorklistUnavailable, errors.Join(errs...))
	}

	now := e.now()
	active := map[model.TaskKey]struct{}{}
	if e.snoozes != nil {
		keys, err := e.snoozes.ActiveSnoozeKeys(ctx, now)
		if err != nil {
			return nil, fmt.Errorf("loading active snoozes: %w", err)
		}
		active = keys
	}

	tasks := make([]model.Task, 0, len(merged))
	seen := make(map[model.TaskKey]struct{}, len(merged))
	for _, t := range merged {
		key := t.Key()
		if _, dup := seen[key]; dup {
			logger.Debug("dropped duplicate task", "key", key.String())
			continue
		}
		seen[key] = struct{}{}

		if _, snoozed := active[key]; snoozed {
			result.Snoozed++
			continue
		}
		tasks = append(tasks, t)
	}

	SortTasks(tasks)
	result.Tasks = tasks
	result.RefreshedAt = now

	logger.Debug("aggregated worklist",
		"tasks", len(tasks),
		"snoozed", result.Snoozed,
		"failed_sources", len(result.Failures),
	)

	return result, nil
}

// fetchAll runs every adapter's fetch concurrently and returns outcomes
// indexed by registration order. An adapter still running past its
// deadline is abandoned and recorded as unreachable.
func (e *Engine) fetchAll(ctx context.Context) []fetchOutcome {
	ch := make(chan fetchOutcome, len(e.sources))
	for i, src := range e.sources {
		go func(i int, src source.Source) {
			ch <- e.fetchOne(ctx, i, src)
		}(i, src)
	}

	outcomes := make([]fetchOutcome, len(e.sources))
	done := make([]bool, len(e.sources))

	abandon := time.NewTimer(e.timeout + e.grace)
	defer abandon.Stop()

collect:
	for remaining := len(e.sources); remaining > 0; remaining-- {
		select {
		case out := <-ch:
			outcomes[out.index] = out
			done[out.index] = true
		case <-abandon.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	cause := context.DeadlineExceeded
	if err := ctx.Err(); err != nil {
		cause = err
	}
	for i, ok := range done {
		if ok {
			continue
		}
		outcomes[i] = fetchOutcome{
			index: i,
			err: &source.AdapterError{
				Source: e.sources[i].Type(),
				Op:     "fetch",
				Kind:   source.KindUnreachable,
				Err:    fmt.Errorf("fetch abandoned: %w", cause),
			},
		}
	}
	return outcomes
}

// fetchOne runs one adapter under the per-call timeout. A panicking
// adapter is treated as a failed fetch.
func (e *Engine) fetchOne(ctx context.Context, i int, src source.Source) (out fetchOutcome) {
	out.index = i

	defer func() {
		if r := recover(); r != nil {
			out.result = nil
			out.err = fmt.Errorf("%s adapter panicked: %v", src.Type(), r)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := src.FetchActionable(fetchCtx)
	if err != nil {
		out.err = err
		return out
	}
	if res == nil {
		res = &source.FetchResult{}
	}
	out.result = res
	return out
}

// SortTasks orders tasks by timestamp descending, breaking ties by source
// then id ascending.
func SortTasks(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ID < b.ID
	})
}
