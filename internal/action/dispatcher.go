// Package action routes user actions on a task to the adapter that owns
// it, or to the snooze store.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/snooze"
	"github.com/nhle/worklist/internal/source"
	"github.com/nhle/worklist/internal/store"
)

// Action names a user-initiated operation.
type Action string

const (
	ActionArchive  Action = "archive"
	ActionComplete Action = "complete"
	ActionSnooze   Action = "snooze"
	ActionUnsnooze Action = "unsnooze"
)

// ParseAction normalizes an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionArchive, ActionComplete, ActionSnooze, ActionUnsnooze:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, s)
	}
}

// Request describes one action on one task.
type Request struct {
	Action Action
	Source model.SourceType
	ID     string

	// Preset picks the snooze duration. Ignored when Until is set.
	Preset snooze.Preset

	// Until is an explicit absolute wake time for snooze.
	Until time.Time
}

// Key returns the identity key of the targeted task.
func (r Request) Key() model.TaskKey {
	return model.TaskKey{Source: r.Source, ID: r.ID}
}

// Outcome reports what a successful action did.
type Outcome struct {
	Action Action
	Key    model.TaskKey

	// WakeAt is set for snooze.
	WakeAt time.Time
}

// SnoozeWriter is the part of the snooze store the dispatcher writes.
type SnoozeWriter interface {
	UpsertSnooze(ctx context.Context, source model.SourceType, id string, wakeAt time.Time) error
	DeleteSnooze(ctx context.Context, key model.TaskKey) error
}

// Dispatcher routes actions by source tag. It holds no worklist; callers
// refresh or remove the item locally after a success.
type Dispatcher struct {
	sources map[model.SourceType]source.Source
	snoozes SnoozeWriter
	policy  snooze.Policy
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy sets the snooze preset policy.
func WithPolicy(p snooze.Policy) Option {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithClock overrides the clock used to resolve snooze presets.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a dispatcher over sources. When two sources share
// a type the first one registered wins.
func NewDispatcher(sources []source.Source, snoozes SnoozeWriter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sources: make(map[model.SourceType]source.Source, len(sources)),
		snoozes: snoozes,
		policy:  snooze.DefaultPolicy(),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, src := range sources {
		if _, exists := d.sources[src.Type()]; !exists {
			d.sources[src.Type()] = src
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "action")
	return d
}

// PerformAction executes req. Every failure is a *DispatchError.
func (d *Dispatcher) PerformAction(ctx context.Context, req Request) (*Outcome, error) {
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return nil, d.fail(req, KindInvalidRequest, errors.New("task id is required"))
	}

	var (
		out *Outcome
		err error
	)
	switch req.Action {
	case ActionArchive:
		out, err = d.archive(ctx, req)
	case ActionComplete:
		out, err = d.complete(ctx, req)
	case ActionSnooze:
		out, err = d.snooze(ctx, req)
	case ActionUnsnooze:
		out, err = d.unsnooze(ctx, req)
	default:
		err = d.fail(req, KindUnsupportedAction, fmt.Errorf("unknown action %q", req.Action))
	}
	if err != nil {
		return nil, err
	}

	attrs := []any{"action", req.Action, "key", req.Key().String()}
	if !out.WakeAt.IsZero() {
		attrs = append(attrs, "wake_at", out.WakeAt)
	}
	d.logger.InfoContext(ctx, "action performed", attrs...)
	return out, nil
}

func (d *Dispatcher) archive(ctx context.Context, req Request) (*Outcome, error) {
	if req.Source == model.SourceTypeDevOps {
		return nil, d.fail(req, KindUnsupportedAction,
			fmt.Errorf("%s has no archive concept", req.Source))
	}
	src, err := d.lookup(req)
	if err != nil {
		return nil, err
	}
	archiver, ok := src.(source.Archiver)
	if !ok {
		return nil, d.fail(req, KindUnsupportedAction,
			fmt.Errorf("%s has no archive concept", req.Source))
	}
	if err := archiver.Archive(ctx, req.ID); err != nil {
		return nil, d.fail(req, KindAdapterFailure, err)
	}
	return &Outcome{Action: req.Action, Key: req.Key()}, nil
}

func (d *Dispatcher) complete(ctx context.Context, req Request) (*Outcome, error) {
	if req.Source.Valid() && req.Source != model.SourceTypeDevOps {
		return nil, d.fail(req, KindUnsupportedAction,
			fmt.Errorf("%s has no terminal state", req.Source))
	}
	src, err := d.lookup(req)
	if err != nil {
		return nil, err
	}
	completer, ok := src.(source.Completer)
	if !ok {
		return nil, d.fail(req, KindUnsupportedAction,
			fmt.Errorf("%s has no terminal state", req.Source))
	}
	if err := completer.Complete(ctx, req.ID); err != nil {
		return nil, d.fail(req, KindAdapterFailure, err)
	}
	return &Outcome{Action: req.Action, Key: req.Key()}, nil
}

// snooze resolves the wake time at call time and writes it to the store.
func (d *Dispatcher) snooze(ctx context.Context, req Request) (*Outcome, error) {
	if !req.Source.Valid() {
		return nil, d.fail(req, KindUnknownSource, fmt.Errorf("unknown source %q", req.Source))
	}
	if d.snoozes == nil {
		return nil, d.fail(req, KindStoreFailure, errors.New("no snooze store configured"))
	}

	now := d.now()
	wakeAt := req.Until
	if wakeAt.IsZero() {
		if req.Preset == "" {
			return nil, d.fail(req, KindInvalidDuration, errors.New("snooze needs a preset or an until time"))
		}
		var err error
		wakeAt, err = d.policy.WakeAt(req.Preset, now)
		if err != nil {
			return nil, d.fail(req, KindInvalidDuration, err)
		}
	}
	if !wakeAt.After(now) {
		return nil, d.fail(req, KindInvalidDuration, store.ErrInvalidDuration)
	}

	if err := d.snoozes.UpsertSnooze(ctx, req.Source, req.ID, wakeAt); err != nil {
		if errors.Is(err, store.ErrInvalidDuration) {
			return nil, d.fail(req, KindInvalidDuration, err)
		}
		return nil, d.fail(req, KindStoreFailure, err)
	}
	return &Outcome{Action: req.Action, Key: req.Key(), WakeAt: wakeAt}, nil
}

func (d *Dispatcher) unsnooze(ctx context.Context, req Request) (*Outcome, error) {
	if !req.Source.Valid() {
		return nil, d.fail(req, KindUnknownSource, fmt.Errorf("unknown source %q", req.Source))
	}
	if d.snoozes == nil {
		return nil, d.fail(req, KindStoreFailure, errors.New("no snooze store configured"))
	}
	if err := d.snoozes.DeleteSnooze(ctx, req.Key()); err != nil {
		return nil, d.fail(req, KindStoreFailure, err)
	}
	return &Outcome{Action: req.Action, Key: req.Key()}, nil
}

func (d *Dispatcher) lookup(req Request) (source.Source, error) {
	src, ok := d.sources[req.Source]
	if !ok {
		return nil, d.fail(req, KindUnknownSource,
			fmt.Errorf("no adapter registered for %q", req.Source))
	}
	return src, nil
}

func (d *Dispatcher) fail(req Request, kind ErrorKind, err error) *DispatchError {
	return &DispatchError{Action: req.Action, Key: req.Key(), Kind: kind, Err: err}
}
