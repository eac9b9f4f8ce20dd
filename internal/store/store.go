package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/worklist/internal/model"
)

var (
	// ErrInvalidDuration is returned when a snooze would wake at or before
	// the current time. Nothing is written.
	ErrInvalidDuration = errors.New("snooze wake time must be in the future")

	// ErrNotFound is returned when no snooze record exists for a key.
	ErrNotFound = errors.New("snooze not found")
)

// SnoozeStore persists snoozed task keys with their wake times. Expiry is
// evaluated at query time; rows past their wake time are simply ignored
// until CleanupExpired removes them.
type SnoozeStore interface {
	// UpsertSnooze records or replaces the snooze for (source, id).
	UpsertSnooze(ctx context.Context, source model.SourceType, id string, wakeAt time.Time) error

	// ActiveSnoozeKeys returns every key whose wake time is after now.
	ActiveSnoozeKeys(ctx context.Context, now time.Time) (map[model.TaskKey]struct{}, error)

	// CleanupExpired deletes records waking at or before before and
	// reports how many were removed.
	CleanupExpired(ctx context.Context, before time.Time) (int64, error)

	GetSnooze(ctx context.Context, key model.TaskKey) (*model.SnoozedRecord, error)
	ListActive(ctx context.Context, now time.Time) ([]model.SnoozedRecord, error)
	DeleteSnooze(ctx context.Context, key model.TaskKey) error
}
