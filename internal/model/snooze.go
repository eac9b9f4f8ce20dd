package model

import "time"

// SnoozedRecord suppresses one task from the worklist until WakeAt.
type SnoozedRecord struct {
	Source    SourceType `db:"source" json:"source"`
	ID        string     `db:"id" json:"id"`
	WakeAt    time.Time  `db:"-" json:"wake_at"`
	CreatedAt time.Time  `db:"-" json:"created_at"`
}

// Key returns the identity key of the snoozed task.
func (r SnoozedRecord) Key() TaskKey {
	return TaskKey{Source: r.Source, ID: r.ID}
}

// ActiveAt reports whether the record still suppresses its task at now.
func (r SnoozedRecord) ActiveAt(now time.Time) bool {
	return now.Before(r.WakeAt)
}
