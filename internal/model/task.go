package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceType identifies the origin system of a task.
type SourceType string

const (
	SourceTypeGmail   SourceType = "gmail"
	SourceTypeOutlook SourceType = "outlook"
	SourceTypeDevOps  SourceType = "devops"
)

// Placeholders substituted for fields missing from a raw payload.
const (
	NoSubject    = "(No Subject)"
	NoTitle      = "(Untitled)"
	UnknownActor = "Unknown"

	UnknownIdentifier = "(unknown)"
)

// Valid reports whether st is one of the known source types.
func (st SourceType) Valid() bool {
	switch st {
	case SourceTypeGmail, SourceTypeOutlook, SourceTypeDevOps:
		return true
	default:
		return false
	}
}

// TaskKey is the global identity of a task. IDs are only unique within
// their source, so the pair is required.
type TaskKey struct {
	Source SourceType `json:"source"`
	ID     string     `json:"id"`
}

func (k TaskKey) String() string {
	return string(k.Source) + ":" + k.ID
}

// ParseTaskKey parses the "source:id" form produced by TaskKey.String.
// Only the first colon separates the parts; ids may contain colons.
func ParseTaskKey(s string) (TaskKey, error) {
	src, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || id == "" {
		return TaskKey{}, fmt.Errorf("task key %q must be source:id", s)
	}
	key := TaskKey{Source: SourceType(strings.ToLower(src)), ID: id}
	if !key.Source.Valid() {
		return TaskKey{}, fmt.Errorf("task key %q: unknown source %q", s, src)
	}
	return key, nil
}

// Flags holds the semantic booleans derived from each source's native
// markers.
type Flags struct {
	Important bool `json:"is_important"`
	Flagged   bool `json:"is_flagged"`
	Read      bool `json:"is_read"`
}

// Task is the unified representation of an actionable item from any
// source. A Task is never modified after an adapter builds it; state
// changes arrive through a new fetch.
type Task struct {
	// ID is the item's identifier within its source system
	// (Gmail message id, Graph message id, work item number).
	ID string `json:"id"`

	// Source identifies which integration produced this task.
	Source SourceType `json:"source"`

	// Title is the subject line or work-item title.
	Title string `json:"title"`

	// ActorName is the display name of the sender or assignee.
	ActorName string `json:"actor_name"`

	// ActorIdentifier is the address or handle of the sender or assignee.
	ActorIdentifier string `json:"actor_identifier"`

	// Timestamp is when the item was received or created.
	Timestamp time.Time `json:"timestamp"`

	// Summary is a short preview of the body.
	Summary string `json:"summary"`

	Flags Flags `json:"flags"`

	// URL links back to the item in its source, when known.
	URL string `json:"url,omitempty"`
}

// Key returns the global identity key of the task.
func (t Task) Key() TaskKey {
	return TaskKey{Source: t.Source, ID: t.ID}
}
