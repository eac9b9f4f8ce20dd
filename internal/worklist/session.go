package worklist

import (
	"context"
	"sync"
	"time"

	"github.com/nhle/worklist/internal/model"
)

// Session is caller-owned view state: the last aggregation result and
// when it was taken. It replaces any process-wide "last refresh" global.
type Session struct {
	mu   sync.RWMutex
	last *Result
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Refresh runs one aggregation pass and stores its result. On failure the
// previous result is kept.
func (s *Session) Refresh(ctx context.Context, e *Engine) (*Result, error) {
	res, err := e.GetUnifiedWorklist(ctx)
	if err != nil {
		return nil, err
	}
	s.Update(res)
	return res, nil
}

// Update replaces the stored result.
func (s *Session) Update(r *Result) {
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
}

// Last returns the stored result, or nil before the first refresh.
func (s *Session) Last() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Tasks returns the stored worklist.
func (s *Session) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	return s.last.Tasks
}

// LastRefresh returns when the stored result was taken.
func (s *Session) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return time.Time{}
	}
	return s.last.RefreshedAt
}

// Remove drops the task with key from the view after a successful action.
// The stored result is replaced by a copy; slices previously handed out
// are left untouched. It reports whether the task was present.
func (s *Session) Remove(key model.TaskKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return false
	}

	tasks := make([]model.Task, 0, len(s.last.Tasks))
	found := false
	for _, t := range s.last.Tasks {
		if t.Key() == key {
			found = true
			continue
		}
		tasks = append(tasks, t)
	}
	if !found {
		return false
	}

	next := *s.last
	next.Tasks = tasks
	s.last = &next
	return true
}
