// Package session serializes commands against one live task list snapshot.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/box129/ToDo-ForPortfolio/domain"
	"github.com/box129/ToDo-ForPortfolio/drag"
)

var (
	// ErrNotFound is returned when no session has the requested id.
	ErrNotFound = errors.New("session not found")
	// ErrRejected is returned for commands whose payload would break the
	// list invariants. The snapshot is left untouched.
	ErrRejected = errors.New("command rejected")
)

// Session owns the current snapshot of one editor. Every call runs to
// completion before the next one starts.
type Session struct {
	id  string
	log *log.Entry
	now func() time.Time

	mu       sync.Mutex
	state    domain.State
	dragging int64
	hasDrag  bool
	lastUsed time.Time

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// New creates a session holding the empty initial state.
func New(id string, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Session{
		id:    id,
		log:   logger.WithField("session", id),
		now:   time.Now,
		state: domain.NewState(),
		subs:  make(map[chan struct{}]struct{}),
	}
	s.lastUsed = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current state.
func (s *Session) Snapshot() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies cmd and returns the resulting snapshot. A reorder payload
// that is not a permutation of the current tasks is refused with
// ErrRejected.
func (s *Session) Dispatch(cmd domain.Command) (domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(cmd)
}

func (s *Session) dispatchLocked(cmd domain.Command) (domain.State, error) {
	s.lastUsed = s.now()
	if cmd == nil {
		return s.state, nil
	}
	if r, ok := cmd.(domain.ReorderTasks); ok {
		if err := domain.CheckReorder(s.state.Tasks, r.Tasks); err != nil {
			s.log.WithFields(log.Fields{"current": len(s.state.Tasks), "payload": len(r.Tasks)}).Warn("reorder payload rejected")
			return s.state, fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}
	prev := s.state
	s.state = domain.Apply(prev, cmd)
	changed := s.state.Version() != prev.Version()
	s.log.WithFields(log.Fields{"command": cmd.Type(), "changed": changed, "version": s.state.Version()}).Debug("command applied")
	if changed {
		s.notify()
	}
	return s.state, nil
}

// SetInput stages text for the next AddTask.
func (s *Session) SetInput(text string) domain.State {
	st, _ := s.Dispatch(domain.SetInput{Text: text})
	return st
}

// AddTask appends the pending input as a new task.
func (s *Session) AddTask() domain.State {
	st, _ := s.Dispatch(domain.AddTask{})
	return st
}

// DeleteTask removes the task with the given id.
func (s *Session) DeleteTask(id int64) domain.State {
	st, _ := s.Dispatch(domain.DeleteTask{ID: id})
	return st
}

// ToggleDone flips the completion flag of a task.
func (s *Session) ToggleDone(id int64) domain.State {
	st, _ := s.Dispatch(domain.ToggleDone{ID: id})
	return st
}

// EditTask replaces the content of a task. Blank content is ignored.
func (s *Session) EditTask(id int64, content string) domain.State {
	st, _ := s.Dispatch(domain.EditTask{ID: id, Content: content})
	return st
}

// Reorder replaces the collection with a permutation of it.
func (s *Session) Reorder(tasks []domain.Task) (domain.State, error) {
	return s.Dispatch(domain.ReorderTasks{Tasks: tasks})
}

// ResolveDrag resolves a drop and applies the resulting command, if any.
// The returned command is nil when the drop changed nothing.
func (s *Session) ResolveDrag(draggedID int64, target drag.Target) (domain.Command, domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(draggedID, target)
}

func (s *Session) resolveLocked(draggedID int64, target drag.Target) (domain.Command, domain.State) {
	cmd := drag.Resolve(s.state, draggedID, target)
	s.log.WithFields(log.Fields{"dragged": draggedID, "over": target.String(), "resolved": cmd != nil}).Debug("drag resolved")
	if cmd == nil {
		s.lastUsed = s.now()
		return nil, s.state
	}
	st, _ := s.dispatchLocked(cmd)
	return cmd, st
}

// BeginDrag marks id as the task being dragged.
func (s *Session) BeginDrag(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging, s.hasDrag = id, true
	s.lastUsed = s.now()
}

// Dragging returns the id of the task being dragged, if any.
func (s *Session) Dragging() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging, s.hasDrag
}

// EndDrag clears the drag marker and resolves the drop. Without a
// preceding BeginDrag nothing happens.
func (s *Session) EndDrag(target drag.Target) (domain.Command, domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasDrag {
		return nil, s.state
	}
	id := s.dragging
	s.dragging, s.hasDrag = 0, false
	return s.resolveLocked(id, target)
}

// CancelDrag clears the drag marker without resolving anything.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging, s.hasDrag = 0, false
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.now()
	s.mu.Unlock()
}
