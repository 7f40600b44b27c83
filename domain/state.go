package domain

import "errors"

// ErrNotPermutation is returned by CheckReorder when a replacement collection
// is not the current one in another order.
var ErrNotPermutation = errors.New("reorder payload is not a permutation of the current tasks")

// State is an immutable snapshot of the list and the pending input.
// Values returned by Apply never share mutable backing arrays with the
// snapshot they were derived from.
type State struct {
	PendingInput string `json:"pendingInput"`
	Tasks        []Task `json:"tasks"`

	lastID  int64
	version uint64
}

// NewState returns the empty initial state.
func NewState() State {
	return State{Tasks: []Task{}}
}

// Restore builds a state from an existing collection. Fresh ids continue
// after the largest id present.
func Restore(pendingInput string, tasks []Task) State {
	s := State{PendingInput: pendingInput, Tasks: cloneTasks(tasks)}
	for _, t := range tasks {
		if t.ID > s.lastID {
			s.lastID = t.ID
		}
	}
	return s
}

// Version counts the effective transitions that produced this snapshot.
// No-op commands leave it unchanged.
func (s State) Version() uint64 { return s.version }

// Active returns the active view of the snapshot.
func (s State) Active() []Task { return ActiveView(s.Tasks) }

// Completed returns the completed view of the snapshot.
func (s State) Completed() []Task { return CompletedView(s.Tasks) }

// IndexOf returns the position of the task with the given id, or -1.
func (s State) IndexOf(id int64) int {
	for i, t := range s.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// CheckReorder reports whether next is a rearrangement of current: every
// current task appears exactly once, with its content and completion flag
// unchanged.
func CheckReorder(current, next []Task) error {
	if len(current) != len(next) {
		return ErrNotPermutation
	}
	pending := make(map[int64]Task, len(current))
	for _, t := range current {
		pending[t.ID] = t
	}
	for _, t := range next {
		if have, ok := pending[t.ID]; !ok || have != t {
			return ErrNotPermutation
		}
		delete(pending, t.ID)
	}
	return nil
}

func cloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
