package domain

import "strings"

// Apply returns the state that results from running cmd against s.
// Unknown ids, blank input and malformed reorder payloads leave s unchanged.
func Apply(s State, cmd Command) State {
	switch c := cmd.(type) {
	case SetInput:
		if c.Text == s.PendingInput {
			return s
		}
		next := s
		next.PendingInput = c.Text
		return next.bump()
	case AddTask:
		if strings.TrimSpace(s.PendingInput) == "" {
			return s
		}
		id := s.lastID + 1
		tasks := make([]Task, len(s.Tasks), len(s.Tasks)+1)
		copy(tasks, s.Tasks)
		tasks = append(tasks, Task{ID: id, Content: s.PendingInput})
		next := State{Tasks: tasks, lastID: id, version: s.version}
		return next.bump()
	case DeleteTask:
		i := s.IndexOf(c.ID)
		if i < 0 {
			return s
		}
		tasks := make([]Task, 0, len(s.Tasks)-1)
		tasks = append(tasks, s.Tasks[:i]...)
		tasks = append(tasks, s.Tasks[i+1:]...)
		return s.withTasks(tasks)
	case ToggleDone:
		i := s.IndexOf(c.ID)
		if i < 0 {
			return s
		}
		tasks := cloneTasks(s.Tasks)
		tasks[i].IsDone = !tasks[i].IsDone
		return s.withTasks(tasks)
	case EditTask:
		content := strings.TrimSpace(c.Content)
		i := s.IndexOf(c.ID)
		if content == "" || i < 0 || s.Tasks[i].Content == content {
			return s
		}
		tasks := cloneTasks(s.Tasks)
		tasks[i].Content = content
		return s.withTasks(tasks)
	case ReorderTasks:
		if CheckReorder(s.Tasks, c.Tasks) != nil || sameOrder(s.Tasks, c.Tasks) {
			return s
		}
		return s.withTasks(cloneTasks(c.Tasks))
	default:
		return s
	}
}

func (s State) withTasks(tasks []Task) State {
	next := s
	next.Tasks = tasks
	return next.bump()
}

func (s State) bump() State {
	s.version++
	return s
}

func sameOrder(a, b []Task) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
