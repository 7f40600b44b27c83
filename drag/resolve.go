package drag

import "github.com/box129/ToDo-ForPortfolio/domain"

// Resolve maps a drop of draggedID onto target to at most one command.
// A nil result means the drop changes nothing.
//
// Dropping on the other list, or on a task of the other list, toggles the
// dragged task. Dropping on a different task of the same list moves the
// dragged task to that task's position.
func Resolve(s domain.State, draggedID int64, target Target) domain.Command {
	from := s.IndexOf(draggedID)
	if from < 0 || target.Kind == KindNowhere {
		return nil
	}
	dragged := s.Tasks[from]

	over := -1
	if target.Kind == KindTask {
		over = s.IndexOf(target.TaskID)
		if over < 0 {
			return nil
		}
	}

	if !dragged.IsDone && (target.Kind == KindCompletedList || over >= 0 && s.Tasks[over].IsDone) {
		return domain.ToggleDone{ID: draggedID}
	}
	if dragged.IsDone && (target.Kind == KindActiveList || over >= 0 && !s.Tasks[over].IsDone) {
		return domain.ToggleDone{ID: draggedID}
	}

	if over < 0 || over == from || s.Tasks[over].IsDone != dragged.IsDone {
		return nil
	}
	return domain.ReorderTasks{Tasks: Move(s.Tasks, from, over)}
}

// Move returns a copy of tasks with the element at from moved to index to;
// the elements in between shift by one. Out of range indexes yield an
// unchanged copy.
func Move(tasks []domain.Task, from, to int) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out
}
