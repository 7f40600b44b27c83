package domain

// Task represents a single entry in the list.
type Task struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
	IsDone  bool   `json:"isDone"`
}

// ActiveView returns the tasks that are not done, in collection order.
func ActiveView(tasks []Task) []Task {
	return filter(tasks, false)
}

// CompletedView returns the done tasks, in collection order.
func CompletedView(tasks []Task) []Task {
	return filter(tasks, true)
}

func filter(tasks []Task, done bool) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsDone == done {
			out = append(out, t)
		}
	}
	return out
}
