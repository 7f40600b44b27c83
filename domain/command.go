package domain

// Command types as they appear on the wire.
const (
	CmdSetInput     = "set-input"
	CmdAddTask      = "add-task"
	CmdDeleteTask   = "delete-task"
	CmdToggleDone   = "toggle-done"
	CmdEditTask     = "edit-task"
	CmdReorderTasks = "reorder-tasks"
)

// Command is a state transition understood by Apply. The set is closed:
// only the types declared in this file implement it.
type Command interface {
	// Type returns the wire name of the command.
	Type() string
	command()
}

// SetInput replaces the pending input text.
type SetInput struct {
	Text string
}

// AddTask appends a task built from the pending input.
type AddTask struct{}

// DeleteTask removes the task with the given id.
type DeleteTask struct {
	ID int64
}

// ToggleDone flips the completion flag of the task with the given id.
type ToggleDone struct {
	ID int64
}

// EditTask replaces the content of the task with the given id.
type EditTask struct {
	ID      int64
	Content string
}

// ReorderTasks replaces the whole collection with a permutation of it.
type ReorderTasks struct {
	Tasks []Task
}

func (SetInput) Type() string     { return CmdSetInput }
func (AddTask) Type() string      { return CmdAddTask }
func (DeleteTask) Type() string   { return CmdDeleteTask }
func (ToggleDone) Type() string   { return CmdToggleDone }
func (EditTask) Type() string     { return CmdEditTask }
func (ReorderTasks) Type() string { return CmdReorderTasks }

func (SetInput) command()     {}
func (AddTask) command()      {}
func (DeleteTask) command()   {}
func (ToggleDone) command()   {}
func (EditTask) command()     {}
func (ReorderTasks) command() {}
