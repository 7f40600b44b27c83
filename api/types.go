package api

import (
	"fmt"

	"github.com/box129/ToDo-ForPortfolio/domain"
)

const maxBodySize = 64 * 1024 // 64 KiB

// commandRequest is one element of the POST /commands body.
type commandRequest struct {
	Type           string        `json:"type"`
	Text           string        `json:"text,omitempty"`
	ID             int64         `json:"id,omitempty"`
	Content        string        `json:"content,omitempty"`
	Tasks          []domain.Task `json:"tasks,omitempty"`
	IdempotencyKey string        `json:"idempotencyKey,omitempty"`
}

func (r commandRequest) toDomain() (domain.Command, error) {
	switch r.Type {
	case domain.CmdSetInput:
		return domain.SetInput{Text: r.Text}, nil
	case domain.CmdAddTask:
		return domain.AddTask{}, nil
	case domain.CmdDeleteTask:
		return domain.DeleteTask{ID: r.ID}, nil
	case domain.CmdToggleDone:
		return domain.ToggleDone{ID: r.ID}, nil
	case domain.CmdEditTask:
		return domain.EditTask{ID: r.ID, Content: r.Content}, nil
	case domain.CmdReorderTasks:
		return domain.ReorderTasks{Tasks: r.Tasks}, nil
	default:
		return nil, fmt.Errorf("unknown command type %q", r.Type)
	}
}

type stateResponse struct {
	SessionID    string        `json:"sessionId"`
	Version      uint64        `json:"version"`
	PendingInput string        `json:"pendingInput"`
	Tasks        []domain.Task `json:"tasks"`
	Active       []domain.Task `json:"active"`
	Completed    []domain.Task `json:"completed"`
}

func newStateResponse(sessionID string, st domain.State) stateResponse {
	tasks := st.Tasks
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return stateResponse{
		SessionID:    sessionID,
		Version:      st.Version(),
		PendingInput: st.PendingInput,
		Tasks:        tasks,
		Active:       st.Active(),
		Completed:    st.Completed(),
	}
}

type commandsResponse struct {
	Applied         int           `json:"applied"`
	Skipped         int           `json:"skipped"`
	IdempotencyKeys []string      `json:"idempotencyKeys,omitempty"`
	State           stateResponse `json:"state"`
	Error           string        `json:"error,omitempty"`
}

type dragStartRequest struct {
	ID int64 `json:"id"`
}

type dragEndRequest struct {
	Over string `json:"over"`
}

type dragResolveRequest struct {
	Dragged int64  `json:"dragged"`
	Over    string `json:"over"`
}

type dragResponse struct {
	Command string        `json:"command,omitempty"`
	State   stateResponse `json:"state"`
}

type tutorialFlag struct {
	Dismissed bool `json:"dismissed"`
}
