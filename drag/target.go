// Package drag decides which list command a finished drag gesture issues.
package drag

import (
	"fmt"
	"strconv"
	"strings"
)

// Container identifiers used by the UI for the two drop zones.
const (
	ActiveListID    = "active-list"
	CompletedListID = "completed-list"
)

// Kind tells what a drop landed on.
type Kind int

const (
	KindNowhere Kind = iota
	KindActiveList
	KindCompletedList
	KindTask
)

// Target is the element under the pointer when a drag ends.
type Target struct {
	Kind   Kind
	TaskID int64
}

// Nowhere is a drop outside every recognised zone.
func Nowhere() Target { return Target{Kind: KindNowhere} }

// ActiveList is a drop on the active container.
func ActiveList() Target { return Target{Kind: KindActiveList} }

// CompletedList is a drop on the completed container.
func CompletedList() Target { return Target{Kind: KindCompletedList} }

// OnTask is a drop on the task with the given id.
func OnTask(id int64) Target { return Target{Kind: KindTask, TaskID: id} }

// ParseTarget converts the identifier reported by the UI into a Target.
// An empty string means the item was dropped nowhere.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		return Nowhere(), nil
	case ActiveListID:
		return ActiveList(), nil
	case CompletedListID:
		return CompletedList(), nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Target{}, fmt.Errorf("invalid drop target %q", raw)
	}
	return OnTask(id), nil
}

func (t Target) String() string {
	switch t.Kind {
	case KindActiveList:
		return ActiveListID
	case KindCompletedList:
		return CompletedListID
	case KindTask:
		return strconv.FormatInt(t.TaskID, 10)
	default:
		return ""
	}
}
