package session

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/box129/ToDo-ForPortfolio/domain"
	"github.com/box129/ToDo-ForPortfolio/drag"
)

func newTestSession(t *testing.T) (*Session, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	return New("s1", logger), hook
}

func addAll(s *Session, contents ...string) {
	for _, c := range contents {
		s.SetInput(c)
		s.AddTask()
	}
}

func TestSessionInboundCalls(t *testing.T) {
	s, _ := newTestSession(t)
	addAll(s, "a", "b", "c")

	s.ToggleDone(3)
	s.EditTask(2, "  bee ")
	st := s.DeleteTask(1)

	want := []domain.Task{{ID: 2, Content: "bee"}, {ID: 3, Content: "c", IsDone: true}}
	if !reflect.DeepEqual(st.Tasks, want) {
		t.Fatalf("got %+v, want %+v", st.Tasks, want)
	}
	if !reflect.DeepEqual(s.Snapshot(), st) {
		t.Fatalf("snapshot differs from last returned state")
	}
}

func TestSessionRejectsMalformedReorder(t *testing.T) {
	s, hook := newTestSession(t)
	addAll(s, "a", "b")
	before := s.Snapshot()

	_, err := s.Reorder([]domain.Task{{ID: 1, Content: "a"}, {ID: 1, Content: "a"}})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Fatalf("rejected reorder changed the snapshot")
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && e.Message == "reorder payload rejected" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a warning for the rejected payload")
	}
}

func TestDragGestureResolvesOnce(t *testing.T) {
	s, _ := newTestSession(t)
	addAll(s, "a", "b", "c")
	s.ToggleDone(3)

	s.BeginDrag(1)
	if id, ok := s.Dragging(); !ok || id != 1 {
		t.Fatalf("expected drag marker on 1, got %d %v", id, ok)
	}
	cmd, st := s.EndDrag(drag.CompletedList())
	if cmd != (domain.ToggleDone{ID: 1}) {
		t.Fatalf("unexpected command %#v", cmd)
	}
	if !st.Tasks[0].IsDone {
		t.Fatalf("expected task 1 to be done")
	}
	if _, ok := s.Dragging(); ok {
		t.Fatalf("drag marker not cleared")
	}

	cmd, after := s.EndDrag(drag.ActiveList())
	if cmd != nil || !reflect.DeepEqual(after, st) {
		t.Fatalf("second drag end without start must be a no-op, got %#v", cmd)
	}
}

func TestCancelledDragIsNoop(t *testing.T) {
	s, _ := newTestSession(t)
	addAll(s, "a", "b")
	before := s.Snapshot()

	s.BeginDrag(2)
	s.CancelDrag()
	cmd, st := s.EndDrag(drag.OnTask(1))
	if cmd != nil || !reflect.DeepEqual(before, st) {
		t.Fatalf("cancelled drag resolved to %#v", cmd)
	}
}

func TestResolveDragReorders(t *testing.T) {
	s, _ := newTestSession(t)
	addAll(s, "a", "b", "c")

	cmd, st := s.ResolveDrag(3, drag.OnTask(1))
	if _, ok := cmd.(domain.ReorderTasks); !ok {
		t.Fatalf("expected reorder, got %#v", cmd)
	}
	ids := []int64{st.Tasks[0].ID, st.Tasks[1].ID, st.Tasks[2].ID}
	if !reflect.DeepEqual(ids, []int64{3, 1, 2}) {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestSubscribersSeeChangesOnly(t *testing.T) {
	s, _ := newTestSession(t)
	ch, release := s.Subscribe()
	defer release()

	s.DeleteTask(99)
	select {
	case <-ch:
		t.Fatalf("no-op must not signal subscribers")
	default:
	}

	s.SetInput("a")
	s.AddTask()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected change signal")
	}
	select {
	case <-ch:
		t.Fatalf("signals must coalesce into one pending notification")
	default:
	}
}

func TestConcurrentAddsStayUnique(t *testing.T) {
	s, _ := newTestSession(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SetInput("x")
			s.AddTask()
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, task := range s.Snapshot().Tasks {
		if seen[task.ID] {
			t.Fatalf("duplicate id %d", task.ID)
		}
		seen[task.ID] = true
	}
}
