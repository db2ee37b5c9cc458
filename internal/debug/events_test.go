package debug

import (
	"testing"
	"time"
)

func TestCreateEmitsExecutionStarted(t *testing.T) {
	st := NewStore()
	s := st.Create("rule \"R\" {}", 1, 2, map[string]interface{}{"a": 1})
	if s == nil {
		t.Fatal("expected session")
	}
	if len(s.Events) != 1 || s.Events[0].Kind != ExecutionStarted {
		t.Fatalf("expected one ExecutionStarted event, got %+v", s.Events)
	}
}

func TestDisabledStoreSkipsSessions(t *testing.T) {
	st := NewStore()
	st.Disable()
	s := st.Create("rule \"R\" {}", 1, 1, nil)
	if s != nil {
		t.Fatal("expected nil session when disabled")
	}
}

func TestCompleteSetsStatusAndEvent(t *testing.T) {
	st := NewStore()
	s := st.Create("rule \"R\" {}", 1, 1, nil)
	st.Complete(s, 3, 2, 1000, map[string]interface{}{"x": true})
	if s.Status != StatusCompleted {
		t.Fatalf("expected Completed, got %v", s.Status)
	}
	last := s.Events[len(s.Events)-1]
	if last.Kind != ExecutionCompleted {
		t.Fatalf("expected last event ExecutionCompleted, got %v", last.Kind)
	}
}

func TestListPagination(t *testing.T) {
	st := NewStore()
	for i := 0; i < 5; i++ {
		st.Create("rule \"R\" {}", 1, 1, nil)
		time.Sleep(time.Millisecond)
	}
	page, total := st.List(0, 2)
	if total != 5 || len(page) != 2 {
		t.Fatalf("expected total=5 page=2, got total=%d len=%d", total, len(page))
	}
}

func TestDeleteAndClear(t *testing.T) {
	st := NewStore()
	s := st.Create("rule \"R\" {}", 1, 1, nil)
	st.Delete(s.ID)
	if _, ok := st.Get(s.ID); ok {
		t.Fatal("expected session to be deleted")
	}
	st.Create("rule \"R\" {}", 1, 1, nil)
	st.Clear()
	_, total := st.List(0, 10)
	if total != 0 {
		t.Fatalf("expected empty store after Clear, got %d", total)
	}
}

func TestExpireOlderThan(t *testing.T) {
	st := NewStore()
	s := st.Create("rule \"R\" {}", 1, 1, nil)
	st.Complete(s, 0, 0, 0, nil)
	removed := st.ExpireOlderThan(time.Now().Add(time.Hour))
	if removed != 1 {
		t.Fatalf("expected 1 session expired, got %d", removed)
	}
}
