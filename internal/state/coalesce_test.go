package state

import (
	"sync"
	"testing"
	"time"

	"github.com/opendeck/opendeck/internal/api"
)

// batchCollector records flushed batches for assertions.
type batchCollector struct {
	mu      sync.Mutex
	batches [][]Event
}

func (b *batchCollector) apply(batch []Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]Event, len(batch))
	copy(cp, batch)
	b.batches = append(b.batches, cp)
}

func (b *batchCollector) all() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, batch := range b.batches {
		out = append(out, batch...)
	}
	return out
}

func (b *batchCollector) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

func TestCoalesceSameKeyKeepsLatest(t *testing.T) {
	col := &batchCollector{}
	c := NewCoalescer(time.Hour, col.apply) // timer never fires during the test

	c.Add(SessionStatusChanged{SessionID: "s1", Status: "running"})
	c.Add(SessionStatusChanged{SessionID: "s1", Status: "idle"})
	c.Flush()

	events := col.all()
	if len(events) != 1 {
		t.Fatalf("flushed %d events, want 1", len(events))
	}
	got, ok := events[0].(SessionStatusChanged)
	if !ok || got.Status != "idle" {
		t.Errorf("surviving event = %#v, want latest status idle", events[0])
	}
}

func TestCoalesceDistinctKeysAllSurviveInOrder(t *testing.T) {
	col := &batchCollector{}
	c := NewCoalescer(time.Hour, col.apply)

	c.Add(SessionStatusChanged{SessionID: "s1", Status: "running"})
	c.Add(SessionStatusChanged{SessionID: "s2", Status: "running"})
	c.Add(SessionStatusChanged{SessionID: "s3", Status: "running"})
	c.Flush()

	events := col.all()
	if len(events) != 3 {
		t.Fatalf("flushed %d events, want 3", len(events))
	}
	for i, wantID := range []string{"s1", "s2", "s3"} {
		if got := events[i].(SessionStatusChanged).SessionID; got != wantID {
			t.Errorf("events[%d].SessionID = %q, want %q (arrival order)", i, got, wantID)
		}
	}
}

func TestCoalesceUnkeyedEventsNeverCollapse(t *testing.T) {
	col := &batchCollector{}
	c := NewCoalescer(time.Hour, col.apply)

	c.Add(MessageUpserted{Info: api.MessageInfo{ID: "m1", SessionID: "s1", Role: "user"}})
	c.Add(MessageUpserted{Info: api.MessageInfo{ID: "m1", SessionID: "s1", Role: "user"}})
	c.Flush()

	if got := len(col.all()); got != 2 {
		t.Errorf("flushed %d message events, want 2 (never coalesced)", got)
	}
}

func TestCoalescePartEventsKeyedByMessageAndPart(t *testing.T) {
	col := &batchCollector{}
	c := NewCoalescer(time.Hour, col.apply)

	c.Add(PartUpserted{Part: api.Part{ID: "p1", MessageID: "m1", Type: "text", Text: "a"}})
	c.Add(PartUpserted{Part: api.Part{ID: "p2", MessageID: "m1", Type: "text", Text: "x"}})
	c.Add(PartUpserted{Part: api.Part{ID: "p1", MessageID: "m1", Type: "text", Text: "ab"}})
	c.Flush()

	events := col.all()
	if len(events) != 2 {
		t.Fatalf("flushed %d events, want 2 (p1 collapsed)", len(events))
	}
	// p1 was superseded in place, so p2 keeps its position before the
	// surviving p1 payload.
	if got := events[0].(PartUpserted).Part.ID; got != "p2" {
		t.Errorf("events[0] part = %q, want p2", got)
	}
	p1 := events[1].(PartUpserted)
	if p1.Part.ID != "p1" || p1.Part.Text != "ab" {
		t.Errorf("events[1] = %#v, want latest p1 payload", p1)
	}
}

func TestFlushTimerFires(t *testing.T) {
	col := &batchCollector{}
	c := NewCoalescer(5*time.Millisecond, col.apply)
	defer c.Close()

	c.Add(SessionIdled{SessionID: "s1"})

	deadline := time.After(time.Second)
	for col.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timer flush never fired")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCloseFlushesBufferedEventsExactlyOnce(t *testing.T) {
	col := &batchCollector{}
	c := NewCoalescer(time.Hour, col.apply) // teardown before the timer fires

	c.Add(SessionStatusChanged{SessionID: "s1", Status: "running"})
	c.Add(TodosReplaced{SessionID: "s1", Todos: []api.TodoItem{{ID: "t1"}}})
	c.Close()

	if got := len(col.all()); got != 2 {
		t.Fatalf("teardown flushed %d events, want 2", got)
	}

	// Nothing further may be applied after close.
	c.Add(SessionIdled{SessionID: "s1"})
	c.Flush()
	if got := len(col.all()); got != 2 {
		t.Errorf("events applied after Close: got %d total, want 2", got)
	}
}

func TestStatusBurstScenario(t *testing.T) {
	store := NewStore()
	c := NewCoalescer(time.Hour, func(batch []Event) { store.ApplyBatch(batch) })

	c.Add(SessionStatusChanged{SessionID: "s1", Status: "running"})
	c.Add(SessionStatusChanged{SessionID: "s1", Status: "idle"})
	c.Flush()

	if got := store.Status("s1"); got != "idle" {
		t.Errorf("status after burst = %q, want idle (last write wins)", got)
	}
}
