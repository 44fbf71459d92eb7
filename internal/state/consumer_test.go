package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opendeck/opendeck/internal/api"
)

// fakeSource feeds envelopes to a consumer and ends with a fixed error.
type fakeSource struct {
	ch  chan api.Envelope
	err error
}

func newFakeSource(err error) *fakeSource {
	return &fakeSource{ch: make(chan api.Envelope, 16), err: err}
}

func (f *fakeSource) Events() <-chan api.Envelope { return f.ch }
func (f *fakeSource) Err() error                  { return f.err }

func (f *fakeSource) send(typ api.EventType, props string) {
	f.ch <- api.Envelope{Type: typ, Properties: json.RawMessage(props)}
}

type staticPerms struct {
	mu    sync.Mutex
	calls int
	perms []api.Permission
}

func (s *staticPerms) ListPermissions(ctx context.Context) ([]api.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.perms, nil
}

func TestConsumerAppliesEventsBeforeTeardown(t *testing.T) {
	store := NewStore()
	c := NewConsumer(store, &staticPerms{}, time.Hour, nil) // flush only at teardown

	src := newFakeSource(nil)
	src.send(api.EventSessionCreated, `{"info":{"id":"s1","title":"one"}}`)
	src.send(api.EventSessionStatus, `{"sessionID":"s1","status":"running"}`)
	src.send(api.EventSessionStatus, `{"sessionID":"s1","status":"idle"}`)
	src.send("bogus.event", `{}`)
	close(src.ch)

	if err := c.Run(context.Background(), src); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Teardown flush must have applied everything buffered exactly once.
	if got := len(store.Sessions()); got != 1 {
		t.Errorf("got %d sessions, want 1", got)
	}
	if got := store.Status("s1"); got != "idle" {
		t.Errorf("status = %q, want idle (coalesced to latest)", got)
	}
}

func TestConsumerSurfacesStreamFailure(t *testing.T) {
	store := NewStore()
	c := NewConsumer(store, &staticPerms{}, time.Hour, nil)

	src := newFakeSource(errors.New("connection reset"))
	src.send(api.EventServerConnected, `{}`)
	close(src.ch)

	err := c.Run(context.Background(), src)
	if err == nil {
		t.Fatal("Run swallowed a stream failure")
	}
	if store.Connected() {
		t.Error("store still connected after stream failure")
	}
}

func TestConsumerSwallowsCancellation(t *testing.T) {
	store := NewStore()
	c := NewConsumer(store, &staticPerms{}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	src := newFakeSource(nil)

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, src) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancellation, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestConsumerSurvivesReconnect(t *testing.T) {
	store := NewStore()
	c := NewConsumer(store, &staticPerms{}, time.Hour, nil)

	first := newFakeSource(errors.New("connection reset"))
	first.send(api.EventSessionCreated, `{"info":{"id":"s1","title":"one"}}`)
	close(first.ch)
	if err := c.Run(context.Background(), first); err == nil {
		t.Fatal("Run swallowed the first stream's failure")
	}

	// A new stream after a transient failure must still reach the store.
	second := newFakeSource(nil)
	second.send(api.EventSessionCreated, `{"info":{"id":"s2","title":"two"}}`)
	second.send(api.EventSessionStatus, `{"sessionID":"s2","status":"running"}`)
	close(second.ch)
	if err := c.Run(context.Background(), second); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	if got := len(store.Sessions()); got != 2 {
		t.Fatalf("got %d sessions after reconnect, want 2", got)
	}
	if got := store.Status("s2"); got != "running" {
		t.Errorf("status = %q, want running", got)
	}
}

func TestConsumerTriggersPermissionRefresh(t *testing.T) {
	store := NewStore()
	perms := &staticPerms{perms: []api.Permission{{ID: "req1", Title: "write"}}}
	c := NewConsumer(store, perms, time.Hour, nil)

	src := newFakeSource(nil)
	src.send(api.EventPermissionAsked, `{}`)
	close(src.ch)

	if err := c.Run(context.Background(), src); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// The refresh runs asynchronously after the batch.
	deadline := time.After(time.Second)
	for len(store.Permissions()) == 0 {
		select {
		case <-deadline:
			t.Fatal("permission refresh never landed")
		case <-time.After(time.Millisecond):
		}
	}
	if got := store.Permissions()[0].ID; got != "req1" {
		t.Errorf("permission id = %q, want req1", got)
	}
}
