package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opendeck/opendeck/internal/api"
)

// fakePermissionAPI counts replies and can hold one open.
type fakePermissionAPI struct {
	mu       sync.Mutex
	replies  []string
	replyErr error
	perms    []api.Permission
	gate     chan struct{} // when set, Reply blocks until closed
}

func (f *fakePermissionAPI) ReplyPermission(ctx context.Context, requestID, reply string) error {
	f.mu.Lock()
	f.replies = append(f.replies, requestID+":"+reply)
	gate := f.gate
	err := f.replyErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakePermissionAPI) ListPermissions(ctx context.Context) ([]api.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perms, nil
}

func (f *fakePermissionAPI) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

func TestGateReplyRefreshesPermissions(t *testing.T) {
	engine := &fakePermissionAPI{perms: []api.Permission{{ID: "req2", Title: "next"}}}
	store := NewStore()
	store.MergePermissions([]api.Permission{{ID: "req1"}, {ID: "req2", Title: "next"}})

	g := NewGate(store, engine, nil)
	if err := g.Reply(context.Background(), "req1", api.ReplyOnce); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	perms := store.Permissions()
	if len(perms) != 1 || perms[0].ID != "req2" {
		t.Errorf("permissions after reply = %+v, want only req2", perms)
	}
}

func TestGateDropsDuplicateWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	engine := &fakePermissionAPI{gate: gate}
	store := NewStore()
	g := NewGate(store, engine, nil)

	done := make(chan error, 1)
	go func() { done <- g.Reply(context.Background(), "req1", api.ReplyOnce) }()

	// Wait for the first reply to be in flight.
	for engine.replyCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Second reply while busy: dropped, not queued.
	if err := g.Reply(context.Background(), "req1", api.ReplyReject); err != nil {
		t.Fatalf("duplicate Reply returned error: %v", err)
	}
	if got := engine.replyCount(); got != 1 {
		t.Errorf("engine saw %d replies, want 1 (duplicate dropped)", got)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Reply failed: %v", err)
	}
}

func TestGateReleasesBusyOnFailure(t *testing.T) {
	engine := &fakePermissionAPI{replyErr: errors.New("denied")}
	store := NewStore()
	g := NewGate(store, engine, nil)

	if err := g.Reply(context.Background(), "req1", api.ReplyOnce); err == nil {
		t.Fatal("Reply succeeded, want error")
	}

	// The flag must be released: a later reply goes through.
	engine.mu.Lock()
	engine.replyErr = nil
	engine.mu.Unlock()
	if err := g.Reply(context.Background(), "req1", api.ReplyOnce); err != nil {
		t.Fatalf("Reply after failure did not go through: %v", err)
	}
	if got := engine.replyCount(); got != 2 {
		t.Errorf("engine saw %d replies, want 2", got)
	}
}
