package state

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/opendeck/opendeck/internal/api"
)

// PermissionAPI is the subset of the engine API the gate needs.
type PermissionAPI interface {
	ListPermissions(ctx context.Context) ([]api.Permission, error)
	ReplyPermission(ctx context.Context, requestID, reply string) error
}

// Gate serializes permission replies: only one reply request is in flight at
// a time, a second one arriving meanwhile is dropped rather than queued.
type Gate struct {
	store  *Store
	engine PermissionAPI
	log    *zap.Logger
	busy   atomic.Bool
}

// NewGate creates a reply gate writing through store.
func NewGate(store *Store, engine PermissionAPI, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{store: store, engine: engine, log: log}
}

// Busy reports whether a reply is currently in flight.
func (g *Gate) Busy() bool { return g.busy.Load() }

// Reply answers a pending permission request. On success the pending list is
// re-fetched; a refresh failure is non-fatal since the next permission event
// re-pulls it anyway. The busy flag is released on every path, success or not.
func (g *Gate) Reply(ctx context.Context, requestID, reply string) error {
	if !g.busy.CompareAndSwap(false, true) {
		g.log.Debug("reply dropped, one already in flight", zap.String("request", requestID))
		return nil
	}
	defer g.busy.Store(false)

	if err := g.engine.ReplyPermission(ctx, requestID, reply); err != nil {
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, permissionsTimeout)
	defer cancel()
	perms, err := g.engine.ListPermissions(pctx)
	if err != nil {
		g.log.Warn("permission refresh failed", zap.Error(err))
		return nil
	}
	g.store.MergePermissions(perms)
	return nil
}
