package state

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opendeck/opendeck/internal/api"
)

// EventSource is an abortable stream of raw envelopes. Events is closed when
// the stream ends; Err reports why (nil for a clean cancellation).
type EventSource interface {
	Events() <-chan api.Envelope
	Err() error
}

// PermissionLister re-fetches the pending permission list from the engine.
type PermissionLister interface {
	ListPermissions(ctx context.Context) ([]api.Permission, error)
}

// Consumer drives the event path: envelopes are normalized, coalesced and
// reconciled into the store one atomic batch per flush.
type Consumer struct {
	store    *Store
	perms    PermissionLister
	interval time.Duration
	log      *zap.Logger
}

// NewConsumer wires a consumer to a store. flushInterval <= 0 uses the default.
func NewConsumer(store *Store, perms PermissionLister, flushInterval time.Duration, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{store: store, perms: perms, interval: flushInterval, log: log}
}

// Run consumes the stream until the context is cancelled or the stream fails.
// The coalescer lives for one stream: it is created here and closed with one
// final synchronous flush on teardown, so nothing buffered is lost and a
// later Run against a reconnected stream starts fresh. A cancellation ends
// the loop silently; any other stream error is returned for the UI to surface.
func (c *Consumer) Run(ctx context.Context, src EventSource) error {
	coal := NewCoalescer(c.interval, c.applyBatch)
	defer c.store.SetConnected(false)
	defer coal.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-src.Events():
			if !ok {
				if err := src.Err(); err != nil {
					return fmt.Errorf("event stream: %w", err)
				}
				return nil
			}
			ev, recognized := Normalize(env)
			if !recognized {
				c.log.Debug("dropped envelope", zap.String("type", string(env.Type)))
				continue
			}
			coal.Add(ev)
		}
	}
}

// applyBatch is the coalescer's flush target. Permission notices in the batch
// trigger an asynchronous re-fetch of the pending permission list; the fetch
// never happens under the store lock.
func (c *Consumer) applyBatch(batch []Event) {
	if c.store.ApplyBatch(batch) {
		go c.refreshPermissions()
	}
}

func (c *Consumer) refreshPermissions() {
	ctx, cancel := context.WithTimeout(context.Background(), permissionsTimeout)
	defer cancel()
	perms, err := c.perms.ListPermissions(ctx)
	if err != nil {
		c.log.Warn("permission refresh failed", zap.Error(err))
		return
	}
	c.store.MergePermissions(perms)
}
