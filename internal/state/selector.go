package state

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/opendeck/opendeck/internal/api"
)

// Per-step timeouts for a session load. The health probe is short so a dead
// engine fails fast; history can be large and gets the longest budget.
const (
	healthTimeout      = 3 * time.Second
	messagesTimeout    = 12 * time.Second
	todosTimeout       = 8 * time.Second
	permissionsTimeout = 6 * time.Second
)

// ErrConnectionLost is the user-visible failure when the engine does not
// answer the health probe during a session load.
var ErrConnectionLost = errors.New("connection lost")

// Engine is the subset of the engine API the selector needs.
type Engine interface {
	Health(ctx context.Context) error
	Messages(ctx context.Context, sessionID string) ([]api.MessageWithParts, error)
	Todos(ctx context.Context, sessionID string) ([]api.TodoItem, error)
	ListPermissions(ctx context.Context) ([]api.Permission, error)
}

// Selector orchestrates the multi-step load of a session's full state.
// Each step awaits its network call first, then writes through a store
// method that re-checks the selection generation under the store lock, so a
// superseded load stops affecting the store the instant a newer selection
// begins. The generation also distinguishes two selections of the same id in
// quick succession.
type Selector struct {
	store  *Store
	engine Engine
	log    *zap.Logger
	seq    atomic.Uint64 // correlation ids for log lines
}

// NewSelector creates a selector writing through store.
func NewSelector(store *Store, engine Engine, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{store: store, engine: engine, log: log}
}

// Select makes sessionID the selected session and loads its full state:
// health check, message history, derived model, todos, pending permissions.
// Health and history failures abort the load and surface an error; todo and
// permission failures degrade to empty/unchanged results. A nil return with
// a superseded generation means a newer selection took over mid-load.
func (s *Selector) Select(ctx context.Context, sessionID string) error {
	log := s.log.With(
		zap.Uint64("run", s.seq.Add(1)),
		zap.String("session", sessionID),
	)
	gen := s.store.BeginSelection(sessionID)

	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	err := s.engine.Health(hctx)
	cancel()
	if err != nil {
		if s.store.FailSelection(gen, ErrConnectionLost) {
			log.Warn("health check failed", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		return nil
	}
	if !s.store.SelectionIs(gen) {
		return nil
	}

	mctx, cancel := context.WithTimeout(ctx, messagesTimeout)
	history, err := s.engine.Messages(mctx, sessionID)
	cancel()
	if err != nil {
		if s.store.FailSelection(gen, fmt.Errorf("load messages: %w", err)) {
			log.Warn("message fetch failed", zap.Error(err))
			return fmt.Errorf("load messages: %w", err)
		}
		return nil
	}
	if !s.store.ReplaceHistory(gen, sessionID, history) {
		log.Debug("selection superseded during message fetch")
		return nil
	}

	if ref, ok := lastUsedModel(history); ok {
		if !s.store.SetResolvedModel(gen, sessionID, ref) {
			return nil
		}
	}

	tctx, cancel := context.WithTimeout(ctx, todosTimeout)
	todos, err := s.engine.Todos(tctx, sessionID)
	cancel()
	if err != nil {
		// Non-fatal: show an empty list rather than stale todos.
		log.Warn("todo fetch failed", zap.Error(err))
		todos = nil
	}
	if !s.store.SetTodos(gen, sessionID, todos) {
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, permissionsTimeout)
	perms, err := s.engine.ListPermissions(pctx)
	cancel()
	if err != nil {
		log.Warn("permission refresh failed", zap.Error(err))
		return nil
	}
	s.store.MergePermissionsIf(gen, perms)
	return nil
}

// lastUsedModel finds the most recent user message that carried an explicit
// model choice.
func lastUsedModel(history []api.MessageWithParts) (ModelRef, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		info := history[i].Info
		if info.Role == "user" && info.ModelID != "" {
			return ModelRef{ProviderID: info.ProviderID, ModelID: info.ModelID}, true
		}
	}
	return ModelRef{}, false
}
