package state

import (
	"sort"
	"sync"
	"time"

	"github.com/opendeck/opendeck/internal/api"
)

// MessageKind distinguishes a message whose metadata arrived from the engine
// from one synthesized locally because a part event got here first.
type MessageKind int

const (
	// MessagePlaceholder is synthesized when a part arrives before its
	// owning message's metadata. It carries the id, the session and an
	// assistant role, nothing else.
	MessagePlaceholder MessageKind = iota
	// MessageReal carries full metadata delivered by the engine.
	MessageReal
)

// Message is one entry in a session's message list.
type Message struct {
	Kind MessageKind
	Info api.MessageInfo
}

// PendingPermission is a permission request plus the local time it was first
// seen. ReceivedAt survives refreshes keyed by request id.
type PendingPermission struct {
	api.Permission
	ReceivedAt time.Time
}

// ModelRef identifies a provider/model pair.
type ModelRef struct {
	ProviderID string
	ModelID    string
}

// Store is the normalized mirror of engine state. It is single-writer per
// logical update: the reconciler applies event batches, the selector and the
// permission gate apply request-driven changes. Every write is one synchronous
// critical section; nothing awaits while the lock is held. Readers see either
// the state before a batch or after it, never the middle.
type Store struct {
	mu sync.RWMutex

	sessions    []api.Session                 // sorted by id
	statuses    map[string]string             // session id → status
	messages    map[string][]Message          // session id → messages sorted by id
	parts       map[string][]api.Part         // message id → parts sorted by id
	todos       map[string][]api.TodoItem     // session id
	permissions []PendingPermission           // arrival order
	models      map[string]ModelRef           // session id → resolved model
	overrides   map[string]ModelRef           // session id → manual model choice

	connected  bool
	selected   string
	generation uint64
	selErr     error

	notify func()
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		statuses:  make(map[string]string),
		messages:  make(map[string][]Message),
		parts:     make(map[string][]api.Part),
		todos:     make(map[string][]api.TodoItem),
		models:    make(map[string]ModelRef),
		overrides: make(map[string]ModelRef),
		now:       time.Now,
	}
}

// SetNotify registers a hook invoked after every atomic update. The hook runs
// outside the store lock and must be safe to call from multiple goroutines.
func (s *Store) SetNotify(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *Store) notifyChanged() {
	s.mu.RLock()
	fn := s.notify
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// --- readers ---

// Sessions returns all sessions sorted by id.
func (s *Store) Sessions() []api.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Session returns one session by id.
func (s *Store) Session(id string) (api.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := findSession(s.sessions, id)
	if !ok {
		return api.Session{}, false
	}
	return s.sessions[i], true
}

// Status returns a session's status, defaulting to idle when unknown.
func (s *Store) Status(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.statuses[sessionID]; ok {
		return st
	}
	return api.StatusIdle
}

// Messages returns a session's message list sorted by id.
func (s *Store) Messages(sessionID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.messages[sessionID]
	out := make([]Message, len(src))
	copy(out, src)
	return out
}

// Parts returns a message's part list sorted by id.
func (s *Store) Parts(messageID string) []api.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.parts[messageID]
	out := make([]api.Part, len(src))
	copy(out, src)
	return out
}

// Todos returns a session's todo list.
func (s *Store) Todos(sessionID string) []api.TodoItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.todos[sessionID]
	out := make([]api.TodoItem, len(src))
	copy(out, src)
	return out
}

// Permissions returns pending permission requests in arrival order.
func (s *Store) Permissions() []PendingPermission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PendingPermission, len(s.permissions))
	copy(out, s.permissions)
	return out
}

// ResolvedModel returns the model to use for a session: a manual override if
// one is set, otherwise the model derived from the session's history.
func (s *Store) ResolvedModel(sessionID string) (ModelRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ref, ok := s.overrides[sessionID]; ok {
		return ref, true
	}
	ref, ok := s.models[sessionID]
	return ref, ok
}

// Connected reports whether the event stream is live.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Selected returns the currently selected session id, empty when none.
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SelectionError returns the error of the last failed selection, if any.
func (s *Store) SelectionError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selErr
}

// SelectionIs reports whether gen is still the current selection generation.
func (s *Store) SelectionIs(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation == gen
}

// --- event-driven writes (reconciler) ---

// ApplyBatch reconciles one coalesced flush into the store as a single
// atomic update. It returns true when the batch contained a permission
// notice, meaning the pending permission list must be re-fetched.
func (s *Store) ApplyBatch(events []Event) (permissionRefresh bool) {
	if len(events) == 0 {
		return false
	}
	s.mu.Lock()
	for _, e := range events {
		if s.applyLocked(e) {
			permissionRefresh = true
		}
	}
	s.mu.Unlock()
	s.notifyChanged()
	return permissionRefresh
}

// --- request-driven writes (selector, gate, explicit refresh) ---

// ReplaceSessions installs the result of an explicit session list refresh.
func (s *Store) ReplaceSessions(sessions []api.Session) {
	sorted := make([]api.Session, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	s.mu.Lock()
	s.sessions = sorted
	s.mu.Unlock()
	s.notifyChanged()
}

// SetConnected marks the event stream live or lost.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	s.mu.Unlock()
	if changed {
		s.notifyChanged()
	}
}

// SetModelOverride records a manual model choice for a session.
func (s *Store) SetModelOverride(sessionID string, ref ModelRef) {
	s.mu.Lock()
	s.overrides[sessionID] = ref
	s.mu.Unlock()
	s.notifyChanged()
}

// BeginSelection marks sessionID as selected, clears any selection error and
// returns the new selection generation. Every later write belonging to this
// selection must present the returned generation; a write presenting a stale
// generation is refused, which is how a superseded load stops affecting the
// store without being forcibly cancelled.
func (s *Store) BeginSelection(sessionID string) uint64 {
	s.mu.Lock()
	s.selected = sessionID
	s.generation++
	s.selErr = nil
	gen := s.generation
	s.mu.Unlock()
	s.notifyChanged()
	return gen
}

// FailSelection records a fatal selection error if gen is still current.
func (s *Store) FailSelection(gen uint64, err error) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	s.selErr = err
	s.mu.Unlock()
	s.notifyChanged()
	return true
}

// ReplaceHistory replaces a session's message and part lists wholesale with
// fetched history, if gen is still current. The staleness check and the write
// happen under one lock acquisition, so a selection change can never slip in
// between check and write.
func (s *Store) ReplaceHistory(gen uint64, sessionID string, history []api.MessageWithParts) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	for _, m := range s.messages[sessionID] {
		delete(s.parts, m.Info.ID)
	}
	msgs := make([]Message, 0, len(history))
	for _, h := range history {
		msgs = append(msgs, Message{Kind: MessageReal, Info: h.Info})
		parts := make([]api.Part, len(h.Parts))
		copy(parts, h.Parts)
		sort.Slice(parts, func(i, j int) bool { return parts[i].ID < parts[j].ID })
		s.parts[h.Info.ID] = parts
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Info.ID < msgs[j].Info.ID })
	s.messages[sessionID] = msgs
	s.mu.Unlock()
	s.notifyChanged()
	return true
}

// SetResolvedModel records the model derived from a session's history and
// clears any manual override, if gen is still current.
func (s *Store) SetResolvedModel(gen uint64, sessionID string, ref ModelRef) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	s.models[sessionID] = ref
	delete(s.overrides, sessionID)
	s.mu.Unlock()
	s.notifyChanged()
	return true
}

// SetTodos replaces a session's todo list, if gen is still current.
func (s *Store) SetTodos(gen uint64, sessionID string, todos []api.TodoItem) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	s.todos[sessionID] = append([]api.TodoItem(nil), todos...)
	s.mu.Unlock()
	s.notifyChanged()
	return true
}

// MergePermissions installs a freshly fetched permission list. Requests seen
// before keep their original ReceivedAt; new ones are stamped now; requests
// absent from the fetch are dropped.
func (s *Store) MergePermissions(perms []api.Permission) {
	s.mu.Lock()
	s.mergePermissionsLocked(perms)
	s.mu.Unlock()
	s.notifyChanged()
}

// MergePermissionsIf is MergePermissions guarded by a selection generation.
func (s *Store) MergePermissionsIf(gen uint64, perms []api.Permission) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	s.mergePermissionsLocked(perms)
	s.mu.Unlock()
	s.notifyChanged()
	return true
}

func (s *Store) mergePermissionsLocked(perms []api.Permission) {
	seen := make(map[string]time.Time, len(s.permissions))
	for _, p := range s.permissions {
		seen[p.ID] = p.ReceivedAt
	}
	next := make([]PendingPermission, 0, len(perms))
	for _, p := range perms {
		at, ok := seen[p.ID]
		if !ok {
			at = s.now()
		}
		next = append(next, PendingPermission{Permission: p, ReceivedAt: at})
	}
	s.permissions = next
}

// findSession locates id in a slice sorted by id.
func findSession(sessions []api.Session, id string) (int, bool) {
	i := sort.Search(len(sessions), func(i int) bool { return sessions[i].ID >= id })
	if i < len(sessions) && sessions[i].ID == id {
		return i, true
	}
	return i, false
}
