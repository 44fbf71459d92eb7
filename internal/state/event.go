// Package state maintains a local mirror of the engine's sessions, messages,
// streaming parts, todos and permission requests, fed by the engine's event
// stream. It owns event normalization, burst coalescing, reconciliation into
// the store, race-safe session selection and permission reply serialization.
package state

import "github.com/opendeck/opendeck/internal/api"

// Event is a normalized engine event ready for reconciliation. The coalesce
// key identifies events that supersede each other within one flush window;
// an empty key means the event is never coalesced.
type Event interface {
	coalesceKey() string
}

// SessionUpserted is emitted for session.created and session.updated.
type SessionUpserted struct {
	Info api.Session
}

// SessionDeleted removes a session by id.
type SessionDeleted struct {
	ID string
}

// SessionStatusChanged sets a session's status.
type SessionStatusChanged struct {
	SessionID string
	Status    string
}

// SessionIdled forces a session's status to idle.
type SessionIdled struct {
	SessionID string
}

// MessageUpserted upserts a message's metadata.
type MessageUpserted struct {
	Info api.MessageInfo
}

// MessageRemoved removes a message and its parts.
type MessageRemoved struct {
	SessionID string
	MessageID string
}

// PartUpserted upserts a message part. Delta, when non-empty, carries the
// text streamed since the previous event for this part.
type PartUpserted struct {
	Part  api.Part
	Delta string
}

// PartRemoved removes a part from its message.
type PartRemoved struct {
	SessionID string
	MessageID string
	PartID    string
}

// TodosReplaced replaces a session's todo list wholesale.
type TodosReplaced struct {
	SessionID string
	Todos     []api.TodoItem
}

// PermissionNotice signals that the pending permission set changed server-side
// and must be re-fetched. It carries no payload: permission events are
// notifications to re-pull truth, not deltas.
type PermissionNotice struct{}

// ServerConnected marks the event stream as live.
type ServerConnected struct{}

func (SessionUpserted) coalesceKey() string { return "" }
func (SessionDeleted) coalesceKey() string  { return "" }

func (e SessionStatusChanged) coalesceKey() string {
	return "session.status:" + e.SessionID
}

func (e SessionIdled) coalesceKey() string {
	return "session.idle:" + e.SessionID
}

func (MessageUpserted) coalesceKey() string { return "" }
func (MessageRemoved) coalesceKey() string  { return "" }

func (e PartUpserted) coalesceKey() string {
	return "message.part.updated:" + e.Part.MessageID + ":" + e.Part.ID
}

func (PartRemoved) coalesceKey() string { return "" }

func (e TodosReplaced) coalesceKey() string {
	return "todo.updated:" + e.SessionID
}

func (PermissionNotice) coalesceKey() string { return "" }
func (ServerConnected) coalesceKey() string  { return "" }
