// Package api provides HTTP and WebSocket clients for the agent engine.
// Types mirror the engine wire protocol without importing engine packages.
package api

import "encoding/json"

// EventType identifies the kind of event envelope pushed by the engine.
type EventType string

const (
	EventSessionCreated    EventType = "session.created"
	EventSessionUpdated    EventType = "session.updated"
	EventSessionDeleted    EventType = "session.deleted"
	EventSessionStatus     EventType = "session.status"
	EventSessionIdle       EventType = "session.idle"
	EventMessageUpdated    EventType = "message.updated"
	EventMessageRemoved    EventType = "message.removed"
	EventPartUpdated       EventType = "message.part.updated"
	EventPartRemoved       EventType = "message.part.removed"
	EventTodoUpdated       EventType = "todo.updated"
	EventPermissionAsked   EventType = "permission.asked"
	EventPermissionReplied EventType = "permission.replied"
	EventServerConnected   EventType = "server.connected"
)

// Envelope is the raw event pushed over the /event stream.
type Envelope struct {
	Type       EventType       `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// SessionTime holds session timestamps in Unix milliseconds.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// Session is a work session owned by the engine.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug,omitempty"`
	Directory string      `json:"directory,omitempty"`
	Version   string      `json:"version,omitempty"`
	ParentID  string      `json:"parentID,omitempty"`
	Time      SessionTime `json:"time"`
}

// SessionStatus values pushed via session.status events.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
)

// MessageTime holds message timestamps in Unix milliseconds.
type MessageTime struct {
	Created   int64 `json:"created"`
	Completed int64 `json:"completed,omitempty"`
}

// TokenUsage reports token counts for a completed assistant turn.
type TokenUsage struct {
	Input     int `json:"input"`
	Output    int `json:"output"`
	Reasoning int `json:"reasoning,omitempty"`
	CacheRead int `json:"cacheRead,omitempty"`
}

// MessageInfo is the metadata for one message in a session.
type MessageInfo struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"sessionID"`
	Role       string      `json:"role"`
	ProviderID string      `json:"providerID,omitempty"`
	ModelID    string      `json:"modelID,omitempty"`
	Cost       float64     `json:"cost,omitempty"`
	Tokens     TokenUsage  `json:"tokens,omitempty"`
	Time       MessageTime `json:"time"`
}

// Part is one piece of a message: streamed text, a tool invocation, a file
// reference. Text parts grow incrementally while the agent streams.
type Part struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionID"`
	MessageID string          `json:"messageID"`
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
}

// PartText is the part type carrying streamed text deltas.
const PartText = "text"

// MessageWithParts is the shape returned by the message history endpoint.
type MessageWithParts struct {
	Info  MessageInfo `json:"info"`
	Parts []Part      `json:"parts"`
}

// TodoItem is one entry in a session's todo list.
type TodoItem struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Status   string `json:"status"`
	Priority string `json:"priority,omitempty"`
}

// Permission is a pending permission request raised by the engine.
type Permission struct {
	ID        string                 `json:"id"`
	SessionID string                 `json:"sessionID"`
	MessageID string                 `json:"messageID,omitempty"`
	CallID    string                 `json:"callID,omitempty"`
	Title     string                 `json:"title"`
	Type      string                 `json:"type,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Created   int64                  `json:"time,omitempty"`
}

// Permission replies accepted by the engine.
const (
	ReplyOnce   = "once"
	ReplyAlways = "always"
	ReplyReject = "reject"
)

// --- Event property shapes ---

// SessionEvent is the properties shape of session.created/updated/deleted.
type SessionEvent struct {
	Info Session `json:"info"`
}

// SessionStatusEvent is the properties shape of session.status.
type SessionStatusEvent struct {
	SessionID string `json:"sessionID"`
	Status    string `json:"status"`
}

// SessionIdleEvent is the properties shape of session.idle.
type SessionIdleEvent struct {
	SessionID string `json:"sessionID"`
}

// MessageEvent is the properties shape of message.updated.
type MessageEvent struct {
	Info MessageInfo `json:"info"`
}

// MessageRemovedEvent is the properties shape of message.removed.
type MessageRemovedEvent struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

// PartEvent is the properties shape of message.part.updated. Delta, when
// present, is the text appended since the previous event for this part.
type PartEvent struct {
	Part  Part   `json:"part"`
	Delta string `json:"delta,omitempty"`
}

// PartRemovedEvent is the properties shape of message.part.removed.
type PartRemovedEvent struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	PartID    string `json:"partID"`
}

// TodoEvent is the properties shape of todo.updated.
type TodoEvent struct {
	SessionID string     `json:"sessionID"`
	Todos     []TodoItem `json:"todos"`
}
