package state

import (
	"encoding/json"

	"github.com/opendeck/opendeck/internal/api"
)

// Normalize shapes a raw envelope into a typed event. Envelopes whose type
// is not recognized, or whose properties fail to decode, are dropped: the
// second return is false and no event is produced. Normalize never panics
// and has no side effects.
func Normalize(env api.Envelope) (Event, bool) {
	switch env.Type {
	case api.EventSessionCreated, api.EventSessionUpdated:
		var p api.SessionEvent
		if decode(env.Properties, &p) && p.Info.ID != "" {
			return SessionUpserted{Info: p.Info}, true
		}

	case api.EventSessionDeleted:
		var p api.SessionEvent
		if decode(env.Properties, &p) && p.Info.ID != "" {
			return SessionDeleted{ID: p.Info.ID}, true
		}

	case api.EventSessionStatus:
		var p api.SessionStatusEvent
		if decode(env.Properties, &p) && p.SessionID != "" {
			return SessionStatusChanged{SessionID: p.SessionID, Status: p.Status}, true
		}

	case api.EventSessionIdle:
		var p api.SessionIdleEvent
		if decode(env.Properties, &p) && p.SessionID != "" {
			return SessionIdled{SessionID: p.SessionID}, true
		}

	case api.EventMessageUpdated:
		var p api.MessageEvent
		if decode(env.Properties, &p) && p.Info.ID != "" {
			return MessageUpserted{Info: p.Info}, true
		}

	case api.EventMessageRemoved:
		var p api.MessageRemovedEvent
		if decode(env.Properties, &p) && p.MessageID != "" {
			return MessageRemoved{SessionID: p.SessionID, MessageID: p.MessageID}, true
		}

	case api.EventPartUpdated:
		var p api.PartEvent
		if decode(env.Properties, &p) && p.Part.ID != "" && p.Part.MessageID != "" {
			return PartUpserted{Part: p.Part, Delta: p.Delta}, true
		}

	case api.EventPartRemoved:
		var p api.PartRemovedEvent
		if decode(env.Properties, &p) && p.PartID != "" {
			return PartRemoved{SessionID: p.SessionID, MessageID: p.MessageID, PartID: p.PartID}, true
		}

	case api.EventTodoUpdated:
		var p api.TodoEvent
		if decode(env.Properties, &p) && p.SessionID != "" {
			return TodosReplaced{SessionID: p.SessionID, Todos: p.Todos}, true
		}

	case api.EventPermissionAsked, api.EventPermissionReplied:
		return PermissionNotice{}, true

	case api.EventServerConnected:
		return ServerConnected{}, true
	}

	return nil, false
}

func decode(raw json.RawMessage, out interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
