package state

import (
	"sort"
	"strings"

	"github.com/opendeck/opendeck/internal/api"
)

// applyLocked reconciles one event. The store lock is held by the caller;
// the whole batch becomes visible at once when the lock is released. The
// return value reports whether the event requires a permission refresh.
func (s *Store) applyLocked(e Event) bool {
	switch ev := e.(type) {
	case SessionUpserted:
		s.upsertSessionLocked(ev.Info)

	case SessionDeleted:
		if i, ok := findSession(s.sessions, ev.ID); ok {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
		}
		delete(s.statuses, ev.ID)
		for _, m := range s.messages[ev.ID] {
			delete(s.parts, m.Info.ID)
		}
		delete(s.messages, ev.ID)
		delete(s.todos, ev.ID)
		delete(s.models, ev.ID)
		delete(s.overrides, ev.ID)

	case SessionStatusChanged:
		s.statuses[ev.SessionID] = ev.Status

	case SessionIdled:
		s.statuses[ev.SessionID] = api.StatusIdle

	case MessageUpserted:
		// A user message carrying a model choice pins the session's
		// resolved model and discards any manual override.
		if ev.Info.Role == "user" && ev.Info.ModelID != "" {
			s.models[ev.Info.SessionID] = ModelRef{
				ProviderID: ev.Info.ProviderID,
				ModelID:    ev.Info.ModelID,
			}
			delete(s.overrides, ev.Info.SessionID)
		}
		s.upsertMessageLocked(ev.Info.SessionID, Message{Kind: MessageReal, Info: ev.Info})

	case MessageRemoved:
		s.removeMessageLocked(ev.SessionID, ev.MessageID)

	case PartUpserted:
		s.upsertPartLocked(ev.Part, ev.Delta)

	case PartRemoved:
		s.removePartLocked(ev.MessageID, ev.PartID)

	case TodosReplaced:
		s.todos[ev.SessionID] = append([]api.TodoItem(nil), ev.Todos...)

	case PermissionNotice:
		return true

	case ServerConnected:
		s.connected = true
	}
	return false
}

func (s *Store) upsertSessionLocked(info api.Session) {
	i, ok := findSession(s.sessions, info.ID)
	if ok {
		s.sessions[i] = info
		return
	}
	s.sessions = append(s.sessions, api.Session{})
	copy(s.sessions[i+1:], s.sessions[i:])
	s.sessions[i] = info
}

func (s *Store) upsertMessageLocked(sessionID string, msg Message) {
	list := s.messages[sessionID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Info.ID >= msg.Info.ID })
	if i < len(list) && list[i].Info.ID == msg.Info.ID {
		// A real update promotes a placeholder in place; the parts
		// already attached to the id stay attached.
		list[i] = msg
		return
	}
	list = append(list, Message{})
	copy(list[i+1:], list[i:])
	list[i] = msg
	s.messages[sessionID] = list
}

func (s *Store) removeMessageLocked(sessionID, messageID string) {
	list := s.messages[sessionID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Info.ID >= messageID })
	if i < len(list) && list[i].Info.ID == messageID {
		s.messages[sessionID] = append(list[:i], list[i+1:]...)
	}
	delete(s.parts, messageID)
}

// upsertPartLocked stores one part event. If the owning message is unknown a
// placeholder is synthesized first, so a part id always resolves to a message.
// Text parts grow monotonically: an explicit delta is appended to the stored
// text unless the stored text already ends with it, which is how duplicate
// deliveries of the same event stay idempotent. When the delta path does not
// apply, the full payload is upserted as-is.
//
// The suffix comparison is a heuristic: a legitimate delta that happens to
// equal a suffix of the stored text (repeated characters, say) is suppressed.
// Kept as-is for wire compatibility.
func (s *Store) upsertPartLocked(part api.Part, delta string) {
	s.ensureMessageLocked(part.SessionID, part.MessageID)

	list := s.parts[part.MessageID]
	i := sort.Search(len(list), func(i int) bool { return list[i].ID >= part.ID })
	exists := i < len(list) && list[i].ID == part.ID

	if delta != "" && part.Type == api.PartText && exists {
		if !strings.HasSuffix(list[i].Text, delta) {
			merged := part
			merged.Text = list[i].Text + delta
			list[i] = merged
			return
		}
	}

	if exists {
		list[i] = part
		return
	}
	list = append(list, api.Part{})
	copy(list[i+1:], list[i:])
	list[i] = part
	s.parts[part.MessageID] = list
}

func (s *Store) removePartLocked(messageID, partID string) {
	list := s.parts[messageID]
	i := sort.Search(len(list), func(i int) bool { return list[i].ID >= partID })
	if i < len(list) && list[i].ID == partID {
		s.parts[messageID] = append(list[:i], list[i+1:]...)
	}
}

// ensureMessageLocked synthesizes a placeholder message when a part arrives
// before its owning message's metadata.
func (s *Store) ensureMessageLocked(sessionID, messageID string) {
	for _, m := range s.messages[sessionID] {
		if m.Info.ID == messageID {
			return
		}
	}
	s.upsertMessageLocked(sessionID, Message{
		Kind: MessagePlaceholder,
		Info: api.MessageInfo{
			ID:        messageID,
			SessionID: sessionID,
			Role:      "assistant",
		},
	})
}
