package app

import "github.com/opendeck/opendeck/internal/runtime"

// storeChangedMsg signals that the shared store was mutated and views
// should re-read it.
type storeChangedMsg struct{}

// streamEndedMsg reports that the event stream consumer returned.
type streamEndedMsg struct{ err error }

// sessionsLoadedMsg carries the result of the initial session list fetch.
type sessionsLoadedMsg struct{ err error }

// selectionDoneMsg carries the result of loading a selected session.
type selectionDoneMsg struct {
	sessionID string
	err       error
}

// sessionCreatedMsg carries the result of creating a session.
type sessionCreatedMsg struct {
	sessionID string
	err       error
}

// promptSentMsg carries the result of sending a prompt.
type promptSentMsg struct{ err error }

// permissionRepliedMsg carries the result of a permission reply.
type permissionRepliedMsg struct{ err error }

// abortDoneMsg carries the result of an abort request.
type abortDoneMsg struct{ err error }

// engineInfoMsg carries a periodic snapshot of the managed engine process.
type engineInfoMsg struct{ info runtime.Info }
