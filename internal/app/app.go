// Package app hosts the root Bubble Tea model wiring the event stream,
// the shared store and the sub-views together.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/opendeck/opendeck/internal/api"
	"github.com/opendeck/opendeck/internal/runtime"
	"github.com/opendeck/opendeck/internal/state"
	"github.com/opendeck/opendeck/internal/theme"
	"github.com/opendeck/opendeck/internal/views/permission"
	"github.com/opendeck/opendeck/internal/views/prompt"
	"github.com/opendeck/opendeck/internal/views/sessions"
	"github.com/opendeck/opendeck/internal/views/statusbar"
	"github.com/opendeck/opendeck/internal/views/todos"
	"github.com/opendeck/opendeck/internal/views/transcript"
)

const (
	listWidth      = 32
	requestTimeout = 5 * time.Second
	enginePollTick = 2 * time.Second
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	client   *api.Client
	store    *state.Store
	consumer *state.Consumer
	selector *state.Selector
	gate     *state.Gate
	manager  *runtime.Manager
	log      *zap.Logger

	// updates carries store change notifications into the Bubble Tea
	// loop. Capacity one: notifications coalesce while a refresh is
	// pending.
	updates chan struct{}

	keys   KeyMap
	width  int
	height int

	list       sessions.Model
	transcript transcript.Model
	todoPanel  todos.Model
	statusBar  statusbar.Model
	promptBox  prompt.Model

	engineInfo runtime.Info
	notice     string
}

// New creates the root model. manager may be nil when connecting to an
// externally managed engine.
func New(client *api.Client, store *state.Store, consumer *state.Consumer, selector *state.Selector, gate *state.Gate, manager *runtime.Manager, log *zap.Logger) *Model {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		ctx:        ctx,
		cancel:     cancel,
		client:     client,
		store:      store,
		consumer:   consumer,
		selector:   selector,
		gate:       gate,
		manager:    manager,
		log:        log,
		updates:    make(chan struct{}, 1),
		keys:       DefaultKeyMap(),
		list:       sessions.New(),
		transcript: transcript.New(),
		todoPanel:  todos.New(),
		statusBar:  statusbar.New(),
		promptBox:  prompt.New(),
	}
	store.SetNotify(func() {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	})
	return m
}

// Init starts the event stream consumer and the initial session fetch.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.watchStore(), m.runConsumer(), m.loadSessions()}
	if m.manager != nil {
		cmds = append(cmds, m.engineTick())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.list.Width = listWidth
		m.list.Height = msg.Height - 4
		m.transcript.SetSize(msg.Width-listWidth-2, msg.Height-10)
		m.todoPanel.Width = msg.Width - listWidth - 2
		m.promptBox.SetWidth(msg.Width - listWidth - 2)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case storeChangedMsg:
		m.refresh()
		return m, m.watchStore()

	case streamEndedMsg:
		if m.ctx.Err() != nil {
			return m, nil
		}
		if msg.err != nil {
			m.log.Warn("event stream ended", zap.Error(msg.err))
		}
		// Reconnect and re-list: events missed while offline are gone.
		return m, tea.Batch(m.runConsumer(), m.loadSessions())

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.notice = "engine unreachable: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		m.notice = ""
		m.store.SetConnected(true)
		m.refresh()
		return m, nil

	case selectionDoneMsg:
		if msg.err != nil {
			m.log.Warn("session load failed",
				zap.String("session", msg.sessionID),
				zap.Error(msg.err),
			)
		}
		m.refresh()
		return m, nil

	case sessionCreatedMsg:
		if msg.err != nil {
			m.notice = "create session: " + msg.err.Error()
			return m, nil
		}
		return m, m.selectSession(msg.sessionID)

	case promptSentMsg:
		if msg.err != nil {
			m.notice = "send failed: " + msg.err.Error()
		}
		return m, nil

	case permissionRepliedMsg:
		if msg.err != nil {
			m.notice = "permission reply failed: " + msg.err.Error()
		}
		return m, nil

	case abortDoneMsg:
		if msg.err != nil {
			m.notice = "abort failed: " + msg.err.Error()
		}
		return m, nil

	case engineInfoMsg:
		m.engineInfo = msg.info
		m.statusBar.EnginePID = msg.info.PID
		m.statusBar.EngineRSS = msg.info.RSSBytes
		m.statusBar.EngineCPU = msg.info.CPUPercent
		return m, m.engineTick()
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.promptBox.Focused() {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.promptBox.Blur()
			return m, nil
		case msg.Type == tea.KeyEnter:
			return m, m.sendPrompt()
		}
		var cmd tea.Cmd
		m.promptBox, cmd = m.promptBox.Update(msg)
		return m, cmd
	}

	if pending := m.store.Permissions(); len(pending) > 0 {
		switch {
		case key.Matches(msg, m.keys.AllowOnce):
			return m, m.replyPermission(pending[0].ID, api.ReplyOnce)
		case key.Matches(msg, m.keys.Always):
			return m, m.replyPermission(pending[0].ID, api.ReplyAlways)
		case key.Matches(msg, m.keys.Reject):
			return m, m.replyPermission(pending[0].ID, api.ReplyReject)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		if m.manager != nil {
			m.manager.Stop()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		m.list.MoveDown()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.list.MoveUp()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if id := m.list.Current(); id != "" {
			return m, m.selectSession(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.transcript.ScrollUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.transcript.ScrollDown()
		return m, nil

	case key.Matches(msg, m.keys.Prompt):
		if m.store.Selected() != "" {
			return m, m.promptBox.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewSession):
		return m, m.createSession()

	case key.Matches(msg, m.keys.Abort):
		if id := m.store.Selected(); id != "" {
			return m, m.abortSession(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		cmds := []tea.Cmd{m.loadSessions()}
		if id := m.store.Selected(); id != "" {
			cmds = append(cmds, m.selectSession(id))
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// refresh re-reads the store into the view models.
func (m *Model) refresh() {
	sess := m.store.Sessions()
	rows := make([]sessions.Row, 0, len(sess))
	running := 0
	for _, s := range sess {
		st := m.store.Status(s.ID)
		if st == api.StatusRunning {
			running++
		}
		rows = append(rows, sessions.Row{Session: s, Status: st})
	}
	m.list.SetRows(rows)

	m.statusBar.Connected = m.store.Connected()
	m.statusBar.Sessions = len(sess)
	m.statusBar.Running = running
	m.statusBar.Pending = len(m.store.Permissions())
	m.statusBar.Err = m.notice
	if err := m.store.SelectionError(); err != nil {
		m.statusBar.Err = err.Error()
	}

	selected := m.store.Selected()
	if selected == "" {
		m.transcript.SetEntries(nil)
		m.todoPanel.Items = nil
		return
	}

	msgs := m.store.Messages(selected)
	entries := make([]transcript.Entry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, transcript.Entry{
			Message: msg,
			Parts:   m.store.Parts(msg.Info.ID),
		})
	}
	m.transcript.SetEntries(entries)
	m.todoPanel.Items = m.store.Todos(selected)
}

// --- Commands ---

func (m *Model) watchStore() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return storeChangedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) runConsumer() tea.Cmd {
	return func() tea.Msg {
		stream := m.client.Subscribe(m.ctx)
		err := m.consumer.Run(m.ctx, stream)
		return streamEndedMsg{err: err}
	}
}

func (m *Model) loadSessions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		sess, err := m.client.ListSessions(ctx)
		if err != nil {
			return sessionsLoadedMsg{err: err}
		}
		m.store.ReplaceSessions(sess)
		return sessionsLoadedMsg{}
	}
}

func (m *Model) selectSession(id string) tea.Cmd {
	return func() tea.Msg {
		err := m.selector.Select(m.ctx, id)
		return selectionDoneMsg{sessionID: id, err: err}
	}
}

func (m *Model) createSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		s, err := m.client.CreateSession(ctx, ".", "")
		if err != nil {
			return sessionCreatedMsg{err: err}
		}
		return sessionCreatedMsg{sessionID: s.ID}
	}
}

func (m *Model) sendPrompt() tea.Cmd {
	text := m.promptBox.Value()
	selected := m.store.Selected()
	if text == "" || selected == "" {
		return nil
	}
	m.promptBox.Reset()
	m.promptBox.Blur()

	ref, _ := m.store.ResolvedModel(selected)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		err := m.client.Prompt(ctx, selected, ref.ProviderID, ref.ModelID, text)
		return promptSentMsg{err: err}
	}
}

func (m *Model) replyPermission(requestID, reply string) tea.Cmd {
	return func() tea.Msg {
		err := m.gate.Reply(m.ctx, requestID, reply)
		return permissionRepliedMsg{err: err}
	}
}

func (m *Model) abortSession(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		return abortDoneMsg{err: m.client.Abort(ctx, id)}
	}
}

func (m *Model) engineTick() tea.Cmd {
	return tea.Tick(enginePollTick, func(time.Time) tea.Msg {
		return engineInfoMsg{info: m.manager.Info()}
	})
}

// View renders the full panel.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	right := []string{m.transcript.View()}
	if todoView := m.todoPanel.View(); todoView != "" {
		right = append(right, todoView)
	}
	if pending := m.store.Permissions(); len(pending) > 0 {
		overlay := permission.New(&pending[0], len(pending))
		overlay.Busy = m.gate.Busy()
		right = append(right, overlay.View())
	}
	right = append(right, m.promptBox.View())

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		m.list.View(),
		lipgloss.JoinVertical(lipgloss.Left, right...),
	)

	help := theme.StyleDimmed.Render("  j/k:sessions  enter:open  i:prompt  c:new  x:abort  r:refresh  q:quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		main,
		help,
	)
}
