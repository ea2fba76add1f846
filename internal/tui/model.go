package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"kbchatbox/internal/adapter/notify"
	"kbchatbox/internal/bridge"
	"kbchatbox/internal/domain"
)

const (
	convPaneWidth = 28
	scrollback    = 500
)

// Model is the Bubble Tea state for the chat window. It never talks to the
// external tool directly: everything goes through the bridge handle, and
// results come back as events on the drain tick.
type Model struct {
	handle   *bridge.Handle
	notifier *notify.Notifier
	logger   *slog.Logger
	self     string // own username, to skip self-notifications

	convs    []domain.Conversation
	selected int

	history map[string]*TextBuffer
	cursors map[string]string // conversation id -> older-page cursor
	// inflight correlates completion events back to the command that caused
	// them; the Outcome alone does not say which conversation it was for.
	inflight map[string]domain.Command

	input    textinput.Model
	vp       viewport.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	width, height int
	ready         bool
	status        string
	quitting      bool
	fatalErr      error
}

// New creates the chat model. The caller has already started the bridge.
func New(handle *bridge.Handle, notifier *notify.Notifier, self string, logger *slog.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		handle:   handle,
		notifier: notifier,
		logger:   logger,
		self:     self,
		history:  make(map[string]*TextBuffer),
		cursors:  make(map[string]string),
		inflight: make(map[string]domain.Command),
		input:    ti,
		spin:     sp,
		status:   "loading conversations...",
	}
}

// FatalErr returns the worker's fatal error, if the UI exited because the
// worker died rather than because the user quit.
func (m Model) FatalErr() error { return m.fatalErr }

func (m Model) Init() tea.Cmd {
	m.submit(domain.NewListConversations())
	return tea.Batch(drainTick(), m.spin.Tick)
}

func drainTick() tea.Cmd {
	return tea.Tick(drainInterval, func(t time.Time) tea.Msg {
		return drainMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		m.refreshViewport(false)

	case drainMsg:
		if m.quitting {
			return m, nil
		}
		if quit := m.drainEvents(); quit {
			m.quitting = true
			return m, tea.Quit
		}
		cmds = append(cmds, drainTick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "tab":
			m.selectConversation(m.selected + 1)

		case "shift+tab":
			m.selectConversation(m.selected - 1)

		case "enter":
			m.sendCurrent()

		case "ctrl+o":
			m.fetchOlder()

		case "ctrl+r":
			m.submit(domain.NewListConversations())

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			cmds = append(cmds, cmd)

		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// submit forwards a command to the bridge, remembering it for correlation.
// Queue-full is a user-visible condition, not an error path.
func (m *Model) submit(cmd domain.Command) {
	if err := m.handle.Submit(cmd); err != nil {
		m.status = fmt.Sprintf("busy: %v", err)
		m.logger.Warn("submit rejected", "kind", cmd.Kind, "error", err)
		return
	}
	m.inflight[cmd.ID] = cmd
}

func (m *Model) sendCurrent() {
	body := strings.TrimSpace(m.input.Value())
	if body == "" || len(m.convs) == 0 {
		return
	}
	conv := m.convs[m.selected]

	cmd := domain.NewSendMessage(conv.ID, body)
	if err := m.handle.Submit(cmd); err != nil {
		m.status = fmt.Sprintf("cannot send: %v", err)
		return
	}
	m.inflight[cmd.ID] = cmd
	m.input.Reset()

	// Local echo; resolved to sent or failed when the completion arrives.
	m.buffer(conv.ID).Append(domain.ChatMessage{
		ConversationID: conv.ID,
		Sender:         m.self,
		Body:           body,
		SentAt:         time.Now(),
		Status:         domain.DeliveryPending,
	})
	m.refreshViewport(true)
}

func (m *Model) selectConversation(i int) {
	if len(m.convs) == 0 {
		return
	}
	m.selected = ((i % len(m.convs)) + len(m.convs)) % len(m.convs)
	conv := &m.convs[m.selected]
	conv.Unread = false
	if m.buffer(conv.ID).Len() == 0 {
		m.submit(domain.NewFetchHistory(conv.ID, "", 0))
	}
	m.refreshViewport(true)
}

func (m *Model) fetchOlder() {
	if len(m.convs) == 0 {
		return
	}
	conv := m.convs[m.selected]
	cursor, ok := m.cursors[conv.ID]
	if !ok || cursor == "" {
		m.status = "no older messages"
		return
	}
	m.submit(domain.NewFetchHistory(conv.ID, cursor, 0))
}

// drainEvents applies everything the bridge has queued. Returns true when the
// worker has stopped and the UI should exit.
func (m *Model) drainEvents() bool {
	events := m.handle.TryRecvEvents()
	for _, e := range events {
		switch e.Kind {
		case domain.EventCommandCompleted:
			m.applyCompletion(e)
		case domain.EventMessageReceived:
			m.applyIncoming(*e.Message)
		case domain.EventAdapterError:
			m.status = fmt.Sprintf("connection trouble: %v", e.Err)
		case domain.EventWorkerStopped:
			m.fatalErr = e.Err
			return true
		}
	}
	if len(events) > 0 {
		m.refreshViewport(false)
	}
	return false
}

func (m *Model) applyCompletion(e domain.Event) {
	cmd, known := m.inflight[e.CommandID]
	delete(m.inflight, e.CommandID)

	out := e.Outcome
	if out.Err != nil {
		kind := "command"
		if known {
			kind = string(cmd.Kind)
		}
		m.status = fmt.Sprintf("%s failed: %v", kind, out.Err)
		if known && cmd.Kind == domain.CommandSendMessage {
			m.buffer(cmd.ConversationID).Resolve(cmd.Body, domain.DeliveryFailed, 0)
		}
		return
	}
	m.status = ""

	switch {
	// Refreshes may come from the background scheduler, which this model
	// never submitted; merge the list whenever one arrives.
	case out.Conversations != nil:
		m.mergeConversations(out.Conversations)

	case known && cmd.Kind == domain.CommandFetchHistory:
		m.applyHistory(cmd, out)

	case known && cmd.Kind == domain.CommandSendMessage:
		var id uint64
		if out.Sent != nil {
			id = out.Sent.ID
		}
		m.buffer(cmd.ConversationID).Resolve(cmd.Body, domain.DeliverySent, id)
	}
}

// mergeConversations replaces the list while keeping the current selection
// pointed at the same conversation when it still exists.
func (m *Model) mergeConversations(convs []domain.Conversation) {
	var selectedID string
	if len(m.convs) > 0 {
		selectedID = m.convs[m.selected].ID
	}
	m.convs = convs
	m.selected = 0
	for i, c := range m.convs {
		if c.ID == selectedID {
			m.selected = i
			break
		}
	}
	if selectedID == "" && len(m.convs) > 0 {
		// First load: pull history for whatever ended up selected.
		m.selectConversation(0)
	}
}

func (m *Model) applyHistory(cmd domain.Command, out *domain.Outcome) {
	buf := m.buffer(cmd.ConversationID)

	// The tool reports newest first; the buffer stores oldest first.
	page := make([]domain.ChatMessage, 0, len(out.Messages))
	for i := len(out.Messages) - 1; i >= 0; i-- {
		page = append(page, out.Messages[i])
	}

	if cmd.Cursor == "" {
		buf.Replace(page)
	} else {
		buf.Replace(append(page, buf.Messages()...))
	}
	m.cursors[cmd.ConversationID] = out.NextCursor
	m.refreshViewport(cmd.Cursor == "")
}

func (m *Model) applyIncoming(msg domain.ChatMessage) {
	buf := m.buffer(msg.ConversationID)
	if buf.Contains(msg.ID) {
		return
	}
	// Our own sends come back as notifications too; fold them into the echo.
	if msg.Sender == m.self && buf.Resolve(msg.Body, domain.DeliverySent, msg.ID) {
		return
	}
	buf.Append(msg)

	current := len(m.convs) > 0 && m.convs[m.selected].ID == msg.ConversationID
	if !current {
		for i := range m.convs {
			if m.convs[i].ID == msg.ConversationID {
				m.convs[i].Unread = true
			}
		}
	}
	if msg.Sender != m.self {
		m.notifier.Notify(context.Background(), msg)
	}
	if current {
		m.refreshViewport(true)
	}
}

func (m *Model) buffer(convID string) *TextBuffer {
	b, ok := m.history[convID]
	if !ok {
		b = NewTextBuffer(scrollback)
		m.history[convID] = b
	}
	return b
}

func (m *Model) layout() {
	chatWidth := m.width - convPaneWidth - 4
	if chatWidth < 20 {
		chatWidth = 20
	}
	chatHeight := m.height - 5 // title, input, status, borders
	if chatHeight < 3 {
		chatHeight = 3
	}

	m.vp = viewport.New(chatWidth, chatHeight)
	m.input.Width = m.width - 6

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(chatWidth-2),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", "error", err)
		r = nil
	}
	m.renderer = r
}

// refreshViewport rebuilds the transcript for the selected conversation.
// follow forces the view to the bottom, used when new content arrives.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready || len(m.convs) == 0 {
		return
	}
	atBottom := m.vp.AtBottom()
	m.vp.SetContent(m.renderTranscript(m.convs[m.selected].ID))
	if follow || atBottom {
		m.vp.GotoBottom()
	}
}

func (m *Model) renderTranscript(convID string) string {
	msgs := m.buffer(convID).Messages()
	if len(msgs) == 0 {
		return emptyStyle.Render("No messages yet.")
	}

	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(m.renderMessage(msg))
		b.WriteByte('\n')
	}
	return b.String()
}
