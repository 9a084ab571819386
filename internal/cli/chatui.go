package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/chatsync/internal/chat"
	"github.com/raphaelgruber/chatsync/internal/models"
)

const loadTimeout = 30 * time.Second

// Theme holds the color scheme for the chat display.
type Theme struct {
	Self    lipgloss.Color
	Peer    lipgloss.Color
	Pending lipgloss.Color
	Error   lipgloss.Color
	Status  lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Self:    lipgloss.Color("#5FAFD7"), // light blue
	Peer:    lipgloss.Color("#00D787"), // green
	Pending: lipgloss.Color("#6C6C6C"), // dim gray
	Error:   lipgloss.Color("#FF005F"), // red
	Status:  lipgloss.Color("#D7AF5F"), // amber
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) selfStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Self).Bold(true)
}

func (t Theme) peerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Peer).Bold(true)
}

func (t Theme) pendingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Pending).Italic(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// chatEngine is the part of chat.Engine the UI drives.
type chatEngine interface {
	Select(ctx context.Context, peerID string) error
	Refresh(ctx context.Context) error
	Send(ctx context.Context, key models.ConversationKey, text string) (models.Message, error)
	Snapshot() []models.Message
	ActiveKey() (models.ConversationKey, bool)
	State() string
}

// timelineChangedMsg tells the UI to re-read the snapshot.
type timelineChangedMsg struct{}

// engineErrorMsg carries a FetchFailed or PersistFailed from the engine.
type engineErrorMsg struct{ err error }

// unroutedMsg is a live message from someone other than the open peer.
type unroutedMsg struct{ event models.InboundEvent }

// channelClosedMsg reports that the push channel went away.
type channelClosedMsg struct{}

type loadDoneMsg struct{ err error }

type sendDoneMsg struct{ err error }

// uiEvents carries engine callbacks into the bubbletea program. Engine hooks
// must not block, so pushes never wait on the UI. Timeline changes are
// coalesced since the UI re-reads the whole snapshot; errors and unrouted
// messages are queued and delivered in order.
type uiEvents struct {
	mu            sync.Mutex
	queue         []tea.Msg
	changePending bool
	notify        chan struct{}
}

func newUIEvents() *uiEvents {
	return &uiEvents{notify: make(chan struct{}, 1)}
}

func (u *uiEvents) push(msg tea.Msg) {
	u.mu.Lock()
	if _, ok := msg.(timelineChangedMsg); ok {
		if u.changePending {
			u.mu.Unlock()
			return
		}
		u.changePending = true
	}
	u.queue = append(u.queue, msg)
	u.mu.Unlock()

	select {
	case u.notify <- struct{}{}:
	default:
	}
}

// next pops the oldest queued event.
func (u *uiEvents) next() (tea.Msg, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.queue) == 0 {
		return nil, false
	}
	msg := u.queue[0]
	u.queue = u.queue[1:]
	if _, ok := msg.(timelineChangedMsg); ok {
		u.changePending = false
	}
	return msg, true
}

// pending returns the number of queued events.
func (u *uiEvents) pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queue)
}

// wait returns a command that delivers the next engine event.
func (u *uiEvents) wait() tea.Cmd {
	return func() tea.Msg {
		for {
			if msg, ok := u.next(); ok {
				return msg
			}
			<-u.notify
		}
	}
}

// hooks returns engine callbacks that feed this event stream.
func (u *uiEvents) hooks() chat.Config {
	return chat.Config{
		OnChange: func(models.ConversationKey) {
			u.push(timelineChangedMsg{})
		},
		OnError: func(_ models.ConversationKey, err error) {
			u.push(engineErrorMsg{err: err})
		},
		OnUnrouted: func(event models.InboundEvent) {
			u.push(unroutedMsg{event: event})
		},
	}
}

// chatModel is the bubbletea model for one conversation.
type chatModel struct {
	engine chatEngine
	events *uiEvents
	user   string
	peer   string
	live   bool

	input    textinput.Model
	theme    Theme
	messages []models.Message
	state    string
	status   string
	err      error
	width    int
	height   int
	quitting bool
}

func newChatModel(engine chatEngine, events *uiEvents, user, peer string, live bool) chatModel {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message"
	input.CharLimit = 4000
	input.Focus()

	return chatModel{
		engine: engine,
		events: events,
		user:   user,
		peer:   peer,
		live:   live,
		input:  input,
		theme:  defaultTheme,
		status: "loading history...",
	}
}

// Init loads the conversation and starts listening for engine events.
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		m.events.wait(),
		m.load(false),
	)
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m, m.send(text)
		case "ctrl+r":
			m.err = nil
			m.status = "reloading..."
			return m, m.load(true)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case timelineChangedMsg:
		m.refresh()
		return m, m.events.wait()

	case engineErrorMsg:
		m.err = msg.err
		return m, m.events.wait()

	case unroutedMsg:
		from := msg.event.From
		if from == "" {
			from = "someone"
		}
		m.status = fmt.Sprintf("new message from %s", from)
		return m, m.events.wait()

	case channelClosedMsg:
		if m.live {
			m.live = false
			m.status = "live updates lost, ctrl+r to reload"
		}
		return m, nil

	case loadDoneMsg:
		m.refresh()
		m.status = ""
		if msg.err != nil {
			m.err = msg.err
			m.status = "history unavailable, ctrl+r to retry"
		}
		return m, nil

	case sendDoneMsg:
		m.refresh()
		// Persist failures are shown on the message itself.
		if msg.err != nil && !errors.Is(msg.err, chat.ErrPersistFailed) {
			m.err = msg.err
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) refresh() {
	m.messages = m.engine.Snapshot()
	m.state = m.engine.State()
}

// View renders the chat display.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := m.theme.peerStyle().Render(m.peer)
	mode := "live"
	if !m.live {
		mode = "offline"
	}
	fmt.Fprintf(&b, "Chat with %s as %s %s\n\n", header, m.user, m.theme.hintStyle().Render("("+mode+")"))

	for _, line := range m.visibleLines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.messages) == 0 && m.state != chat.StateLoading {
		b.WriteString(m.theme.hintStyle().Render("No messages yet."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(m.theme.errorStyle().Render("✗ " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.theme.statusStyle().Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.theme.hintStyle().Render("enter send • ctrl+r reload • esc quit"))
	b.WriteString("\n")
	return b.String()
}

// chromeLines is the number of lines around the message list.
const chromeLines = 7

// visibleLines renders the messages, keeping the newest ones in view when
// the window is too short for all of them.
func (m chatModel) visibleLines() []string {
	lines := make([]string, len(m.messages))
	for i, msg := range m.messages {
		lines[i] = m.formatMessage(msg)
	}
	if m.height > chromeLines && len(lines) > m.height-chromeLines {
		lines = lines[len(lines)-(m.height-chromeLines):]
	}
	return lines
}

func (m chatModel) formatMessage(msg models.Message) string {
	if msg.Origin != models.OriginSelf {
		return m.theme.peerStyle().Render(m.peer+":") + " " + msg.Text
	}

	line := m.theme.selfStyle().Render("you:") + " " + msg.Text
	switch msg.DeliveryState {
	case models.DeliveryPending:
		line += " " + m.theme.pendingStyle().Render("sending...")
	case models.DeliveryFailed:
		line += " " + m.theme.errorStyle().Render("✗ not delivered")
	}
	return line
}

// load selects the peer, or reloads it when refresh is set.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m chatModel) load(refresh bool) tea.Cmd {
	engine, peer := m.engine, m.peer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		if refresh {
			return loadDoneMsg{err: engine.Refresh(ctx)}
		}
		return loadDoneMsg{err: engine.Select(ctx, peer)}
	}
}

func (m chatModel) send(text string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		key, ok := engine.ActiveKey()
		if !ok {
			return sendDoneMsg{err: chat.ErrNoConversation}
		}
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		_, err := engine.Send(ctx, key, text)
		return sendDoneMsg{err: err}
	}
}

// RunChat runs the interactive chat UI until the user quits. channelDone, if
// non-nil, is closed when the push channel drops.
func RunChat(engine chatEngine, events *uiEvents, user, peer string, channelDone <-chan struct{}) error {
	model := newChatModel(engine, events, user, peer, channelDone != nil)
	p := tea.NewProgram(model)

	if channelDone != nil {
		go func() {
			<-channelDone
			p.Send(channelClosedMsg{})
		}()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
