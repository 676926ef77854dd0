package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/debatesync/internal/session"
	"github.com/vovakirdan/debatesync/internal/storage"
	"github.com/vovakirdan/debatesync/internal/unread"
	"github.com/vovakirdan/debatesync/internal/windows"
)

const (
	maxFeedLines = 8
	tickInterval = 500 * time.Millisecond
)

// Themes the TUI can cycle through. The last choice is remembered across runs
// under its own storage key, separate from the session core's state.
var themes = []string{"dark", "light"}

type tickMsg time.Time

type noteMsg unread.Notification

// Model renders the live session state: connection status, open windows with
// unread badges, and the notification feed. It talks to the session strictly
// through its operations.
type Model struct {
	sess  *session.Session
	store storage.Store
	notes chan unread.Notification

	feed     []string
	cursor   int
	input    textinput.Model
	entering bool
	theme    string
	width    int
}

// NewFeed builds the notification sink the TUI consumes. The notifier is
// installed on the session at construction time; the channel is handed to
// NewModel.
func NewFeed() (unread.Notifier, chan unread.Notification) {
	notes := make(chan unread.Notification, 32)
	notifier := unread.NotifierFunc(func(n unread.Notification) {
		select {
		case notes <- n:
		default:
		}
	})
	return notifier, notes
}

// NewModel builds the TUI model around an existing session.
func NewModel(sess *session.Session, store storage.Store, notes chan unread.Notification) *Model {
	input := textinput.New()
	input.Placeholder = "debate room id"
	input.CharLimit = 64

	return &Model{
		sess:  sess,
		store: store,
		notes: notes,
		input: input,
		theme: loadTheme(store),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForNote())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, m.tick()

	case noteMsg:
		line := msg.Title
		if msg.Body != "" {
			line += ": " + msg.Body
		}
		m.feed = append(m.feed, line)
		if len(m.feed) > maxFeedLines {
			m.feed = m.feed[len(m.feed)-maxFeedLines:]
		}
		return m, m.waitForNote()

	case tea.KeyMsg:
		if m.entering {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	open := m.sess.Windows()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(open)-1 {
			m.cursor++
		}
	case "enter":
		if w, ok := m.selected(open); ok {
			m.sess.RestoreWindow(w.DebateRoomID)
		}
	case "m":
		if w, ok := m.selected(open); ok {
			m.sess.MinimizeWindow(w.DebateRoomID)
		}
	case "x":
		if w, ok := m.selected(open); ok {
			m.sess.CloseWindow(w.DebateRoomID)
			if m.cursor > 0 {
				m.cursor--
			}
		}
	case "o":
		m.entering = true
		m.input.Reset()
		return m, m.input.Focus()
	case "t":
		m.theme = nextTheme(m.theme)
		saveTheme(m.store, m.theme)
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		roomID := strings.TrimSpace(m.input.Value())
		if roomID != "" {
			m.sess.OpenWindow(windows.Window{
				DebateRoomID: roomID,
				TopicTitle:   roomID,
			})
		}
		m.entering = false
		m.input.Blur()
		return m, nil
	case "esc":
		m.entering = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	st := styleFor(m.theme)

	var b strings.Builder
	b.WriteString(st.title.Render("debatesync"))
	b.WriteString("  ")
	b.WriteString(st.status.Render(string(m.sess.ConnectionState())))
	if total := m.sess.TotalUnread(); total > 0 {
		b.WriteString("  ")
		b.WriteString(st.badge.Render(fmt.Sprintf(" %d unread ", total)))
	}
	b.WriteString("\n\n")

	open := m.sess.Windows()
	if len(open) == 0 {
		b.WriteString(st.dim.Render("no open debates, press o to open one"))
		b.WriteString("\n")
	}
	for i, w := range open {
		marker := "  "
		if i == m.cursor {
			marker = st.cursor.Render("> ")
		}
		line := w.TopicTitle
		if w.OpponentName != "" {
			line += " vs " + w.OpponentName
		}
		if w.Minimized {
			line = st.dim.Render(line + " (minimized)")
		}
		if n := m.sess.UnreadCount(w.DebateRoomID); n > 0 {
			line += " " + st.badge.Render(fmt.Sprintf(" %d ", n))
		}
		b.WriteString(marker + line + "\n")
	}

	if len(m.feed) > 0 {
		b.WriteString("\n" + st.title.Render("notifications") + "\n")
		for _, line := range m.feed {
			b.WriteString(st.feed.Render("• "+line) + "\n")
		}
	}

	if m.entering {
		b.WriteString("\nopen debate: " + m.input.View() + "\n")
	}

	b.WriteString("\n" + st.dim.Render("o open · enter restore · m minimize · x close · t theme · q quit"))
	return b.String()
}

func (m *Model) selected(open []windows.Window) (windows.Window, bool) {
	if m.cursor < 0 || m.cursor >= len(open) {
		return windows.Window{}, false
	}
	return open[m.cursor], true
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitForNote() tea.Cmd {
	return func() tea.Msg {
		return noteMsg(<-m.notes)
	}
}

type styles struct {
	title  lipgloss.Style
	status lipgloss.Style
	badge  lipgloss.Style
	cursor lipgloss.Style
	dim    lipgloss.Style
	feed   lipgloss.Style
}

func styleFor(theme string) styles {
	if theme == "light" {
		return styles{
			title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("18")),
			status: lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
			badge:  lipgloss.NewStyle().Background(lipgloss.Color("160")).Foreground(lipgloss.Color("15")),
			cursor: lipgloss.NewStyle().Foreground(lipgloss.Color("18")),
			dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			feed:   lipgloss.NewStyle().Foreground(lipgloss.Color("24")),
		}
	}
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		status: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		badge:  lipgloss.NewStyle().Background(lipgloss.Color("196")).Foreground(lipgloss.Color("231")),
		cursor: lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		feed:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	}
}

func nextTheme(current string) string {
	for i, t := range themes {
		if t == current {
			return themes[(i+1)%len(themes)]
		}
	}
	return themes[0]
}

func loadTheme(store storage.Store) string {
	if store == nil {
		return themes[0]
	}
	data, found, err := store.Get(storage.KeyTheme)
	if err != nil || !found {
		return themes[0]
	}
	return string(data)
}

func saveTheme(store storage.Store, theme string) {
	if store != nil {
		_ = store.Put(storage.KeyTheme, []byte(theme))
	}
}
