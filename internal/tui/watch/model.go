package watch

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ledgerline/internal/journal"
)

const entryLimit = 50

// JournalReader is the read-side the TUI needs from the journal store.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	CountByStatus(ctx context.Context) (map[journal.Status]int, error)
}

type tickMsg time.Time

type refreshMsg struct {
	entries []journal.Entry
	counts  map[journal.Status]int
}

type errMsg struct{ err error }

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	store JournalReader

	width  int
	height int

	entries   []journal.Entry
	counts    map[journal.Status]int
	lastError string

	spinner spinner.Model
	theme   Theme
}

// New creates a new watch TUI model over a journal store.
func New(store JournalReader) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		store:   store,
		spinner: sp,
		theme:   NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refresh(),
		m.spinner.Tick,
		tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

// refresh reads the journal off the UI loop.
func (m Model) refresh() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		entries, err := store.Recent(ctx, entryLimit)
		if err != nil {
			return errMsg{err}
		}
		counts, err := store.CountByStatus(ctx)
		if err != nil {
			return errMsg{err}
		}
		return refreshMsg{entries: entries, counts: counts}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(
			m.refresh(),
			tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case refreshMsg:
		m.entries = msg.entries
		m.counts = msg.counts
		m.lastError = ""

	case errMsg:
		m.lastError = msg.err.Error()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading journal..."
	}

	header := m.renderHeader()
	entries := m.renderEntries()

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(" ⚠ " + m.lastError)
	}

	help := m.theme.Dim.Render(" [q] Quit • [r] Refresh")

	parts := []string{header, entries}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
