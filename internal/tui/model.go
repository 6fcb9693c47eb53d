// Package tui renders a fabric run in the terminal: an interactive
// bubbletea view for terminals and a line-per-transition log otherwise.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/fabricctl/internal/orchestrator"
	"github.com/Iron-Ham/fabricctl/internal/step"
	"github.com/Iron-Ham/fabricctl/internal/tui/styles"
)

// DefaultRefreshInterval is how often the view re-reads run state.
const DefaultRefreshInterval = 100 * time.Millisecond

// Bar width bounds, in columns.
const (
	minBarWidth = 10
	maxBarWidth = 60
)

// Source is the run the view observes.
type Source interface {
	State() orchestrator.RunState
	Stop()
}

type keyMap struct {
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "cancel"),
		),
	}
}

// Messages

type tickMsg time.Time

// Model is the bubbletea model of the progress view. It polls Source on
// every tick rather than subscribing to events, so a slow terminal never
// holds up the run.
type Model struct {
	src     Source
	refresh time.Duration
	keys    keyMap

	state   orchestrator.RunState
	bar     progress.Model
	spinner spinner.Model

	width       int
	interrupted bool
	finished    bool
}

// NewModel creates a view over src refreshed every refresh.
func NewModel(src Source, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	return Model{
		src:     src,
		refresh: refresh,
		keys:    defaultKeyMap(),
		state:   src.State(),
		bar: progress.New(
			progress.WithGradient(string(styles.PrimaryColor), string(styles.SecondaryColor)),
			progress.WithWidth(40),
		),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(styles.StatusStyle(step.StatusProcessing)),
		),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh tick and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.spinner.Tick)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && !m.finished {
			m.src.Stop()
			m.interrupted = true
			m.state = m.src.State()
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-12, minBarWidth), maxBarWidth)
		return m, nil

	case tickMsg:
		m.state = m.src.State()
		if m.state.Phase.IsTerminal() {
			m.finished = true
			return m, tea.Quit
		}
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// State returns the last run state the view rendered.
func (m Model) State() orchestrator.RunState {
	return m.state
}

// Interrupted reports whether the user cancelled the run from the view.
func (m Model) Interrupted() bool {
	return m.interrupted
}
