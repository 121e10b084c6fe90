package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/harvester/internal/domain"
	"github.com/mmcdole/harvester/internal/tui/styles"
)

// maxRecentDiscrepancies bounds the discrepancy panel
const maxRecentDiscrepancies = 5

// Model is the harvest progress view
type Model struct {
	events <-chan Event
	stop   func()
	keys   KeyMap

	spinner  spinner.Model
	progress progress.Model
	width    int

	// Running totals
	Total         int
	Offset        int
	Batches       int
	Items         int
	Pages         int
	Records       int
	PageFailures  int
	WriteFailures int
	Discrepancies int
	LastPage      *domain.PageReport
	Recent        []domain.ItemTally // Newest last

	Stopping bool
	Done     bool
	Result   domain.HarvestResult
	Err      error
}

// NewModel creates a progress view fed by events. stop is called when the
// user asks to end the harvest early.
func NewModel(events <-chan Event, stop func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	p := progress.New(
		progress.WithGradient(string(styles.SlateLight), string(styles.Accent)),
		progress.WithWidth(40),
	)

	if stop == nil {
		stop = func() {}
	}

	return Model{
		events:   events,
		stop:     stop,
		keys:     DefaultKeyMap(),
		spinner:  s,
		progress: p,
	}
}

// Init starts the spinner and the event listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.Done {
				return m, tea.Quit
			}
			m.Stopping = true
			m.stop()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-20, 10), 80)
		return m, nil

	case EventMsg:
		m.apply(Event(msg))
		return m, waitForEvent(m.events)

	case DoneMsg:
		m.Done = true
		m.Result = msg.Result
		m.Err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// apply folds one harvest update into the running totals
func (m *Model) apply(ev Event) {
	switch {
	case ev.Page != nil:
		m.Pages++
		m.Records += ev.Page.Records
		m.WriteFailures += ev.Page.WriteFailures()
		if ev.Page.Err != nil {
			m.PageFailures++
		}
		m.LastPage = ev.Page

	case ev.Item != nil:
		m.Items++
		if ev.Item.Short() {
			m.Discrepancies++
			m.Recent = append(m.Recent, *ev.Item)
			if len(m.Recent) > maxRecentDiscrepancies {
				m.Recent = m.Recent[len(m.Recent)-maxRecentDiscrepancies:]
			}
		}

	case ev.Batch != nil:
		m.Batches++
		m.Total = ev.Batch.Total
		m.Offset = ev.Batch.Offset
	}
}

// Fraction returns catalog progress in [0, 1]
func (m Model) Fraction() float64 {
	if m.Done && m.Err == nil {
		return 1
	}
	if m.Total <= 0 {
		return 0
	}
	f := float64(m.Offset) / float64(m.Total)
	if f > 1 {
		return 1
	}
	return f
}
