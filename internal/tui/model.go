package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/errtop/internal/model"
)

const (
	minK = 1
	maxK = 50
)

// TickMsg represents periodic updates.
type TickMsg time.Time

// dataLoadedMsg carries the result of an async fetch.
type dataLoadedMsg struct {
	snap  model.Snapshot
	stats model.Stats
	err   error
	at    time.Time
}

// DashboardModel is the Bubble Tea model of the live ranking.
type DashboardModel struct {
	reader         model.TopKReader
	keys           KeyMap
	updateInterval time.Duration
	source         string

	k      int
	paused bool

	snap        model.Snapshot
	stats       model.Stats
	lastError   string
	lastFetchAt time.Time

	// Async fetch guard to avoid overlapping socket calls.
	fetchInFlight bool

	width  int
	height int
}

// NewDashboardModel creates a dashboard polling reader every updateInterval.
func NewDashboardModel(reader model.TopKReader, k int, updateInterval time.Duration, source string) *DashboardModel {
	if updateInterval <= 0 {
		updateInterval = model.DefaultUpdateInterval
	}
	return &DashboardModel{
		reader:         reader,
		keys:           DefaultKeyMap(),
		updateInterval: updateInterval,
		source:         source,
		k:              clampK(k),
	}
}

func clampK(k int) int {
	return max(minK, min(k, maxK))
}

// K returns the number of rows currently requested.
func (m *DashboardModel) K() int { return m.k }

// Paused reports whether polling is paused.
func (m *DashboardModel) Paused() bool { return m.paused }

func (m *DashboardModel) Init() tea.Cmd {
	m.fetchInFlight = true
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m *DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *DashboardModel) fetchCmd() tea.Cmd {
	reader, k := m.reader, m.k
	return func() tea.Msg {
		msg := dataLoadedMsg{at: time.Now()}
		msg.snap, msg.err = reader.TopK(k)
		if msg.err != nil {
			return msg
		}
		msg.stats, msg.err = reader.Stats()
		return msg
	}
}

// refresh starts a fetch unless one is already running.
func (m *DashboardModel) refresh() tea.Cmd {
	if m.fetchInFlight {
		return nil
	}
	m.fetchInFlight = true
	return m.fetchCmd()
}

func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case TickMsg:
		if m.paused {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.refresh(), m.tickCmd())

	case dataLoadedMsg:
		m.fetchInFlight = false
		if msg.err != nil {
			m.lastError = msg.err.Error()
			return m, nil
		}
		m.lastError = ""
		m.snap = msg.snap
		m.stats = msg.stats
		m.lastFetchAt = msg.at
		return m, nil
	}
	return m, nil
}

func (m *DashboardModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
		return tea.Quit
	case key.Matches(msg, m.keys.MoreK):
		if m.k < maxK {
			m.k++
			return m.refresh()
		}
	case key.Matches(msg, m.keys.LessK):
		if m.k > minK {
			m.k--
			if len(m.snap) > m.k {
				m.snap = m.snap[:m.k]
			}
			return m.refresh()
		}
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		if !m.paused {
			return m.refresh()
		}
	case key.Matches(msg, m.keys.Refresh):
		return m.refresh()
	}
	return nil
}
