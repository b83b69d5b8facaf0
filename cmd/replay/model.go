package main

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/candlelab/replay/internal/replay"
	"github.com/candlelab/replay/internal/types"
)

// refreshInterval is how often the watch view polls the controller for a
// fresh snapshot.
const refreshInterval = 100 * time.Millisecond

// Model is the interactive watch view over a running replay. It never
// touches the run state directly: keys become control commands, and the
// display is rebuilt from the controller's published snapshots.
type Model struct {
	controller *replay.Controller
	snapshot   types.Snapshot

	seeking   bool
	seekInput textinput.Model

	notice string
	err    error
	width  int
}

// NewModel creates the watch view for a controller whose playback loop is
// already running (or about to run).
func NewModel(controller *replay.Controller) Model {
	input := textinput.New()
	input.Placeholder = "candle index"
	input.CharLimit = 10
	input.Width = 12

	return Model{
		controller: controller,
		snapshot:   controller.Snapshot(),
		seeking:    false,
		seekInput:  input,
		notice:     "",
		err:        nil,
		width:      80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

		return m, nil

	case tickMsg:
		m.snapshot = m.controller.Snapshot()

		return m, tickCmd()

	case tea.KeyMsg:
		if m.seeking {
			return m.updateSeekInput(msg)
		}

		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.send(m.controller.Stop, "stopping")

		return m, tea.Quit

	case " ":
		if m.snapshot.Status == types.PlaybackPaused {
			m.send(m.controller.Resume, "resumed")
		} else {
			m.send(m.controller.Pause, "pausing")
		}

	case "s":
		m.send(m.controller.Step, "stepped one candle")

	case "+", "=":
		speed := m.snapshot.Speed * 2
		m.sendSpeed(speed)

	case "-", "_":
		speed := m.snapshot.Speed / 2
		m.sendSpeed(speed)

	case "g":
		m.seeking = true
		m.seekInput.SetValue("")
		m.seekInput.Focus()
	}

	return m, nil
}

func (m Model) updateSeekInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.seeking = false
		m.seekInput.Blur()

		index, err := strconv.Atoi(m.seekInput.Value())
		if err != nil {
			m.err = err

			return m, nil
		}

		if err := m.controller.Seek(index); err != nil {
			m.err = err
		} else {
			m.err = nil
			m.notice = "seeking to candle " + strconv.Itoa(index)
		}

		return m, nil

	case "esc":
		m.seeking = false
		m.seekInput.Blur()

		return m, nil
	}

	var cmd tea.Cmd
	m.seekInput, cmd = m.seekInput.Update(msg)

	return m, cmd
}

// send issues a control command and records the outcome for the view.
func (m *Model) send(command func() error, notice string) {
	if err := command(); err != nil {
		m.err = err

		return
	}

	m.err = nil
	m.notice = notice
}

func (m *Model) sendSpeed(speed float64) {
	if err := m.controller.SetSpeed(speed); err != nil {
		m.err = err

		return
	}

	m.err = nil
	m.notice = "speed set to " + strconv.FormatFloat(speed, 'g', -1, 64) + "x"
}
