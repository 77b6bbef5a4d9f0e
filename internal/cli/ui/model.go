package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kerrakir/config-converter/internal/cli/hooks"
	"github.com/kerrakir/config-converter/pkg/orchestrator"
	"github.com/kerrakir/config-converter/pkg/orchestrator/encoding"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

const (
	// MsgBusy is shown when a run is requested while a job is active.
	MsgBusy = "Conversion is already running."

	maxLogLines     = 5000
	minPaneHeight   = 3
	previewFraction = 3 // preview pane takes 1/previewFraction of the free height
)

// Controller is the part of the orchestrator the TUI drives.
type Controller interface {
	Start(req request.ConversionRequest) (string, error)
	Stop() bool
	Preview(path string) encoding.Result
}

// startResultMsg reports the outcome of a Start call issued from a command.
type startResultMsg struct {
	jobID string
	err   error
}

// previewMsg carries a loaded file for the preview pane.
type previewMsg struct {
	label  string
	result encoding.Result
}

// Model is the interactive front end: the request form, the converter log and
// the file preview.
type Model struct {
	ctrl    Controller
	version string

	form    form
	spinner spinner.Model
	log     viewport.Model
	preview viewport.Model

	logLines     []string
	previewLabel string
	previewOpen  bool

	jobID      string
	state      orchestrator.State
	statusLine string
	statusErr  bool

	width       int
	height      int
	initialized bool
	quitting    bool
}

// NewModel creates the TUI model. opts pre-fills the form.
func NewModel(ctrl Controller, opts request.Options, version string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorStatusRunning)

	return Model{
		ctrl:       ctrl,
		version:    version,
		form:       newForm(opts),
		spinner:    s,
		log:        viewport.New(0, 0),
		preview:    viewport.New(0, 0),
		state:      orchestrator.StateIdle,
		statusLine: "Ready.",
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses, window changes and orchestrator notifications.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.initialized = true
		m.layout()

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case startResultMsg:
		m.handleStartResult(msg)

	case previewMsg:
		m.showPreview(msg)

	case hooks.OutputLineMsg:
		if msg.JobID == m.jobID {
			m.appendLog(msg.Line)
		}

	case hooks.JobStatusMsg:
		m.handleStatus(msg.Status)

	default:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		cmds = append(cmds, cmd)
		if ti := m.form.textInput(m.form.focus); ti != nil {
			*ti, cmd = ti.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	f := &m.form

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		if m.state.Active() {
			m.ctrl.Stop()
		}
		return tea.Quit
	case "ctrl+r":
		return m.run()
	case "ctrl+x":
		if !m.ctrl.Stop() {
			m.setStatus("No conversion is running.", false)
		}
		return nil
	case "ctrl+o":
		return m.previewCmd("Input", f.input.Value())
	case "ctrl+p":
		return m.previewCmd("Output", f.output.Value())
	case "esc":
		m.previewOpen = false
		m.layout()
		return nil
	case "ctrl+a":
		f.addRow()
		m.layout()
		return nil
	case "ctrl+d":
		f.removeRow()
		m.layout()
		return nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return cmd
	case "tab", "down":
		f.setFocus(f.focus + 1)
		return nil
	case "shift+tab", "up":
		f.setFocus(f.focus - 1)
		return nil
	}

	if f.focus == fieldMapping {
		switch msg.String() {
		case " ", "space", "enter", "left", "right":
			f.mappingEnabled = !f.mappingEnabled
		}
		return nil
	}
	if sel := f.selectorFor(f.focus); sel != nil {
		switch msg.String() {
		case "right", " ", "space", "enter":
			sel.next()
		case "left":
			sel.prev()
		}
		return nil
	}
	if ti := f.textInput(f.focus); ti != nil {
		if msg.String() == "enter" {
			f.setFocus(f.focus + 1)
			return nil
		}
		var cmd tea.Cmd
		*ti, cmd = ti.Update(msg)
		return cmd
	}
	return nil
}

// run validates the form and starts a job in the background.
func (m *Model) run() tea.Cmd {
	if m.state.Active() {
		m.setStatus(MsgBusy, true)
		return nil
	}
	req, err := request.NewConversionRequest(m.form.options())
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}
	m.setStatus("Starting conversion...", false)
	ctrl := m.ctrl
	return func() tea.Msg {
		id, err := ctrl.Start(req)
		return startResultMsg{jobID: id, err: err}
	}
}

func (m *Model) handleStartResult(msg startResultMsg) {
	switch {
	case msg.err == nil:
		return
	case errors.Is(msg.err, orchestrator.ErrBusy):
		m.setStatus(MsgBusy, true)
	case errors.Is(msg.err, orchestrator.ErrStart):
		// The Failed notification carries the details.
	default:
		m.setStatus(msg.err.Error(), true)
	}
}

func (m *Model) handleStatus(st orchestrator.JobStatus) {
	if st.JobID != m.jobID {
		m.jobID = st.JobID
		m.logLines = m.logLines[:0]
		if st.Command.Program != "" && (st.State == orchestrator.StateRunning || st.State == orchestrator.StateFailed) {
			m.appendLog(st.Command.String())
		}
	}
	m.state = st.State

	switch st.State {
	case orchestrator.StateRunning:
		m.setStatus(fmt.Sprintf("Converting %s...", st.Request.InputPath), false)
	case orchestrator.StateCompleted, orchestrator.StateKilled, orchestrator.StateFailed:
		m.appendLog(st.Message)
		m.setStatus(st.Message, !st.Succeeded())
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.statusLine = s
	m.statusErr = isErr
}

func (m *Model) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if over := len(m.logLines) - maxLogLines; over > 0 {
		m.logLines = append(m.logLines[:0], m.logLines[over:]...)
	}
	m.log.SetContent(strings.Join(m.logLines, "\n"))
	m.log.GotoBottom()
}

func (m *Model) previewCmd(label, path string) tea.Cmd {
	if strings.TrimSpace(path) == "" {
		m.setStatus(fmt.Sprintf("%s file is not set.", label), true)
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		return previewMsg{label: label, result: ctrl.Preview(path)}
	}
}

func (m *Model) showPreview(msg previewMsg) {
	res := msg.result
	var body string
	switch res.Status {
	case encoding.Decoded:
		m.previewLabel = fmt.Sprintf("%s: %s (%s", msg.label, res.Path, res.Encoding)
		if res.Language != "" {
			m.previewLabel += ", " + res.Language
		}
		m.previewLabel += ")"
		body = res.Text
	case encoding.Absent:
		m.previewLabel = fmt.Sprintf("%s: %s", msg.label, res.Path)
		body = "File does not exist yet."
	default:
		m.previewLabel = fmt.Sprintf("%s: %s", msg.label, res.Path)
		body = fmt.Sprintf("Cannot read file: %v", res.Err)
	}
	m.previewOpen = true
	m.layout()
	m.preview.SetContent(body)
	m.preview.GotoTop()
}

// Form returns the current form values.
func (m *Model) Form() request.Options { return m.form.options() }

// State is the last job state the model has seen.
func (m *Model) State() orchestrator.State { return m.state }

// layout sizes the panes to the window.
func (m *Model) layout() {
	if !m.initialized {
		return
	}
	used := lipgloss.Height(m.headerView()) + lipgloss.Height(m.formView()) + lipgloss.Height(m.footerView()) + 2
	free := m.height - used
	if free < 2*minPaneHeight {
		free = 2 * minPaneHeight
	}
	previewHeight := 0
	if m.previewOpen {
		previewHeight = max(free/previewFraction, minPaneHeight)
		free -= previewHeight + 1
	}
	m.log.Width = m.width
	m.log.Height = max(free, minPaneHeight)
	m.preview.Width = m.width
	m.preview.Height = previewHeight
}
