package hooks

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/kerrakir/config-converter/pkg/orchestrator"
)

// --- TUI Message Structs ---

// OutputLineMsg carries one converter output line to the TUI.
type OutputLineMsg struct {
	JobID string
	Line  string
}

// JobStatusMsg carries a job state change to the TUI.
type JobStatusMsg struct{ Status orchestrator.JobStatus }

// --- Hook Implementation ---

// CLIHooks implements the orchestrator.Hooks interface, bridging job events to the
// CLI's presentation layer: the TUI, the console, the spinner and the logger.
type CLIHooks struct {
	logger         *slog.Logger
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram
	progressBar    ProgressBar
	console        io.Writer
	mu             sync.Mutex // serializes console and progress bar writes
}

// TUIProgram defines the interface needed to interact with the Bubble Tea program.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// ProgressBar defines the subset of *progressbar.ProgressBar the hooks drive.
type ProgressBar interface {
	Add(num int) error
	Describe(description string)
	Close() error
}

// NoOpTUIProgram provides a default null implementation.
type NoOpTUIProgram struct{}

// Send implements TUIProgram.
func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// NoOpProgressBar provides a default null implementation.
type NoOpProgressBar struct{}

// Add implements ProgressBar.
func (n *NoOpProgressBar) Add(num int) error { return nil }

// Describe implements ProgressBar.
func (n *NoOpProgressBar) Describe(description string) {}

// Close implements ProgressBar.
func (n *NoOpProgressBar) Close() error { return nil }

var (
	echoColor    = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	stoppedColor = color.New(color.FgYellow, color.Bold)
)

// NewCLIHooks creates a new CLIHooks instance. Pass nil for tuiProg or progBar if
// not applicable; NoOp versions will be used. console receives the converter log
// in headless mode and may be nil to suppress it.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram, progBar ProgressBar, console io.Writer) *CLIHooks {
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	if console == nil {
		console = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CLIHooks{
		logger:         logger.With(slog.String("component", "hooks")),
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
		progressBar:    progBar,
		console:        console,
	}
}

// OnOutput handles one line of converter output.
func (h *CLIHooks) OnOutput(jobID, line string) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(OutputLineMsg{JobID: jobID, Line: line})
		return nil
	}

	if h.verboseEnabled {
		h.logger.Debug("Converter output", slog.String("job", jobID), slog.String("line", line))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.progressBar.Add(1)
	_, err := fmt.Fprintln(h.console, line)
	return err
}

// OnStateChange handles job lifecycle events.
func (h *CLIHooks) OnStateChange(st orchestrator.JobStatus) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(JobStatusMsg{Status: st})
		return nil
	}

	attrs := []any{slog.String("job", st.JobID), slog.String("state", string(st.State))}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch st.State {
	case orchestrator.StateRunning:
		h.logger.Info("Conversion started", append(attrs, slog.String("input", st.Request.InputPath), slog.String("output", st.Request.OutputPath))...)
		h.progressBar.Describe(fmt.Sprintf("Converting %s", st.Request.InputPath))
		_, err := echoColor.Fprintln(h.console, st.Command.String())
		return err

	case orchestrator.StateCompleted:
		_ = h.progressBar.Close()
		attrs = append(attrs, slog.Int("exitCode", st.ExitCode), slog.Int("lines", st.Lines), slog.Duration("duration", st.Duration()))
		if st.Succeeded() {
			h.logger.Info("Conversion finished", attrs...)
			_, err := successColor.Fprintln(h.console, st.Message)
			return err
		}
		if st.Err != nil {
			attrs = append(attrs, slog.String("error", st.Err.Error()))
		}
		h.logger.Error("Conversion failed", attrs...)
		_, err := failureColor.Fprintln(h.console, st.Message)
		return err

	case orchestrator.StateKilled:
		_ = h.progressBar.Close()
		h.logger.Warn("Conversion stopped", attrs...)
		_, err := stoppedColor.Fprintln(h.console, st.Message)
		return err

	case orchestrator.StateFailed:
		_ = h.progressBar.Close()
		if st.Err != nil {
			attrs = append(attrs, slog.String("error", st.Err.Error()))
		}
		h.logger.Error("Conversion could not start", attrs...)
		if st.Command.Program != "" {
			_, _ = echoColor.Fprintln(h.console, st.Command.String())
		}
		_, err := failureColor.Fprintln(h.console, st.Message)
		return err
	}
	return nil
}

// Multi fans notifications out to several hooks in order. Every hook is called even
// when an earlier one fails; the first error is returned.
type Multi []orchestrator.Hooks

// OnOutput implements orchestrator.Hooks.
func (m Multi) OnOutput(jobID, line string) error {
	var first error
	for _, h := range m {
		if err := h.OnOutput(jobID, line); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OnStateChange implements orchestrator.Hooks.
func (m Multi) OnStateChange(st orchestrator.JobStatus) error {
	var first error
	for _, h := range m {
		if err := h.OnStateChange(st); err != nil && first == nil {
			first = err
		}
	}
	return first
}
