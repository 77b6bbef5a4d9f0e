package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/kerrakir/config-converter/pkg/orchestrator/command"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

// State is the lifecycle position of the job slot.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateKilled    State = "killed"
)

// Active reports whether a job occupies the slot.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning
}

// Terminal reports whether s ends a job.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateKilled
}

// Status lines shown to the operator when a job ends.
const (
	MsgSucceeded = "Conversion finished successfully."
	MsgStopped   = "Process stopped by user."
	msgExitCode  = "Conversion failed with exit code: %d"
)

// ExitMessage is the status line for a job that ran to completion with code.
func ExitMessage(code int) string {
	if code == 0 {
		return MsgSucceeded
	}
	return fmt.Sprintf(msgExitCode, code)
}

// JobStatus is a snapshot of one job. It is also the payload of every state
// notification.
type JobStatus struct {
	JobID      string
	State      State
	ExitCode   int // meaningful for Completed and Killed; -1 when no exit code exists
	Err        error
	Message    string
	Command    command.ResolvedCommand
	Request    request.ConversionRequest
	StartedAt  time.Time
	FinishedAt time.Time
	Lines      int // output lines delivered; set when the job ends
}

// Succeeded reports whether the job completed with exit code 0.
func (s JobStatus) Succeeded() bool {
	return s.State == StateCompleted && s.ExitCode == 0
}

// Duration is the wall time of a finished job, or zero.
func (s JobStatus) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Hooks receives job notifications. For one job, calls arrive one at a time and in
// order: Running (or Failed), then every output line, then exactly one terminal
// state change. Implementations must not call Start synchronously from a callback;
// returned errors are logged and otherwise ignored.
type Hooks interface {
	OnOutput(jobID, line string) error
	OnStateChange(status JobStatus) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnOutput implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnOutput(jobID, line string) error { return nil }

// OnStateChange implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnStateChange(status JobStatus) error { return nil }

// Process is a started converter process.
type Process interface {
	// Output is the merged stdout and stderr stream. It must reach EOF within a
	// bounded time after Wait returned, even if descendants still hold the stream.
	Output() io.Reader
	// Wait blocks until the process itself exits and returns the exit code. It is
	// called while Output is still being read. A process that ended without one
	// (killed by a signal) reports -1 and a non-nil error.
	Wait() (int, error)
	// Kill terminates the process forcefully.
	Kill() error
	PID() int
}

// Spawner starts processes for resolved commands.
type Spawner interface {
	Spawn(cmd command.ResolvedCommand) (Process, error)
}
