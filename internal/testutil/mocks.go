// Package testutil provides test doubles for the interfaces of the orchestrator
// core (pkg/orchestrator and subpackages) and small filesystem helpers.
package testutil

import (
	"errors"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/kerrakir/config-converter/pkg/orchestrator"
	"github.com/kerrakir/config-converter/pkg/orchestrator/command"
	"github.com/kerrakir/config-converter/pkg/orchestrator/resolver"
)

// MockSpawner provides a mock implementation of the orchestrator.Spawner interface.
// Configure expectations using testify/mock methods (e.g., .On("Spawn", ...).Return(proc, nil)).
type MockSpawner struct {
	mock.Mock
}

// Spawn mocks the Spawn method.
func (m *MockSpawner) Spawn(cmd command.ResolvedCommand) (orchestrator.Process, error) {
	args := m.Called(cmd)
	proc, _ := args.Get(0).(orchestrator.Process)
	return proc, args.Error(1)
}

// MockResolver provides a mock implementation of the resolver.Resolver interface.
type MockResolver struct {
	mock.Mock
}

// ResolveExecutable mocks the ResolveExecutable method.
func (m *MockResolver) ResolveExecutable() (resolver.Executable, error) {
	args := m.Called()
	exe, _ := args.Get(0).(resolver.Executable)
	return exe, args.Error(1)
}

// MockHooks provides a mock implementation of the orchestrator.Hooks interface.
// Prefer RecordingHooks when only the notification sequence matters.
type MockHooks struct {
	mock.Mock
}

// OnOutput mocks the OnOutput method.
func (m *MockHooks) OnOutput(jobID, line string) error {
	args := m.Called(jobID, line)
	return args.Error(0)
}

// OnStateChange mocks the OnStateChange method.
func (m *MockHooks) OnStateChange(status orchestrator.JobStatus) error {
	args := m.Called(status)
	return args.Error(0)
}

// ErrFakeKilled is what FakeProcess.Wait returns after Kill.
var ErrFakeKilled = errors.New("signal: killed")

// FakeProcess is an in-memory orchestrator.Process driven by the test: Emit writes
// output, Exit ends the process with a code, Kill ends it with -1.
type FakeProcess struct {
	Pid int

	pr *io.PipeReader
	pw *io.PipeWriter

	once   sync.Once
	done   chan struct{}
	code   int
	err    error
	mu     sync.Mutex
	killed int
}

var _ orchestrator.Process = (*FakeProcess)(nil)

// NewFakeProcess returns a running fake process.
func NewFakeProcess(pid int) *FakeProcess {
	pr, pw := io.Pipe()
	return &FakeProcess{Pid: pid, pr: pr, pw: pw, done: make(chan struct{})}
}

// Emit writes raw output and blocks until the reader consumed it. Writes after the
// process ended are dropped.
func (p *FakeProcess) Emit(s string) {
	_, _ = p.pw.Write([]byte(s))
}

// Exit closes the output and makes Wait return code.
func (p *FakeProcess) Exit(code int) {
	p.end(code, nil)
}

func (p *FakeProcess) end(code int, err error) {
	p.once.Do(func() {
		p.code, p.err = code, err
		_ = p.pw.Close()
		close(p.done)
	})
}

// Output implements orchestrator.Process.
func (p *FakeProcess) Output() io.Reader { return p.pr }

// Wait implements orchestrator.Process.
func (p *FakeProcess) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

// Kill implements orchestrator.Process.
func (p *FakeProcess) Kill() error {
	p.mu.Lock()
	p.killed++
	p.mu.Unlock()
	p.end(-1, ErrFakeKilled)
	return nil
}

// PID implements orchestrator.Process.
func (p *FakeProcess) PID() int { return p.Pid }

// KillCount reports how many times Kill was called.
func (p *FakeProcess) KillCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Event is one notification captured by RecordingHooks.
type Event struct {
	JobID  string
	Line   string                  // set for output notifications
	Status *orchestrator.JobStatus // set for state notifications
}

// RecordingHooks records every notification in arrival order. It is safe for
// concurrent use.
type RecordingHooks struct {
	mu     sync.Mutex
	events []Event

	// OnState, when set, is called after a state notification is recorded.
	OnState func(orchestrator.JobStatus)
}

// OnOutput implements orchestrator.Hooks.
func (h *RecordingHooks) OnOutput(jobID, line string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, Event{JobID: jobID, Line: line})
	return nil
}

// OnStateChange implements orchestrator.Hooks.
func (h *RecordingHooks) OnStateChange(status orchestrator.JobStatus) error {
	h.mu.Lock()
	h.events = append(h.events, Event{JobID: status.JobID, Status: &status})
	cb := h.OnState
	h.mu.Unlock()
	if cb != nil {
		cb(status)
	}
	return nil
}

// Events returns a copy of everything recorded so far.
func (h *RecordingHooks) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

// Lines returns the output lines recorded for jobID.
func (h *RecordingHooks) Lines(jobID string) []string {
	var out []string
	for _, e := range h.Events() {
		if e.Status == nil && e.JobID == jobID {
			out = append(out, e.Line)
		}
	}
	return out
}

// States returns the sequence of states notified for jobID.
func (h *RecordingHooks) States(jobID string) []orchestrator.State {
	var out []orchestrator.State
	for _, e := range h.Events() {
		if e.Status != nil && e.JobID == jobID {
			out = append(out, e.Status.State)
		}
	}
	return out
}
