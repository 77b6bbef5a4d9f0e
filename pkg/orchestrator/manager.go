package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kerrakir/config-converter/pkg/orchestrator/command"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

// DefaultStartTimeout bounds how long Start waits for the spawn to be confirmed.
const DefaultStartTimeout = 3 * time.Second

// Manager owns the single job slot: it spawns the converter, pumps its output to
// the hooks and classifies the exit.
type Manager struct {
	spawner      Spawner
	hooks        Hooks
	logger       *slog.Logger
	startTimeout time.Duration
	newID        func() string
	now          func() time.Time

	mu            sync.Mutex
	status        JobStatus
	proc          Process
	killRequested bool
	exited        bool
	done          chan struct{}
}

// NewManager creates an idle manager. A nil hooks value selects NoOpHooks, a nil
// handler discards logs and a non-positive timeout selects DefaultStartTimeout.
func NewManager(spawner Spawner, hooks Hooks, handler slog.Handler, startTimeout time.Duration) *Manager {
	if hooks == nil {
		hooks = &NoOpHooks{}
	}
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	if startTimeout <= 0 {
		startTimeout = DefaultStartTimeout
	}
	return &Manager{
		spawner:      spawner,
		hooks:        hooks,
		logger:       slog.New(handler).With(slog.String("component", "manager")),
		startTimeout: startTimeout,
		newID:        newJobID,
		now:          time.Now,
		status:       JobStatus{State: StateIdle, ExitCode: -1},
	}
}

func newJobID() string {
	// Version 7 IDs sort by creation time, which the history store relies on.
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

type spawnResult struct {
	proc Process
	err  error
}

// Start claims the job slot and spawns cmd. It returns ErrBusy without side effects
// while another job is active. A spawn that fails or is not confirmed within the
// start timeout moves the job to Failed, notifies the hooks and returns an error
// wrapping ErrStart. Otherwise the job is Running when Start returns and the rest
// of its lifecycle is reported asynchronously.
func (m *Manager) Start(req request.ConversionRequest, cmd command.ResolvedCommand) (string, error) {
	m.mu.Lock()
	if m.status.State.Active() {
		current := m.status
		m.mu.Unlock()
		return "", fmt.Errorf("%w: job %s is %s", ErrBusy, current.JobID, current.State)
	}
	id := m.newID()
	done := make(chan struct{})
	m.status = JobStatus{
		JobID:     id,
		State:     StateStarting,
		ExitCode:  -1,
		Command:   cmd,
		Request:   req,
		StartedAt: m.now(),
	}
	m.proc = nil
	m.killRequested = false
	m.exited = false
	m.done = done
	m.mu.Unlock()

	logger := m.logger.With(slog.String("job", id))
	logger.Info("Starting converter", slog.String("program", cmd.Program), slog.Any("args", cmd.Args), slog.String("dir", cmd.Dir))

	res := m.spawn(cmd, logger)
	if res.err != nil {
		m.mu.Lock()
		st := m.status
		m.mu.Unlock()

		st.State = StateFailed
		st.Err = fmt.Errorf("%w: %w", ErrStart, res.err)
		st.Message = st.Err.Error()
		st.FinishedAt = m.now()
		logger.Error("Converter failed to start", slog.String("error", res.err.Error()))
		m.finish(st, done, logger)
		return id, st.Err
	}

	m.mu.Lock()
	m.proc = res.proc
	m.status.State = StateRunning
	kill := m.killRequested
	st := m.status
	m.mu.Unlock()

	logger.Debug("Converter running", slog.Int("pid", res.proc.PID()))
	m.notifyState(st, logger)
	if kill {
		// Stop arrived while the spawn was pending.
		m.kill(res.proc, logger)
	}

	go m.monitor(res.proc, done, logger)
	return id, nil
}

// spawn runs the spawner with the start deadline. A process confirmed after the
// deadline is killed and reaped in the background.
func (m *Manager) spawn(cmd command.ResolvedCommand, logger *slog.Logger) spawnResult {
	ch := make(chan spawnResult, 1)
	go func() {
		p, err := m.spawner.Spawn(cmd)
		ch <- spawnResult{proc: p, err: err}
	}()

	timer := time.NewTimer(m.startTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err == nil && res.proc == nil {
			res.err = errors.New("spawner returned no process")
		}
		return res
	case <-timer.C:
		go func() {
			late := <-ch
			if late.err != nil || late.proc == nil {
				return
			}
			logger.Warn("Killing converter that started after the timeout", slog.Int("pid", late.proc.PID()))
			_ = late.proc.Kill()
			_, _ = io.Copy(io.Discard, late.proc.Output())
			_, _ = late.proc.Wait()
		}()
		return spawnResult{err: fmt.Errorf("%w after %s", ErrStartTimeout, m.startTimeout)}
	}
}

// monitor waits for the exit while output is pumped on a second goroutine. The
// kill flag is read when the exit is observed; the terminal state is published
// once the output has ended, so every output event precedes it.
func (m *Manager) monitor(p Process, done chan struct{}, logger *slog.Logger) {
	m.mu.Lock()
	id := m.status.JobID
	m.mu.Unlock()

	pumped := make(chan int, 1)
	go func() { pumped <- m.pump(p.Output(), id, logger) }()

	code, waitErr := p.Wait()

	m.mu.Lock()
	m.exited = true
	killed := m.killRequested
	st := m.status
	m.mu.Unlock()

	lines := <-pumped

	st.Lines = lines
	st.FinishedAt = m.now()
	st.ExitCode = code
	if killed {
		st.State = StateKilled
		st.Message = MsgStopped
		logger.Info("Converter stopped by user", slog.Int("lines", lines))
	} else {
		st.State = StateCompleted
		st.Err = waitErr
		st.Message = ExitMessage(code)
		logger.Info("Converter exited", slog.Int("exitCode", code), slog.Int("lines", lines), slog.Duration("duration", st.Duration()))
	}
	m.finish(st, done, logger)
}

// pump forwards output line by line and returns the line count.
func (m *Manager) pump(out io.Reader, id string, logger *slog.Logger) int {
	lines := 0
	r := bufio.NewReader(transform.NewReader(out, unicode.UTF8.NewDecoder()))
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lines++
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if hookErr := m.hooks.OnOutput(id, line); hookErr != nil {
				logger.Warn("Output hook failed", slog.String("error", hookErr.Error()))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("Reading converter output failed", slog.String("error", err.Error()))
			}
			return lines
		}
	}
}

// finish publishes the terminal status before committing it, so no new job can
// notify the hooks ahead of this job's last notification.
func (m *Manager) finish(st JobStatus, done chan struct{}, logger *slog.Logger) {
	m.notifyState(st, logger)

	m.mu.Lock()
	m.status = st
	m.proc = nil
	m.mu.Unlock()
	close(done)
}

func (m *Manager) notifyState(st JobStatus, logger *slog.Logger) {
	if err := m.hooks.OnStateChange(st); err != nil {
		logger.Warn("State hook failed", slog.String("state", string(st.State)), slog.String("error", err.Error()))
	}
}

func (m *Manager) kill(p Process, logger *slog.Logger) {
	if err := p.Kill(); err != nil {
		logger.Debug("Kill failed", slog.String("error", err.Error()))
	}
}

// Stop requests termination of the active job and returns immediately. The job's
// exit is later reported as Killed. It returns false, and does nothing, when no
// job is active. A converter whose exit was already observed keeps its exit code;
// only the output drain is still pending then.
func (m *Manager) Stop() bool {
	m.mu.Lock()
	if !m.status.State.Active() {
		m.mu.Unlock()
		return false
	}
	if m.exited {
		m.mu.Unlock()
		return true
	}
	m.killRequested = true
	p := m.proc
	logger := m.logger.With(slog.String("job", m.status.JobID))
	m.mu.Unlock()

	logger.Info("Stop requested")
	if p != nil {
		m.kill(p, logger)
	}
	return true
}

// Status returns a snapshot of the current or most recent job.
func (m *Manager) Status() JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Wait blocks until the current job is terminal or ctx is done. With no job it
// returns the idle status at once.
func (m *Manager) Wait(ctx context.Context) (JobStatus, error) {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return m.Status(), nil
	}
	select {
	case <-done:
		return m.Status(), nil
	case <-ctx.Done():
		return m.Status(), ctx.Err()
	}
}
