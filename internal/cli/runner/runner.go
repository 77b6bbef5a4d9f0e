// Package runner spawns the converter as an operating system process. It is the
// production orchestrator.Spawner.
package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kerrakir/config-converter/pkg/orchestrator"
	"github.com/kerrakir/config-converter/pkg/orchestrator/command"
)

// ErrEmptyCommand is returned by Spawn for a command without a program.
var ErrEmptyCommand = errors.New("converter command cannot be empty")

// DrainTimeout bounds how long output is still read after the converter exited.
// Descendants that inherited the pipe cannot keep the job open past it.
const DrainTimeout = 500 * time.Millisecond

// execSpawner implements orchestrator.Spawner using os/exec.
type execSpawner struct {
	logger *slog.Logger
	env    []string
}

// NewExecSpawner creates a spawner that runs commands as child processes. Extra
// environment entries (KEY=VALUE) are appended to the inherited environment.
func NewExecSpawner(loggerHandler slog.Handler, extraEnv ...string) orchestrator.Spawner {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(loggerHandler).With(slog.String("component", "runner"))
	return &execSpawner{logger: logger, env: extraEnv}
}

// Spawn starts rc with stdout and stderr merged into one pipe. The parent's write
// end is closed after start. The output reaches EOF once every process holding the
// pipe has exited, or DrainTimeout after Wait observed the converter's exit.
func (s *execSpawner) Spawn(rc command.ResolvedCommand) (orchestrator.Process, error) {
	if strings.TrimSpace(rc.Program) == "" {
		return nil, ErrEmptyCommand
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	cmd := exec.Command(rc.Program, rc.Args...)
	cmd.Dir = rc.Dir
	cmd.Stdout = pw
	cmd.Stderr = pw
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}
	configureProcess(cmd)

	if startErr := cmd.Start(); startErr != nil {
		_ = pr.Close()
		_ = pw.Close()
		s.logger.Error("Failed to start converter process", slog.String("program", rc.Program), slog.String("dir", rc.Dir), slog.Any("error", startErr))
		return nil, fmt.Errorf("failed to start '%s': %w", rc.Program, startErr)
	}
	if closeErr := pw.Close(); closeErr != nil {
		s.logger.Warn("Error closing parent write end of output pipe", slog.Any("error", closeErr))
	}

	s.logger.Debug("Converter process started", slog.Int("pid", cmd.Process.Pid), slog.String("program", rc.Program))
	return &execProcess{cmd: cmd, out: pr, logger: s.logger.With(slog.Int("pid", cmd.Process.Pid))}, nil
}

// execProcess implements orchestrator.Process for a started *exec.Cmd.
type execProcess struct {
	cmd    *exec.Cmd
	out    *os.File
	logger *slog.Logger

	waitOnce  sync.Once
	closeOnce sync.Once
	code      int
	err       error
}

func (p *execProcess) Output() io.Reader { return p }

// Read reads merged output. The deadline set by Wait and a pipe closed after the
// drain both end the stream as EOF.
func (p *execProcess) Read(b []byte) (int, error) {
	n, err := p.out.Read(b)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, os.ErrClosed) {
			err = io.EOF
		}
		p.closeOutput()
	}
	return n, err
}

func (p *execProcess) closeOutput() {
	p.closeOnce.Do(func() {
		if err := p.out.Close(); err != nil {
			p.logger.Debug("Error closing output pipe", slog.Any("error", err))
		}
	})
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

// Wait reaps the process and bounds the remaining output to DrainTimeout. It
// returns as soon as the converter exits, even while descendants still hold the
// output pipe. A process terminated by a signal reports -1 with the wait error;
// a normal exit reports its code and nil.
func (p *execProcess) Wait() (int, error) {
	p.waitOnce.Do(func() {
		waitErr := p.cmd.Wait()
		if err := p.out.SetReadDeadline(time.Now().Add(DrainTimeout)); err != nil {
			// Pipes without deadline support are closed instead.
			time.AfterFunc(DrainTimeout, p.closeOutput)
		}

		switch {
		case waitErr == nil:
			p.code = 0
		default:
			p.code = -1
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				p.code = exitErr.ExitCode()
			}
			if p.code < 0 {
				p.err = waitErr
			}
		}
		p.logger.Debug("Converter process exited", slog.Int("exitCode", p.code))
	})
	return p.code, p.err
}

// Kill terminates the process and, where supported, every process it started.
func (p *execProcess) Kill() error {
	if err := killProcess(p.cmd); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("failed to kill converter process %d: %w", p.PID(), err)
	}
	return nil
}
