// Package orchestrator runs conversion jobs: it resolves the converter executable,
// builds the command line for a ConversionRequest, manages the single converter
// process and loads files for preview.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kerrakir/config-converter/pkg/orchestrator/command"
	"github.com/kerrakir/config-converter/pkg/orchestrator/encoding"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
	"github.com/kerrakir/config-converter/pkg/orchestrator/resolver"
)

// Options configures an Orchestrator.
type Options struct {
	Resolver     resolver.Resolver // Required
	Spawner      Spawner           // Required
	Hooks        Hooks             // Optional: defaults to NoOpHooks
	Logger       slog.Handler      // Optional: nil discards logs
	WorkDir      string            // Working directory of the converter, normally the repository root
	StartTimeout time.Duration     // Optional: defaults to DefaultStartTimeout
	Loader       *encoding.Loader  // Optional: defaults to the standard candidate list
}

// Orchestrator is the entry point used by the presentation layers.
type Orchestrator struct {
	resolver resolver.Resolver
	workDir  string
	manager  *Manager
	loader   *encoding.Loader
	logger   *slog.Logger
}

// New validates opts and returns an idle orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("%w: resolver cannot be nil", ErrConfiguration)
	}
	if opts.Spawner == nil {
		return nil, fmt.Errorf("%w: spawner cannot be nil", ErrConfiguration)
	}
	handler := opts.Logger
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	loader := opts.Loader
	if loader == nil {
		var err error
		if loader, err = encoding.NewLoader(nil, handler); err != nil {
			return nil, err
		}
	}
	return &Orchestrator{
		resolver: opts.Resolver,
		workDir:  opts.WorkDir,
		manager:  NewManager(opts.Spawner, opts.Hooks, handler, opts.StartTimeout),
		loader:   loader,
		logger:   slog.New(handler).With(slog.String("component", "orchestrator")),
	}, nil
}

// Prepare resolves the executable and builds the command for req without
// starting anything.
func (o *Orchestrator) Prepare(req request.ConversionRequest) (command.ResolvedCommand, error) {
	if err := req.Validate(); err != nil {
		return command.ResolvedCommand{}, err
	}
	exe, err := o.resolver.ResolveExecutable()
	if err != nil {
		return command.ResolvedCommand{}, err
	}
	o.logger.Debug("Resolved converter", slog.String("kind", exe.Kind.String()), slog.String("path", exe.Path))
	return command.Build(req, exe, o.workDir), nil
}

// Start begins a job for req and returns its ID. Busy and configuration errors are
// returned before anything is spawned and produce no notifications.
func (o *Orchestrator) Start(req request.ConversionRequest) (string, error) {
	if st := o.manager.Status(); st.State.Active() {
		return "", fmt.Errorf("%w: job %s is %s", ErrBusy, st.JobID, st.State)
	}
	cmd, err := o.Prepare(req)
	if err != nil {
		o.logger.Warn("Conversion not started", slog.String("error", err.Error()))
		return "", err
	}
	return o.manager.Start(req, cmd)
}

// Stop terminates the active job, if any. See Manager.Stop.
func (o *Orchestrator) Stop() bool { return o.manager.Stop() }

// Status returns a snapshot of the current or most recent job.
func (o *Orchestrator) Status() JobStatus { return o.manager.Status() }

// State is shorthand for Status().State.
func (o *Orchestrator) State() State { return o.manager.Status().State }

// Wait blocks until the current job ends or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (JobStatus, error) { return o.manager.Wait(ctx) }

// Preview loads path with the encoding-tolerant loader.
func (o *Orchestrator) Preview(path string) encoding.Result { return o.loader.Load(path) }
