package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/kerrakir/config-converter/internal/cli/config"
	"github.com/kerrakir/config-converter/internal/cli/history"
	"github.com/kerrakir/config-converter/internal/cli/hooks"
	"github.com/kerrakir/config-converter/internal/cli/report"
	"github.com/kerrakir/config-converter/internal/cli/runner"
	"github.com/kerrakir/config-converter/internal/cli/ui"
	"github.com/kerrakir/config-converter/internal/cli/watch"
	"github.com/kerrakir/config-converter/pkg/orchestrator"
	"github.com/kerrakir/config-converter/pkg/orchestrator/encoding"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
	"github.com/kerrakir/config-converter/pkg/orchestrator/resolver"
)

// ErrJobFailed is returned in headless mode when the job did not complete with
// exit code 0.
var ErrJobFailed = errors.New("conversion did not succeed")

const (
	// LogFileName receives logs while the TUI owns the terminal.
	LogFileName = "convctl.log"

	shutdownTimeout = 5 * time.Second
)

// NewResolver builds the filesystem resolver described by opts.
func NewResolver(opts config.Options) *resolver.FSResolver {
	return &resolver.FSResolver{
		BundleRoot: opts.Converter.BundleRoot,
		RepoRoot:   opts.Converter.RepoRoot,
		Packaged:   opts.Packaged,
		BinaryName: opts.Converter.Name,
		BuildTool:  opts.Converter.BuildTool,
		EntryPoint: opts.Converter.EntryPoint,
	}
}

// HistoryPath is the configured history database, or the default location.
func HistoryPath(opts config.Options) string {
	if opts.HistoryFile != "" {
		return opts.HistoryFile
	}
	return history.DefaultPath()
}

// NewOrchestrator wires the resolver, the process runner and the preview loader
// into an orchestrator reporting to h.
func NewOrchestrator(opts config.Options, handler slog.Handler, h orchestrator.Hooks) (*orchestrator.Orchestrator, error) {
	loader, err := encoding.NewLoader(opts.PreviewEncodings, handler)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfigValidation, err)
	}
	return orchestrator.New(orchestrator.Options{
		Resolver:     NewResolver(opts),
		Spawner:      runner.NewExecSpawner(handler),
		Hooks:        h,
		Logger:       handler,
		WorkDir:      opts.Converter.RepoRoot,
		StartTimeout: opts.StartTimeout,
		Loader:       loader,
	})
}

// Run executes convctl with validated options: the interactive TUI when enabled,
// otherwise a single headless job (or a watch loop). Converter output goes to
// stderr; job reports go to stdout.
func Run(ctx context.Context, opts config.Options, logger *slog.Logger, stdout, stderr io.Writer) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	store, err := history.Open(HistoryPath(opts), logger.Handler())
	if err != nil {
		logger.Warn("Job history disabled", slog.String("error", err.Error()))
	} else {
		defer store.Close()
	}

	if opts.TUIEnabled {
		return runTUI(ctx, opts, logger, store)
	}
	return runHeadless(ctx, opts, logger, store, stdout, stderr)
}

func withHistory(store *history.Store, h ...orchestrator.Hooks) orchestrator.Hooks {
	if store != nil {
		h = append(h, store.Recorder())
	}
	return hooks.Multi(h)
}

// --- Headless ---

func runHeadless(ctx context.Context, opts config.Options, logger *slog.Logger, store *history.Store, stdout, stderr io.Writer) error {
	req, err := request.NewConversionRequest(opts.Request)
	if err != nil {
		return err
	}

	var bar hooks.ProgressBar
	if isTerminal(stderr) && !opts.Verbose && !opts.Watch.Enabled {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetDescription("Starting converter"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	cliHooks := hooks.NewCLIHooks(logger, false, opts.Verbose, nil, bar, stderr)
	reports := &reportWriter{w: stdout, format: opts.ReportFormat}
	orch, err := NewOrchestrator(opts, logger.Handler(), withHistory(store, cliHooks, reports))
	if err != nil {
		return err
	}

	if opts.Watch.Enabled {
		return runWatch(ctx, opts, logger, orch, req)
	}

	if _, err := orch.Start(req); err != nil && !errors.Is(err, orchestrator.ErrStart) {
		return err
	}
	st, err := waitJob(ctx, orch)
	if err != nil {
		return err
	}
	if !st.Succeeded() {
		return fmt.Errorf("%w: %s", ErrJobFailed, st.Message)
	}
	return nil
}

// waitJob waits for the current job. Cancelling ctx stops the job and waits for
// the Killed notification, bounded by shutdownTimeout.
func waitJob(ctx context.Context, orch *orchestrator.Orchestrator) (orchestrator.JobStatus, error) {
	st, err := orch.Wait(ctx)
	if err == nil {
		return st, nil
	}
	orch.Stop()
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return orch.Wait(waitCtx)
}

// newWatcher starts a watcher that reruns the configured request whenever its
// input file changes.
func newWatcher(opts config.Options, orch *orchestrator.Orchestrator, logger *slog.Logger) (*watch.Watcher, error) {
	req, err := request.NewConversionRequest(opts.Request)
	if err != nil {
		return nil, err
	}
	start := func(string) error {
		_, err := orch.Start(req)
		return err
	}
	w, err := watch.New(req.InputPath, opts.WatchDebounce, start, func() bool { return orch.State().Active() }, logger.Handler())
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func runWatch(ctx context.Context, opts config.Options, logger *slog.Logger, orch *orchestrator.Orchestrator, req request.ConversionRequest) error {
	w, err := newWatcher(opts, orch, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := orch.Start(req); err != nil && !errors.Is(err, orchestrator.ErrStart) {
		return err
	}
	logger.Info("Watching for changes", slog.String("input", req.InputPath))

	<-ctx.Done()
	logger.Info("Watch mode stopped")
	_ = w.Close()
	if orch.Stop() {
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_, _ = orch.Wait(waitCtx)
	}
	return nil
}

// reportWriter prints a job report for every finished job.
type reportWriter struct {
	mu     sync.Mutex
	w      io.Writer
	format report.Format
}

func (r *reportWriter) OnOutput(string, string) error { return nil }

func (r *reportWriter) OnStateChange(st orchestrator.JobStatus) error {
	if !st.State.Terminal() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return report.Write(r.w, report.FromStatus(st), r.format)
}

// --- TUI ---

// programSender forwards hook messages once the program exists.
type programSender struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programSender) set(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
}

func (s *programSender) Send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func runTUI(ctx context.Context, opts config.Options, logger *slog.Logger, store *history.Store) error {
	logPath := filepath.Join(filepath.Dir(HistoryPath(opts)), LogFileName)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	defer logFile.Close()
	fileLogger := slog.New(config.NewLogHandler(logFile, opts.LogFormat, opts.Verbose))
	logger.Debug("TUI enabled, logging to file", slog.String("path", logPath))

	sender := &programSender{}
	cliHooks := hooks.NewCLIHooks(fileLogger, true, opts.Verbose, sender, nil, nil)
	orch, err := NewOrchestrator(opts, fileLogger.Handler(), withHistory(store, cliHooks))
	if err != nil {
		return err
	}

	model := ui.NewModel(orch, opts.Request, opts.AppVersion)
	program := tea.NewProgram(&model, tea.WithAltScreen(), tea.WithContext(ctx))
	sender.set(program)

	if opts.Watch.Enabled {
		w, err := newWatcher(opts, orch, fileLogger)
		if err != nil {
			fileLogger.Warn("Watch mode disabled", slog.String("error", err.Error()))
		} else {
			defer w.Close()
		}
	}

	_, runErr := program.Run()

	sender.set(nil)
	if orch.Stop() {
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_, _ = orch.Wait(waitCtx)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
