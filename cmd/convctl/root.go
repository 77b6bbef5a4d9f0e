package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kerrakir/config-converter/internal/cli"
	"github.com/kerrakir/config-converter/internal/cli/config"
	"github.com/kerrakir/config-converter/internal/cli/report"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

var (
	// These are set during build time using -ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile     string
	profileName string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "convctl -i <input> -o <output>",
	Short: "Runs the network configuration converter and reports the result.",
	Long: `convctl drives the network configuration converter: it locates the converter
binary (or builds it from source), passes the conversion request on its command
line, streams the converter log and reports how the job ended.

Without a terminal, or with --no-tui, a single conversion runs headless and a job
report is printed to stdout. With --watch the conversion reruns whenever the
input file changes.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
		if err != nil {
			return err
		}
		if !interactive() || opts.Verbose {
			opts.TUIEnabled = false
		}
		return cli.Run(ctx, opts, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// interactive reports whether both output streams are attached to a terminal.
func interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Configuration file path (default is ./convctl.yaml, then $HOME/.config/convctl/)")
	pf.StringVar(&profileName, "profile", "", "Name of configuration profile to use")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	// Request
	pf.StringP("input", "i", "", "Configuration file to convert")
	pf.StringP("output", "o", "", "Destination file for the converted configuration")
	pf.String("from", string(request.DialectCisco), fmt.Sprintf("Source dialect %v", request.Dialects))
	pf.String("to", string(request.DialectHuawei), fmt.Sprintf("Target dialect %v", request.Dialects))
	pf.StringArray("if-map", nil, `Interface type mapping "From=To[,From=To...]" (can be specified multiple times)`)
	pf.Bool("no-if-map", false, "Disable interface type mapping")
	pf.String("if-index", string(request.IndexKeep), `Interface index policy ("keep", "2", "3")`)
	pf.String("if-index-prefix", request.DefaultIndexPrefix, "Leading index component for three-part indices")
	pf.String("request-file", "", "YAML or JSON file describing the conversion request")

	// Converter location
	pf.String("bundle-root", "", "Directory holding the packaged converter (default is the directory of convctl)")
	pf.String("repo-root", "", "Converter source repository (default is the enclosing git repository)")
	pf.String("packaged", config.PackagedAuto, `Packaged deployment ("auto", "true", "false")`)
	pf.String("converter-name", "", "Converter executable file name")
	pf.String("start-timeout", config.DefaultStartTimeout, "Time allowed for the converter process to start")

	// Presentation
	pf.Bool("no-tui", false, "Disable interactive Terminal UI even if in a TTY")
	pf.String("output-format", string(report.FormatText), fmt.Sprintf("Job report format %v", report.Formats))
	pf.String("log-format", config.LogFormatText, `Log format ("text", "json")`)
	pf.StringSlice("preview-encodings", nil, "Encodings tried in order when previewing files")
	pf.String("history-file", "", "Job history database path")

	// Workflow
	pf.Bool("watch", false, "Rerun the conversion whenever the input file changes")
	pf.String("watch-debounce", config.DefaultWatchDebounce, "Watch debounce duration (e.g. '300ms', '1s')")

	rootCmd.AddCommand(historyCmd, previewCmd, resolveCmd)
}
