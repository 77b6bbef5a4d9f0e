package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kerrakir/config-converter/internal/cli"
	"github.com/kerrakir/config-converter/internal/cli/config"
	"github.com/kerrakir/config-converter/internal/cli/history"
	"github.com/kerrakir/config-converter/internal/cli/repo"
	"github.com/kerrakir/config-converter/internal/cli/report"
	"github.com/kerrakir/config-converter/pkg/orchestrator/encoding"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
	"github.com/kerrakir/config-converter/pkg/orchestrator/resolver"
)

const defaultHistoryLimit = 20

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists recent conversion jobs, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := history.Open(cli.HistoryPath(opts), logger.Handler())
		if err != nil {
			return err
		}
		defer store.Close()

		reports, err := store.List(limit)
		if err != nil {
			return err
		}
		return report.WriteList(cmd.OutOrStdout(), reports, opts.ReportFormat)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Decodes a configuration file the way the TUI preview does.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
		if err != nil {
			return err
		}
		loader, err := encoding.NewLoader(opts.PreviewEncodings, logger.Handler())
		if err != nil {
			return err
		}

		res := loader.Load(args[0])
		out := cmd.OutOrStdout()
		switch res.Status {
		case encoding.Absent:
			return fmt.Errorf("%s: file does not exist", res.Path)
		case encoding.Unreadable:
			return fmt.Errorf("%s: %w", res.Path, res.Err)
		}
		fmt.Fprintf(out, "# %s (%s", res.Path, res.Encoding)
		if res.Language != "" {
			fmt.Fprintf(out, ", %s", res.Language)
		}
		fmt.Fprintln(out, ")")
		_, err = io.WriteString(out, res.Text)
		return err
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Shows which converter would run and with which command line.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
		if err != nil {
			return err
		}
		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer out.Flush()

		exe, err := cli.NewResolver(opts).ResolveExecutable()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Kind:\t%s\n", exe.Kind)
		fmt.Fprintf(out, "Path:\t%s\n", exe.Path)
		if exe.Kind == resolver.BuildFromSource {
			fmt.Fprintf(out, "Entry:\t%s\n", exe.EntryPoint)
			if rev, err := repo.Revision(opts.Converter.RepoRoot); err == nil {
				fmt.Fprintf(out, "Revision:\t%s\n", rev)
			}
		}

		req, err := request.NewConversionRequest(opts.Request)
		if err != nil {
			if errors.Is(err, request.ErrInvalidRequest) {
				logger.Debug("No complete request, command line not shown", slog.String("error", err.Error()))
				return nil
			}
			return err
		}
		orch, err := cli.NewOrchestrator(opts, logger.Handler(), nil)
		if err != nil {
			return err
		}
		rc, err := orch.Prepare(req)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Command:\t%s\n", rc.String())
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", defaultHistoryLimit, "Maximum number of jobs to list (0 for all)")
}
