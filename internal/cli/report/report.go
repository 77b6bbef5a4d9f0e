// Package report renders finished conversion jobs for the console, for machine
// consumption and for the job history.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/kerrakir/config-converter/pkg/orchestrator"
)

// Format selects how reports are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatTOML}

// ErrUnknownFormat is returned for a format outside Formats.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat normalizes s into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatText, nil
	}
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: %q (want one of %v)", ErrUnknownFormat, s, Formats)
	}
	return f, nil
}

// JobReport summarizes one finished job.
type JobReport struct {
	JobID         string    `json:"jobId" yaml:"jobId" toml:"jobId"`
	State         string    `json:"state" yaml:"state" toml:"state"`
	ExitCode      int       `json:"exitCode" yaml:"exitCode" toml:"exitCode"`
	Message       string    `json:"message" yaml:"message" toml:"message"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	Program       string    `json:"program" yaml:"program" toml:"program"`
	Args          []string  `json:"args" yaml:"args" toml:"args"`
	Dir           string    `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
	Input         string    `json:"input" yaml:"input" toml:"input"`
	Output        string    `json:"output" yaml:"output" toml:"output"`
	From          string    `json:"from" yaml:"from" toml:"from"`
	To            string    `json:"to" yaml:"to" toml:"to"`
	IfMap         string    `json:"ifMap,omitempty" yaml:"ifMap,omitempty" toml:"ifMap,omitempty"`
	IfIndex       string    `json:"ifIndex" yaml:"ifIndex" toml:"ifIndex"`
	IfIndexPrefix string    `json:"ifIndexPrefix,omitempty" yaml:"ifIndexPrefix,omitempty" toml:"ifIndexPrefix,omitempty"`
	Lines         int       `json:"lines" yaml:"lines" toml:"lines"`
	StartedAt     time.Time `json:"startedAt" yaml:"startedAt" toml:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt" yaml:"finishedAt" toml:"finishedAt"`
	DurationMs    int64     `json:"durationMs" yaml:"durationMs" toml:"durationMs"`
}

// FromStatus builds a report from a job snapshot.
func FromStatus(st orchestrator.JobStatus) JobReport {
	r := JobReport{
		JobID:         st.JobID,
		State:         string(st.State),
		ExitCode:      st.ExitCode,
		Message:       st.Message,
		Program:       st.Command.Program,
		Args:          append([]string{}, st.Command.Args...),
		Dir:           st.Command.Dir,
		Input:         st.Request.InputPath,
		Output:        st.Request.OutputPath,
		From:          string(st.Request.SourceDialect),
		To:            string(st.Request.TargetDialect),
		IfMap:         st.Request.MappingString(),
		IfIndex:       string(st.Request.IndexPolicy),
		IfIndexPrefix: st.Request.IndexPrefix,
		Lines:         st.Lines,
		StartedAt:     st.StartedAt.UTC(),
		FinishedAt:    st.FinishedAt.UTC(),
		DurationMs:    st.Duration().Milliseconds(),
	}
	if st.Err != nil {
		r.Error = st.Err.Error()
	}
	return r
}

// Succeeded reports whether the job completed with exit code 0.
func (r JobReport) Succeeded() bool {
	return r.State == string(orchestrator.StateCompleted) && r.ExitCode == 0
}

// CommandLine renders the command as it was echoed to the log.
func (r JobReport) CommandLine() string {
	return strings.Join(append([]string{"$", r.Program}, r.Args...), " ")
}

// Write renders a single report.
func Write(w io.Writer, r JobReport, format Format) error {
	switch format {
	case FormatText, "":
		return writeText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		return writeYAML(w, r)
	case FormatTOML:
		return toml.NewEncoder(w).Encode(r)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteList renders several reports, newest first as given.
func WriteList(w io.Writer, reports []JobReport, format Format) error {
	switch format {
	case FormatText, "":
		return writeTable(w, reports)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if reports == nil {
			reports = []JobReport{}
		}
		return enc.Encode(reports)
	case FormatYAML:
		return writeYAML(w, reports)
	case FormatTOML:
		// TOML documents need a table at the top level.
		return toml.NewEncoder(w).Encode(struct {
			Jobs []JobReport `toml:"jobs"`
		}{reports})
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeText(w io.Writer, r JobReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Job:\t%s\n", r.JobID)
	fmt.Fprintf(tw, "State:\t%s (exit %d)\n", r.State, r.ExitCode)
	fmt.Fprintf(tw, "Message:\t%s\n", r.Message)
	if r.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", r.Error)
	}
	fmt.Fprintf(tw, "Command:\t%s\n", r.CommandLine())
	fmt.Fprintf(tw, "Input:\t%s (%s)\n", r.Input, r.From)
	fmt.Fprintf(tw, "Output:\t%s (%s)\n", r.Output, r.To)
	if r.IfMap != "" {
		fmt.Fprintf(tw, "Interface map:\t%s\n", r.IfMap)
	}
	fmt.Fprintf(tw, "Lines:\t%d\n", r.Lines)
	fmt.Fprintf(tw, "Duration:\t%s\n", time.Duration(r.DurationMs)*time.Millisecond)
	return tw.Flush()
}

func writeTable(w io.Writer, reports []JobReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tJOB\tSTATE\tEXIT\tINPUT\tOUTPUT\tDURATION")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.JobID,
			r.State,
			r.ExitCode,
			r.Input,
			r.Output,
			time.Duration(r.DurationMs)*time.Millisecond,
		)
	}
	return tw.Flush()
}
