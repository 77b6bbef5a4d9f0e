// Package command turns a ConversionRequest and a resolved executable into the exact
// argument vector the converter expects.
package command

import (
	"strings"

	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
	"github.com/kerrakir/config-converter/pkg/orchestrator/resolver"
)

// Converter flag names. The order Build emits them in is fixed.
const (
	FlagInput       = "-in"
	FlagOutput      = "-out"
	FlagFrom        = "-from"
	FlagTo          = "-to"
	FlagIfMap       = "-if-map"
	FlagIfIndex     = "-if-index"
	FlagIndexPrefix = "-if-index-prefix"
)

// ResolvedCommand is a fully built invocation. It is created per run and not mutated.
type ResolvedCommand struct {
	Program string   `json:"program" yaml:"program" toml:"program"`
	Args    []string `json:"args" yaml:"args" toml:"args"`
	Dir     string   `json:"dir" yaml:"dir" toml:"dir"`
}

// Build is pure: the same inputs always produce the same command.
func Build(req request.ConversionRequest, exe resolver.Executable, workDir string) ResolvedCommand {
	args := make([]string, 0, 16)
	if exe.Kind == resolver.BuildFromSource {
		args = append(args, "run", exe.EntryPoint)
	}
	args = append(args,
		FlagInput, req.InputPath,
		FlagOutput, req.OutputPath,
		FlagFrom, string(req.SourceDialect),
		FlagTo, string(req.TargetDialect),
	)
	if m := req.MappingString(); m != "" {
		args = append(args, FlagIfMap, m)
	}
	if v := req.IndexPolicy.FlagValue(); v != "" {
		args = append(args, FlagIfIndex, v)
		if req.IndexPolicy == request.IndexThreePart {
			args = append(args, FlagIndexPrefix, req.Prefix())
		}
	}
	return ResolvedCommand{Program: exe.Path, Args: args, Dir: workDir}
}

// String renders the echo line written to the log before a run.
func (c ResolvedCommand) String() string {
	parts := make([]string, 0, len(c.Args)+2)
	parts = append(parts, "$", c.Program)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Argv returns the program followed by its arguments.
func (c ResolvedCommand) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}
