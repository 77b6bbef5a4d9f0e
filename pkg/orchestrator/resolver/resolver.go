// Package resolver decides which converter executable a job runs: a prebuilt binary
// shipped next to the application or in the repository, or the Go toolchain building
// the converter from source.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

var (
	// ErrConfiguration is the category for deployment problems that prevent any job
	// from starting. No process is spawned when it is returned.
	ErrConfiguration = errors.New("converter configuration error")

	// ErrBundledExecutableMissing indicates a packaged deployment whose bundle does not
	// contain the converter binary. Source builds are never attempted in packaged mode.
	// errors.Is(err, ErrConfiguration) is also true.
	ErrBundledExecutableMissing = fmt.Errorf("%w: bundled converter executable not found in packaged application", ErrConfiguration)

	// ErrNoExecutable indicates that neither a prebuilt binary nor the build tool could
	// be found. errors.Is(err, ErrConfiguration) is also true.
	ErrNoExecutable = fmt.Errorf("%w: converter executable and build toolchain are both unavailable", ErrConfiguration)
)

// Kind distinguishes how the resolved executable is invoked.
type Kind int

const (
	// Prebuilt runs Path directly.
	Prebuilt Kind = iota
	// BuildFromSource runs Path (the build tool) with "run <EntryPoint>".
	BuildFromSource
)

func (k Kind) String() string {
	switch k {
	case Prebuilt:
		return "prebuilt"
	case BuildFromSource:
		return "build-from-source"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Executable is the outcome of a successful resolution.
type Executable struct {
	Kind       Kind
	Path       string
	EntryPoint string
}

// Resolver locates the converter executable for a job.
type Resolver interface {
	ResolveExecutable() (Executable, error)
}

const (
	DefaultBuildTool  = "go"
	DefaultEntryPoint = "./cmd/converter"
)

// DefaultBinaryName is the converter file name for the running OS.
func DefaultBinaryName() string {
	if runtime.GOOS == "windows" {
		return "converter.exe"
	}
	return "converter"
}

// FSResolver resolves against the local filesystem and PATH. Stat and LookPath
// default to os.Stat and exec.LookPath when nil.
type FSResolver struct {
	BundleRoot string
	RepoRoot   string
	Packaged   bool

	BinaryName string
	BuildTool  string
	EntryPoint string

	Stat     func(name string) (fs.FileInfo, error)
	LookPath func(file string) (string, error)
}

var _ Resolver = (*FSResolver)(nil)

// ResolveExecutable checks the bundle root, then the repository root, for the binary.
// Without one, a packaged deployment fails with ErrBundledExecutableMissing; otherwise
// the build tool is looked up on PATH, failing with ErrNoExecutable.
// The filesystem is only read.
func (r *FSResolver) ResolveExecutable() (Executable, error) {
	name := r.BinaryName
	if name == "" {
		name = DefaultBinaryName()
	}

	for _, root := range []string{r.BundleRoot, r.RepoRoot} {
		if root == "" {
			continue
		}
		candidate := filepath.Join(root, name)
		if r.isFile(candidate) {
			return Executable{Kind: Prebuilt, Path: candidate}, nil
		}
	}

	if r.Packaged {
		return Executable{}, fmt.Errorf("%w (looked for %s in %s)", ErrBundledExecutableMissing, name, r.BundleRoot)
	}

	tool := r.BuildTool
	if tool == "" {
		tool = DefaultBuildTool
	}
	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	toolPath, err := lookPath(tool)
	if err != nil || toolPath == "" {
		return Executable{}, fmt.Errorf("%w (no %s in %q or %q, %q not on PATH)", ErrNoExecutable, name, r.BundleRoot, r.RepoRoot, tool)
	}

	entry := r.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}
	return Executable{Kind: BuildFromSource, Path: toolPath, EntryPoint: entry}, nil
}

func (r *FSResolver) isFile(path string) bool {
	stat := r.Stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(path)
	return err == nil && !info.IsDir()
}
