package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBinary(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755))
	return p
}

func lookPathFound(string) (string, error) { return "/usr/local/go/bin/go", nil }

func lookPathMissing(file string) (string, error) {
	return "", errors.New("executable file not found in $PATH: " + file)
}

func TestResolveExecutable(t *testing.T) {
	t.Run("Bundle root wins", func(t *testing.T) {
		bundle, repo := t.TempDir(), t.TempDir()
		want := writeBinary(t, bundle, "converter")
		writeBinary(t, repo, "converter")

		r := &FSResolver{BundleRoot: bundle, RepoRoot: repo, BinaryName: "converter", LookPath: lookPathFound}
		exe, err := r.ResolveExecutable()
		require.NoError(t, err)
		assert.Equal(t, Executable{Kind: Prebuilt, Path: want}, exe)
	})

	t.Run("Repository root second", func(t *testing.T) {
		repo := t.TempDir()
		want := writeBinary(t, repo, "converter")

		r := &FSResolver{BundleRoot: t.TempDir(), RepoRoot: repo, BinaryName: "converter", Packaged: true}
		exe, err := r.ResolveExecutable()
		require.NoError(t, err)
		assert.Equal(t, Prebuilt, exe.Kind)
		assert.Equal(t, want, exe.Path)
	})

	t.Run("Packaged without binary", func(t *testing.T) {
		called := false
		r := &FSResolver{
			BundleRoot: t.TempDir(),
			RepoRoot:   t.TempDir(),
			BinaryName: "converter",
			Packaged:   true,
			LookPath: func(string) (string, error) {
				called = true
				return "/usr/bin/go", nil
			},
		}
		_, err := r.ResolveExecutable()
		assert.ErrorIs(t, err, ErrBundledExecutableMissing)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.False(t, called, "packaged mode must not fall back to a source build")
	})

	t.Run("Development falls back to build tool", func(t *testing.T) {
		r := &FSResolver{BundleRoot: t.TempDir(), RepoRoot: t.TempDir(), BinaryName: "converter", LookPath: lookPathFound}
		exe, err := r.ResolveExecutable()
		require.NoError(t, err)
		assert.Equal(t, Executable{Kind: BuildFromSource, Path: "/usr/local/go/bin/go", EntryPoint: DefaultEntryPoint}, exe)
	})

	t.Run("Nothing available", func(t *testing.T) {
		r := &FSResolver{BundleRoot: t.TempDir(), RepoRoot: t.TempDir(), BinaryName: "converter", LookPath: lookPathMissing}
		_, err := r.ResolveExecutable()
		assert.ErrorIs(t, err, ErrNoExecutable)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.NotErrorIs(t, err, ErrBundledExecutableMissing)
	})

	t.Run("Directory with binary name ignored", func(t *testing.T) {
		bundle := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(bundle, "converter"), 0o755))
		r := &FSResolver{BundleRoot: bundle, BinaryName: "converter", LookPath: lookPathFound}
		exe, err := r.ResolveExecutable()
		require.NoError(t, err)
		assert.Equal(t, BuildFromSource, exe.Kind)
	})

	t.Run("Custom tool and entry point", func(t *testing.T) {
		var asked string
		r := &FSResolver{
			BuildTool:  "go1.23",
			EntryPoint: "./tools/conv",
			LookPath: func(f string) (string, error) {
				asked = f
				return "/opt/go1.23", nil
			},
		}
		exe, err := r.ResolveExecutable()
		require.NoError(t, err)
		assert.Equal(t, "go1.23", asked)
		assert.Equal(t, "./tools/conv", exe.EntryPoint)
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "prebuilt", Prebuilt.String())
	assert.Equal(t, "build-from-source", BuildFromSource.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}
