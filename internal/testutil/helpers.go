package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateDummyFile writes content to path, creating parent directories.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	dir := filepath.Dir(fullPath)
	require.NoError(t, os.MkdirAll(dir, 0o755), "Failed to create directory %s for dummy file", dir)
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644), "Failed to write dummy file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at the given path, creating parents if needed.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	require.NoError(t, os.MkdirAll(fullPath, 0o755), "Failed to create dummy directory %s", fullPath)
}

// WriteScript creates an executable /bin/sh script named name in dir and returns
// its path. Tests using it are skipped on Windows.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on Windows")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// DiscardHandler returns an slog handler that drops everything.
func DiscardHandler() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}
