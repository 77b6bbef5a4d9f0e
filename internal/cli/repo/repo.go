// Package repo locates the converter source checkout with go-git. The repository
// root is where a locally built converter binary lives and the working directory
// for "go run ./cmd/converter".
package repo

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// ErrNotRepository indicates that no git repository contains the start path.
var ErrNotRepository = errors.New("not inside a git repository")

// FindRoot returns the worktree root of the repository containing start,
// searching parent directories.
func FindRoot(start string) (string, error) {
	r, abs, err := open(start)
	if err != nil {
		return "", err
	}
	wt, err := r.Worktree()
	if err != nil {
		return "", fmt.Errorf("repository at or above '%s' has no worktree: %w", abs, err)
	}
	return wt.Filesystem.Root(), nil
}

// Revision returns the abbreviated HEAD commit of the repository containing
// start. An empty repository has no revision and returns an error.
func Revision(start string) (string, error) {
	r, abs, err := open(start)
	if err != nil {
		return "", err
	}
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD of repository at '%s': %w", abs, err)
	}
	return head.Hash().String()[:12], nil
}

func open(start string) (*git.Repository, string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path for '%s': %w", start, err)
	}
	r, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, abs, fmt.Errorf("%w: '%s'", ErrNotRepository, abs)
		}
		return nil, abs, fmt.Errorf("failed to open repository at '%s': %w", abs, err)
	}
	return r, abs, nil
}
