// Package history persists finished conversion jobs in a bbolt database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kerrakir/config-converter/internal/cli/report"
	"github.com/kerrakir/config-converter/pkg/orchestrator"
)

const (
	// DefaultFileName is the database file name inside the user's state directory.
	DefaultFileName = "history.db"

	// DefaultFileMode is the file mode for a new database.
	DefaultFileMode = 0o600

	// DefaultTimeout bounds how long Open waits for the file lock held by another
	// convctl process.
	DefaultTimeout = time.Second
)

var jobsBucket = []byte("jobs")

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("history store is closed")

// Store is the job history. Keys are job IDs, which are time-ordered UUIDs, so
// cursor order is chronological.
type Store struct {
	db     *bolt.DB
	path   string
	logger *slog.Logger
}

// DefaultPath returns the history location under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(dir, "convctl", DefaultFileName)
}

// Open creates or opens the database at path.
func Open(path string, handler slog.Handler) (*Store, error) {
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(handler).With(slog.String("component", "history"))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for history database: %w", err)
	}

	db, err := bolt.Open(path, DefaultFileMode, &bolt.Options{Timeout: DefaultTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(jobsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	logger.Debug("History database opened", slog.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Path is the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the database file.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Put stores r, replacing any report with the same job ID.
func (s *Store) Put(r report.JobReport) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	if r.JobID == "" {
		return errors.New("job report has no ID")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal job report: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(jobsBucket).Put([]byte(r.JobID), data)
	})
}

// Get returns the report for jobID.
func (s *Store) Get(jobID string) (report.JobReport, bool, error) {
	var r report.JobReport
	if s.db == nil {
		return r, false, ErrStoreClosed
	}
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(jobsBucket).Get([]byte(jobID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &r)
	})
	return r, found, err
}

// List returns up to limit reports, newest first. A non-positive limit returns all.
// Records that fail to decode are skipped and logged.
func (s *Store) List(limit int) ([]report.JobReport, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	var out []report.JobReport
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(jobsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r report.JobReport
			if err := json.Unmarshal(v, &r); err != nil {
				s.logger.Warn("Skipping unreadable history record", slog.String("job", string(k)), slog.String("error", err.Error()))
				continue
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Recorder returns hooks that store every job when it reaches a terminal state.
func (s *Store) Recorder() orchestrator.Hooks {
	return &recorder{store: s}
}

type recorder struct {
	store *Store
}

func (r *recorder) OnOutput(string, string) error { return nil }

func (r *recorder) OnStateChange(st orchestrator.JobStatus) error {
	if !st.State.Terminal() || st.JobID == "" {
		return nil
	}
	if err := r.store.Put(report.FromStatus(st)); err != nil {
		return fmt.Errorf("failed to record job %s: %w", st.JobID, err)
	}
	return nil
}
