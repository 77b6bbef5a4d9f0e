package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/kerrakir/config-converter/internal/cli/report"
	"github.com/kerrakir/config-converter/internal/testutil"
	"github.com/kerrakir/config-converter/pkg/orchestrator"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), testutil.DiscardHandler())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetList(t *testing.T) {
	s := openStore(t)

	ids := []string{
		"0190f3a2-0001-7000-8000-000000000000",
		"0190f3a2-0002-7000-8000-000000000000",
		"0190f3a2-0003-7000-8000-000000000000",
	}
	for i, id := range ids {
		require.NoError(t, s.Put(report.JobReport{JobID: id, State: "completed", ExitCode: i}))
	}

	got, found, err := s.Get(ids[1])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, got.ExitCode)

	_, found, err = s.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].JobID, "newest first")
	assert.Equal(t, ids[0], all[2].JobID)

	two, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestStore_PutReplaces(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Put(report.JobReport{JobID: "a", State: "running"}))
	require.NoError(t, s.Put(report.JobReport{JobID: "a", State: "killed"}))

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "killed", all[0].State)

	assert.Error(t, s.Put(report.JobReport{}))
}

func TestStore_SkipsCorruptRecords(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Put(report.JobReport{JobID: "b", State: "completed"}))
	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(jobsBucket).Put([]byte("a"), []byte("{not json"))
	}))

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].JobID)
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(report.JobReport{JobID: "persisted"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is harmless")

	_, err = s.List(0)
	assert.ErrorIs(t, err, ErrStoreClosed)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	_, found, err := s.Get("persisted")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRecorder(t *testing.T) {
	s := openStore(t)
	rec := s.Recorder()

	running := orchestrator.JobStatus{JobID: "job", State: orchestrator.StateRunning}
	require.NoError(t, rec.OnStateChange(running))
	require.NoError(t, rec.OnOutput("job", "ignored"))
	all, err := s.List(0)
	require.NoError(t, err)
	assert.Empty(t, all, "only terminal states are recorded")

	done := running
	done.State = orchestrator.StateKilled
	done.Message = orchestrator.MsgStopped
	done.StartedAt = time.Now().Add(-time.Second)
	done.FinishedAt = time.Now()
	require.NoError(t, rec.OnStateChange(done))

	got, found, err := s.Get("job")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "killed", got.State)
	assert.Equal(t, orchestrator.MsgStopped, got.Message)
	assert.Positive(t, got.DurationMs)
}
