package testutil_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerrakir/config-converter/internal/testutil"
	"github.com/kerrakir/config-converter/pkg/orchestrator"
)

func TestFakeProcess_ExitAfterOutput(t *testing.T) {
	p := testutil.NewFakeProcess(42)
	go func() {
		p.Emit("hello\n")
		p.Exit(3)
	}()

	out, err := io.ReadAll(p.Output())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	code, err := p.Wait()
	assert.Equal(t, 3, code)
	assert.NoError(t, err)
	assert.Equal(t, 42, p.PID())
}

func TestFakeProcess_KillIsIdempotent(t *testing.T) {
	p := testutil.NewFakeProcess(1)
	require.NoError(t, p.Kill())
	require.NoError(t, p.Kill())
	p.Exit(0)

	code, err := p.Wait()
	assert.Equal(t, -1, code)
	assert.ErrorIs(t, err, testutil.ErrFakeKilled)
	assert.Equal(t, 2, p.KillCount())
}

func TestRecordingHooks(t *testing.T) {
	h := &testutil.RecordingHooks{}
	var seen []orchestrator.State
	h.OnState = func(s orchestrator.JobStatus) { seen = append(seen, s.State) }

	require.NoError(t, h.OnStateChange(orchestrator.JobStatus{JobID: "a", State: orchestrator.StateRunning}))
	require.NoError(t, h.OnOutput("a", "line"))
	require.NoError(t, h.OnOutput("b", "other"))
	require.NoError(t, h.OnStateChange(orchestrator.JobStatus{JobID: "a", State: orchestrator.StateCompleted}))

	assert.Equal(t, []string{"line"}, h.Lines("a"))
	assert.Equal(t, []orchestrator.State{orchestrator.StateRunning, orchestrator.StateCompleted}, h.States("a"))
	assert.Equal(t, seen, h.States("a"))
	assert.Len(t, h.Events(), 4)
}
