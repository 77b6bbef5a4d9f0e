package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kerrakir/config-converter/pkg/orchestrator"
	"github.com/kerrakir/config-converter/pkg/orchestrator/command"
	"github.com/kerrakir/config-converter/pkg/orchestrator/ifmap"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

func sampleStatus() orchestrator.JobStatus {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return orchestrator.JobStatus{
		JobID:    "0190f3a2-0000-7000-8000-000000000001",
		State:    orchestrator.StateCompleted,
		ExitCode: 1,
		Message:  "Conversion failed with exit code: 1",
		Command:  command.ResolvedCommand{Program: "/opt/converter", Args: []string{"-in", "r1.cfg", "-out", "r1.vrp"}, Dir: "/repo"},
		Request: request.ConversionRequest{
			InputPath:        "r1.cfg",
			OutputPath:       "r1.vrp",
			SourceDialect:    request.DialectCisco,
			TargetDialect:    request.DialectHuawei,
			InterfaceMapping: []ifmap.Pair{{From: "GigabitEthernet", To: "GE"}},
			IndexPolicy:      request.IndexThreePart,
			IndexPrefix:      "1",
		},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Lines:      12,
	}
}

func TestFromStatus(t *testing.T) {
	st := sampleStatus()
	st.Err = errors.New("exit status 1")
	r := FromStatus(st)

	assert.Equal(t, "completed", r.State)
	assert.Equal(t, "GigabitEthernet=GE", r.IfMap)
	assert.Equal(t, "three-part", r.IfIndex)
	assert.Equal(t, int64(1500), r.DurationMs)
	assert.Equal(t, "exit status 1", r.Error)
	assert.False(t, r.Succeeded())
	assert.Equal(t, "$ /opt/converter -in r1.cfg -out r1.vrp", r.CommandLine())

	st.Command.Args[0] = "mutated"
	assert.Equal(t, "-in", r.Args[0], "report owns its copy of the args")
}

func TestWrite_Formats(t *testing.T) {
	r := FromStatus(sampleStatus())

	t.Run("Text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatText))
		out := buf.String()
		assert.Contains(t, out, "State:")
		assert.Contains(t, out, "completed (exit 1)")
		assert.Contains(t, out, "$ /opt/converter -in r1.cfg -out r1.vrp")
		assert.Contains(t, out, "GigabitEthernet=GE")
		assert.Contains(t, out, "1.5s")
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatJSON))
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "r1.cfg", got["input"])
		assert.EqualValues(t, 1, got["exitCode"])
		assert.NotContains(t, got, "error")
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatYAML))
		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "huawei", got["to"])
	})

	t.Run("TOML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatTOML))
		var got JobReport
		_, err := toml.Decode(buf.String(), &got)
		require.NoError(t, err)
		assert.Equal(t, r.JobID, got.JobID)
		assert.True(t, r.StartedAt.Equal(got.StartedAt))
	})

	t.Run("Unknown", func(t *testing.T) {
		assert.ErrorIs(t, Write(&bytes.Buffer{}, r, Format("xml")), ErrUnknownFormat)
	})
}

func TestWriteList(t *testing.T) {
	a := FromStatus(sampleStatus())
	b := a
	b.JobID = "second"
	b.State = "killed"

	var buf bytes.Buffer
	require.NoError(t, WriteList(&buf, []JobReport{a, b}, FormatText))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "STARTED"))
	assert.Contains(t, lines[2], "killed")

	buf.Reset()
	require.NoError(t, WriteList(&buf, nil, FormatJSON))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteList(&buf, []JobReport{a}, FormatTOML))
	assert.Contains(t, buf.String(), "[[jobs]]")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("csv")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
