package reqfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerrakir/config-converter/internal/testutil"
	"github.com/kerrakir/config-converter/pkg/orchestrator/ifmap"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

func TestParse_YAML(t *testing.T) {
	f, err := Parse([]byte(`
input: r1.cfg
output: r1.vrp
from: cisco
to: huawei
ifMap:
  - from: GigabitEthernet
    to: GE
  - from: "-"
    to: "-"
ifIndex: 3
ifIndexPrefix: 2
`))
	require.NoError(t, err)
	assert.Equal(t, "r1.cfg", f.Input)
	assert.Equal(t, "3", f.IfIndex)
	assert.Equal(t, "2", f.IfIndexPrefix)
	assert.True(t, f.MappingEnabled)
	require.Len(t, f.IfMap, 2)

	req, err := request.NewConversionRequest(f.Options())
	require.NoError(t, err)
	assert.Equal(t, []ifmap.Pair{{From: "GigabitEthernet", To: "GE"}}, req.InterfaceMapping)
	assert.Equal(t, request.IndexThreePart, req.IndexPolicy)
	assert.Equal(t, "2", req.IndexPrefix)
}

func TestParse_JSONWithStringMapping(t *testing.T) {
	f, err := Parse([]byte(`{"input":"a","output":"b","to":"json","ifMap":"FastEthernet=Ethernet","ifIndex":"two-part"}`))
	require.NoError(t, err)
	assert.Equal(t, []ifmap.Pair{{From: "FastEthernet", To: "Ethernet"}}, f.IfMap)

	req, err := request.NewConversionRequest(f.Options())
	require.NoError(t, err)
	assert.Equal(t, request.DialectJSON, req.TargetDialect)
	assert.Equal(t, request.DialectCisco, req.SourceDialect)
	assert.Equal(t, request.IndexTwoPart, req.IndexPolicy)
}

func TestParse_NoMappingKey(t *testing.T) {
	f, err := Parse([]byte("input: a\noutput: b\n"))
	require.NoError(t, err)
	assert.False(t, f.MappingEnabled)
	assert.Empty(t, f.IfMap)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"Empty", ""},
		{"Not YAML", "input: [unterminated"},
		{"Missing output", "input: a"},
		{"Unknown dialect", "input: a\noutput: b\nfrom: juniper"},
		{"Unknown interface type", "input: a\noutput: b\nifMap:\n  - from: Serial\n    to: GE"},
		{"Bad index", "input: a\noutput: b\nifIndex: 4"},
		{"Unknown key", "input: a\noutput: b\nmode: fast"},
		{"Malformed mapping string", "input: a\noutput: b\nifMap: GE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidFile)
		})
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "job.yaml")
	abs := filepath.Join(dir, "elsewhere", "out.vrp")
	testutil.CreateDummyFile(t, p, "input: configs/r1.cfg\noutput: "+abs+"\n")

	f, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "configs", "r1.cfg"), f.Input)
	assert.Equal(t, abs, f.Output)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidFile)
}
