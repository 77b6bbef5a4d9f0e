package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerrakir/config-converter/pkg/orchestrator/ifmap"
)

func validOptions() Options {
	return Options{
		InputPath:     "in.cfg",
		OutputPath:    "out.cfg",
		SourceDialect: "cisco",
		TargetDialect: "huawei",
	}
}

func TestNewConversionRequest_Defaults(t *testing.T) {
	req, err := NewConversionRequest(Options{InputPath: " in.cfg ", OutputPath: "out.cfg"})
	require.NoError(t, err)

	assert.Equal(t, "in.cfg", req.InputPath)
	assert.Equal(t, DialectCisco, req.SourceDialect)
	assert.Equal(t, DialectHuawei, req.TargetDialect)
	assert.Equal(t, IndexKeep, req.IndexPolicy)
	assert.Empty(t, req.IndexPrefix)
	assert.Nil(t, req.InterfaceMapping)
}

func TestNewConversionRequest_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"Empty input", func(o *Options) { o.InputPath = "  " }},
		{"Empty output", func(o *Options) { o.OutputPath = "" }},
		{"Unknown source", func(o *Options) { o.SourceDialect = "juniper" }},
		{"Unknown target", func(o *Options) { o.TargetDialect = "xml" }},
		{"Unknown index policy", func(o *Options) { o.IndexPolicy = "4" }},
		{"Unknown interface type", func(o *Options) {
			o.MappingEnabled = true
			o.Rows = []ifmap.Pair{{From: "Serial", To: "GE"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(&opts)
			_, err := NewConversionRequest(opts)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestNewConversionRequest_Mapping(t *testing.T) {
	rows := []ifmap.Pair{
		{From: "FastEthernet", To: "GigabitEthernet"},
		{From: "GE", To: "GE"},
		{From: ifmap.Unset, To: "Ethernet"},
	}

	t.Run("Enabled keeps effective rows", func(t *testing.T) {
		opts := validOptions()
		opts.Rows = rows
		opts.MappingEnabled = true
		req, err := NewConversionRequest(opts)
		require.NoError(t, err)
		assert.Equal(t, []ifmap.Pair{{From: "FastEthernet", To: "GigabitEthernet"}}, req.InterfaceMapping)
		assert.Equal(t, "FastEthernet=GigabitEthernet", req.MappingString())
	})

	t.Run("Disabled drops rows", func(t *testing.T) {
		opts := validOptions()
		opts.Rows = rows
		req, err := NewConversionRequest(opts)
		require.NoError(t, err)
		assert.Nil(t, req.InterfaceMapping)
		assert.Empty(t, req.MappingString())
	})

	t.Run("Unknown type in disabled mapping ignored", func(t *testing.T) {
		opts := validOptions()
		opts.Rows = []ifmap.Pair{{From: "Serial", To: "GE"}}
		_, err := NewConversionRequest(opts)
		assert.NoError(t, err)
	})
}

func TestNewConversionRequest_IndexPrefix(t *testing.T) {
	opts := validOptions()
	opts.IndexPolicy = "3"
	opts.IndexPrefix = "   "
	req, err := NewConversionRequest(opts)
	require.NoError(t, err)
	assert.Equal(t, IndexThreePart, req.IndexPolicy)
	assert.Equal(t, "1", req.IndexPrefix)

	opts.IndexPrefix = "7"
	req, err = NewConversionRequest(opts)
	require.NoError(t, err)
	assert.Equal(t, "7", req.Prefix())

	opts.IndexPolicy = "2"
	req, err = NewConversionRequest(opts)
	require.NoError(t, err)
	assert.Empty(t, req.IndexPrefix, "prefix only kept for three-part")
}

func TestParseIndexPolicy(t *testing.T) {
	cases := map[string]IndexPolicy{
		"":           IndexKeep,
		"keep":       IndexKeep,
		"2":          IndexTwoPart,
		"two-part":   IndexTwoPart,
		" 3 ":        IndexThreePart,
		"Three-Part": IndexThreePart,
	}
	for in, want := range cases {
		got, err := ParseIndexPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	assert.Equal(t, "", IndexKeep.FlagValue())
	assert.Equal(t, "2", IndexTwoPart.FlagValue())
	assert.Equal(t, "3", IndexThreePart.FlagValue())
	assert.Equal(t, "3-part (1/0/1)", IndexThreePart.Label())
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, DialectJSON, d)

	_, err = ParseDialect("")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestValidate_ZeroValue(t *testing.T) {
	assert.ErrorIs(t, ConversionRequest{}.Validate(), ErrInvalidRequest)
	assert.Equal(t, "1", ConversionRequest{}.Prefix())
}
