package ifmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		rows    []Pair
		enabled bool
		want    string
	}{
		{
			name:    "Self mapping row dropped",
			rows:    []Pair{{"FastEthernet", "GigabitEthernet"}, {"GE", "GE"}},
			enabled: true,
			want:    "FastEthernet=GigabitEthernet",
		},
		{
			name:    "Order preserved",
			rows:    []Pair{{"GE", "GigabitEthernet"}, {"FastEthernet", "Ethernet"}, {"10GE", "TenGigabitEthernet"}},
			enabled: true,
			want:    "GE=GigabitEthernet,FastEthernet=Ethernet,10GE=TenGigabitEthernet",
		},
		{
			name:    "Unset sides dropped",
			rows:    []Pair{{Unset, "GE"}, {"GE", Unset}, {"", "GE"}, {"Ethernet", "GE"}},
			enabled: true,
			want:    "Ethernet=GE",
		},
		{
			name:    "Disabled ignores rows",
			rows:    []Pair{{"FastEthernet", "GigabitEthernet"}},
			enabled: false,
			want:    "",
		},
		{
			name:    "All rows empty",
			rows:    []Pair{{Unset, Unset}},
			enabled: true,
			want:    "",
		},
		{
			name:    "No rows",
			enabled: true,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(tt.rows, tt.enabled))
		})
	}
}

func TestBuild_DisabledAlwaysEmpty(t *testing.T) {
	types := Options()
	for _, from := range types {
		for _, to := range types {
			rows := []Pair{{From: from, To: to}, {From: "GE", To: "Ethernet"}}
			assert.Empty(t, Build(rows, false), "rows %v", rows)
		}
	}
}

func TestBuild_EnabledKeepsExactlyEffectiveRows(t *testing.T) {
	var rows []Pair
	var want []string
	for _, from := range Options() {
		for _, to := range Options() {
			rows = append(rows, Pair{From: from, To: to})
			if from != Unset && to != Unset && from != to {
				want = append(want, from+"="+to)
			}
		}
	}

	got := Build(rows, true)
	parsed, err := Parse(got)
	require.NoError(t, err)
	require.Len(t, parsed, len(want))
	for i, p := range parsed {
		assert.Equal(t, want[i], p.String())
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	rows := []Pair{{"GE", "GE"}, {"GE", "Ethernet"}}
	kept := Filter(rows)
	assert.Equal(t, []Pair{{"GE", "Ethernet"}}, kept)
	assert.Equal(t, Pair{"GE", "GE"}, rows[0])
}

func TestParse(t *testing.T) {
	rows, err := Parse(" FastEthernet = GigabitEthernet ,, GE=10GE ")
	require.NoError(t, err)
	assert.Equal(t, []Pair{{"FastEthernet", "GigabitEthernet"}, {"GE", "10GE"}}, rows)

	rows, err = Parse("")
	require.NoError(t, err)
	assert.Nil(t, rows)

	for _, bad := range []string{"GE", "GE=", "=GE", "GE=Ethernet,oops"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidMapping, "input %q", bad)
	}
}

func TestIsKnownType(t *testing.T) {
	assert.True(t, IsKnownType("10GE"))
	assert.False(t, IsKnownType("gigabitethernet"))
	assert.False(t, IsKnownType(Unset))
	assert.Equal(t, Unset, Options()[0])
	assert.Len(t, Options(), len(InterfaceTypes)+1)
}
