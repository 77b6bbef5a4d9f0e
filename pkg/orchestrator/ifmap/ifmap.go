// Package ifmap builds the interface-type mapping string passed to the converter
// through its -if-map flag.
package ifmap

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Unset is the placeholder a mapping row shows before the operator picks a type.
const Unset = "-"

const (
	pairSeparator = ","
	sideSeparator = "="
)

// InterfaceTypes is the fixed set of interface type names a mapping row can select.
// The order is the order the UI offers them in.
var InterfaceTypes = []string{
	"FastEthernet",
	"GigabitEthernet",
	"TenGigabitEthernet",
	"10GE",
	"GE",
	"Ethernet",
}

// ErrInvalidMapping is returned by Parse for entries that are not of the form From=To.
var ErrInvalidMapping = errors.New("invalid interface mapping")

// Pair is one mapping row: interfaces of type From are renamed to type To.
type Pair struct {
	From string `json:"from" yaml:"from" mapstructure:"from"`
	To   string `json:"to" yaml:"to" mapstructure:"to"`
}

// IsUnset reports whether either side of the row still holds the placeholder.
func (p Pair) IsUnset() bool {
	return isUnset(p.From) || isUnset(p.To)
}

// IsNoop reports whether the row would not rename anything and must be left off the wire.
func (p Pair) IsNoop() bool {
	return p.IsUnset() || p.From == p.To
}

// String renders the pair in wire form.
func (p Pair) String() string {
	return p.From + sideSeparator + p.To
}

func isUnset(side string) bool {
	s := strings.TrimSpace(side)
	return s == "" || s == Unset
}

// Filter returns the rows that contribute to the mapping, in their original order.
// The input slice is not modified.
func Filter(rows []Pair) []Pair {
	out := make([]Pair, 0, len(rows))
	for _, row := range rows {
		if row.IsNoop() {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Build serializes mapping rows into the -if-map value. A disabled mapping always
// yields the empty string whatever the rows contain.
func Build(rows []Pair, enabled bool) string {
	if !enabled {
		return ""
	}
	kept := Filter(rows)
	parts := make([]string, 0, len(kept))
	for _, row := range kept {
		parts = append(parts, row.String())
	}
	return strings.Join(parts, pairSeparator)
}

// Parse splits a wire-form mapping back into rows. Blank entries are skipped; an
// entry without "=" or with an empty side is rejected.
func Parse(raw string) ([]Pair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var rows []Pair
	for _, part := range strings.Split(raw, pairSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, sideSeparator)
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("%w: %q (expected From=To)", ErrInvalidMapping, part)
		}
		rows = append(rows, Pair{From: from, To: to})
	}
	return rows, nil
}

// IsKnownType reports whether name is one of InterfaceTypes. Matching is exact.
func IsKnownType(name string) bool {
	return slices.Contains(InterfaceTypes, name)
}

// Options returns the values a mapping row selector cycles through: the placeholder
// followed by every interface type.
func Options() []string {
	return append([]string{Unset}, InterfaceTypes...)
}
