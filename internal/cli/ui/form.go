package ui

import (
	"slices"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/kerrakir/config-converter/pkg/orchestrator/ifmap"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

// selector cycles through a fixed list of values.
type selector struct {
	label   string
	options []string
	index   int
}

func newSelector(label string, options []string, value string) selector {
	s := selector{label: label, options: options}
	s.set(value)
	return s
}

func (s *selector) set(value string) {
	if i := slices.Index(s.options, value); i >= 0 {
		s.index = i
	}
}

func (s *selector) next() { s.index = (s.index + 1) % len(s.options) }

func (s *selector) prev() { s.index = (s.index - 1 + len(s.options)) % len(s.options) }

func (s selector) value() string { return s.options[s.index] }

// mappingRow is one editable interface mapping.
type mappingRow struct {
	from selector
	to   selector
}

func newMappingRow(p ifmap.Pair) mappingRow {
	return mappingRow{
		from: newSelector("From", ifmap.Options(), p.From),
		to:   newSelector("To", ifmap.Options(), p.To),
	}
}

// field identifies a focusable form control. Mapping row selectors follow the
// fixed fields, two per row.
type field int

const (
	fieldInput field = iota
	fieldOutput
	fieldFrom
	fieldTo
	fieldIndex
	fieldPrefix
	fieldMapping
	fixedFieldCount
)

// form holds the editable conversion parameters.
type form struct {
	input          textinput.Model
	output         textinput.Model
	prefix         textinput.Model
	from           selector
	to             selector
	index          selector
	mappingEnabled bool
	rows           []mappingRow
	focus          field
}

func dialectOptions() []string {
	out := make([]string, len(request.Dialects))
	for i, d := range request.Dialects {
		out[i] = string(d)
	}
	return out
}

func indexOptions() []string {
	out := make([]string, len(request.IndexPolicies))
	for i, p := range request.IndexPolicies {
		out[i] = string(p)
	}
	return out
}

func newTextInput(prompt, placeholder, value string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = placeholder
	ti.Width = 48
	ti.SetValue(value)
	return ti
}

func newForm(opts request.Options) form {
	f := form{
		input:          newTextInput("Input:  ", "path to the source configuration", opts.InputPath),
		output:         newTextInput("Output: ", "path for the converted configuration", opts.OutputPath),
		prefix:         newTextInput("Prefix: ", request.DefaultIndexPrefix, opts.IndexPrefix),
		from:           newSelector("From", dialectOptions(), defaultValue(opts.SourceDialect, string(request.DialectCisco))),
		to:             newSelector("To", dialectOptions(), defaultValue(opts.TargetDialect, string(request.DialectHuawei))),
		index:          newSelector("Index", indexOptions(), string(request.IndexKeep)),
		mappingEnabled: opts.MappingEnabled,
	}
	if p, err := request.ParseIndexPolicy(opts.IndexPolicy); err == nil {
		f.index.set(string(p))
	}
	for _, p := range opts.Rows {
		f.rows = append(f.rows, newMappingRow(p))
	}
	if len(f.rows) == 0 {
		f.rows = append(f.rows, newMappingRow(ifmap.Pair{From: ifmap.Unset, To: ifmap.Unset}))
	}
	f.input.Focus()
	return f
}

func defaultValue(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (f *form) fieldCount() int { return int(fixedFieldCount) + 2*len(f.rows) }

// rowSelector returns the mapping selector under fld, or nil for fixed fields.
func (f *form) rowSelector(fld field) *selector {
	i := int(fld - fixedFieldCount)
	if i < 0 || i/2 >= len(f.rows) {
		return nil
	}
	if i%2 == 0 {
		return &f.rows[i/2].from
	}
	return &f.rows[i/2].to
}

// focusedRow is the index of the mapping row under focus, or -1.
func (f *form) focusedRow() int {
	if f.focus < fixedFieldCount {
		return -1
	}
	return int(f.focus-fixedFieldCount) / 2
}

func (f *form) textInput(fld field) *textinput.Model {
	switch fld {
	case fieldInput:
		return &f.input
	case fieldOutput:
		return &f.output
	case fieldPrefix:
		return &f.prefix
	}
	return nil
}

func (f *form) selectorFor(fld field) *selector {
	switch fld {
	case fieldFrom:
		return &f.from
	case fieldTo:
		return &f.to
	case fieldIndex:
		return &f.index
	}
	return f.rowSelector(fld)
}

func (f *form) setFocus(fld field) {
	n := field(f.fieldCount())
	fld = (fld%n + n) % n
	for _, ff := range []field{fieldInput, fieldOutput, fieldPrefix} {
		f.textInput(ff).Blur()
	}
	f.focus = fld
	if ti := f.textInput(fld); ti != nil {
		ti.Focus()
	}
}

func (f *form) addRow() {
	f.rows = append(f.rows, newMappingRow(ifmap.Pair{From: ifmap.Unset, To: ifmap.Unset}))
	f.setFocus(fixedFieldCount + field(2*(len(f.rows)-1)))
}

// removeRow drops the focused mapping row. The last row is reset instead.
func (f *form) removeRow() {
	i := f.focusedRow()
	if i < 0 {
		return
	}
	if len(f.rows) == 1 {
		f.rows[0] = newMappingRow(ifmap.Pair{From: ifmap.Unset, To: ifmap.Unset})
		return
	}
	f.rows = slices.Delete(f.rows, i, i+1)
	if i >= len(f.rows) {
		i = len(f.rows) - 1
	}
	f.setFocus(fixedFieldCount + field(2*i))
}

// options converts the form into request options.
func (f *form) options() request.Options {
	rows := make([]ifmap.Pair, len(f.rows))
	for i, r := range f.rows {
		rows[i] = ifmap.Pair{From: r.from.value(), To: r.to.value()}
	}
	return request.Options{
		InputPath:      f.input.Value(),
		OutputPath:     f.output.Value(),
		SourceDialect:  f.from.value(),
		TargetDialect:  f.to.value(),
		Rows:           rows,
		MappingEnabled: f.mappingEnabled,
		IndexPolicy:    f.index.value(),
		IndexPrefix:    f.prefix.Value(),
	}
}
