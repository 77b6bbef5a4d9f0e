// Package request defines ConversionRequest, the immutable description of one
// conversion job, together with the dialect and index policy enumerations.
package request

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kerrakir/config-converter/pkg/orchestrator/ifmap"
)

// ErrInvalidRequest indicates that a ConversionRequest could not be built or failed
// validation: a required path is empty, a dialect or index policy is unknown, or the
// interface mapping names an interface type outside ifmap.InterfaceTypes.
var ErrInvalidRequest = errors.New("invalid conversion request")

// Dialect names a configuration format the converter reads or writes.
type Dialect string

const (
	DialectCisco  Dialect = "cisco"
	DialectHuawei Dialect = "huawei"
	DialectJSON   Dialect = "json"
)

// Dialects lists every supported dialect in UI order.
var Dialects = []Dialect{DialectCisco, DialectHuawei, DialectJSON}

// IsValid reports whether d is one of Dialects.
func (d Dialect) IsValid() bool {
	return slices.Contains(Dialects, d)
}

// ParseDialect normalizes s (case and surrounding space) into a Dialect.
func ParseDialect(s string) (Dialect, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("%w: unknown dialect %q (want one of %v)", ErrInvalidRequest, s, Dialects)
	}
	return d, nil
}

// IndexPolicy controls how the converter renumbers interface indices.
type IndexPolicy string

const (
	IndexKeep      IndexPolicy = "keep"
	IndexTwoPart   IndexPolicy = "two-part"
	IndexThreePart IndexPolicy = "three-part"
)

// IndexPolicies lists every policy in UI order.
var IndexPolicies = []IndexPolicy{IndexKeep, IndexTwoPart, IndexThreePart}

// DefaultIndexPrefix is the leading index segment used by IndexThreePart when no
// prefix is supplied.
const DefaultIndexPrefix = "1"

// IsValid reports whether p is one of IndexPolicies.
func (p IndexPolicy) IsValid() bool {
	return slices.Contains(IndexPolicies, p)
}

// FlagValue is the -if-index argument for p. IndexKeep has none.
func (p IndexPolicy) FlagValue() string {
	switch p {
	case IndexTwoPart:
		return "2"
	case IndexThreePart:
		return "3"
	default:
		return ""
	}
}

// Label is the human readable form shown by the UI.
func (p IndexPolicy) Label() string {
	switch p {
	case IndexTwoPart:
		return "2-part (0/1)"
	case IndexThreePart:
		return "3-part (1/0/1)"
	default:
		return "Keep original"
	}
}

// ParseIndexPolicy accepts the policy names as well as the converter's own
// spellings ("2", "3"). An empty string means IndexKeep.
func ParseIndexPolicy(s string) (IndexPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return IndexKeep, nil
	case "2", "two-part":
		return IndexTwoPart, nil
	case "3", "three-part":
		return IndexThreePart, nil
	}
	return "", fmt.Errorf("%w: unknown index policy %q (want keep, 2 or 3)", ErrInvalidRequest, s)
}

// ConversionRequest describes one job. Build it with NewConversionRequest; the
// value is never modified afterwards.
type ConversionRequest struct {
	InputPath        string       `json:"input" yaml:"input" toml:"input"`
	OutputPath       string       `json:"output" yaml:"output" toml:"output"`
	SourceDialect    Dialect      `json:"from" yaml:"from" toml:"from"`
	TargetDialect    Dialect      `json:"to" yaml:"to" toml:"to"`
	InterfaceMapping []ifmap.Pair `json:"ifMap,omitempty" yaml:"ifMap,omitempty" toml:"ifMap,omitempty"`
	IndexPolicy      IndexPolicy  `json:"ifIndex" yaml:"ifIndex" toml:"ifIndex"`
	IndexPrefix      string       `json:"ifIndexPrefix,omitempty" yaml:"ifIndexPrefix,omitempty" toml:"ifIndexPrefix,omitempty"`
}

// Options is the raw form input NewConversionRequest validates.
type Options struct {
	InputPath      string
	OutputPath     string
	SourceDialect  string
	TargetDialect  string
	Rows           []ifmap.Pair
	MappingEnabled bool
	IndexPolicy    string
	IndexPrefix    string
}

// NewConversionRequest trims and validates opts. Mapping rows are filtered through
// ifmap.Filter (and dropped entirely when the mapping is disabled); a blank prefix
// defaults to DefaultIndexPrefix for IndexThreePart and is cleared otherwise.
func NewConversionRequest(opts Options) (ConversionRequest, error) {
	src, err := ParseDialect(defaultString(opts.SourceDialect, string(DialectCisco)))
	if err != nil {
		return ConversionRequest{}, err
	}
	dst, err := ParseDialect(defaultString(opts.TargetDialect, string(DialectHuawei)))
	if err != nil {
		return ConversionRequest{}, err
	}
	policy, err := ParseIndexPolicy(opts.IndexPolicy)
	if err != nil {
		return ConversionRequest{}, err
	}

	req := ConversionRequest{
		InputPath:     strings.TrimSpace(opts.InputPath),
		OutputPath:    strings.TrimSpace(opts.OutputPath),
		SourceDialect: src,
		TargetDialect: dst,
		IndexPolicy:   policy,
	}
	if opts.MappingEnabled {
		if kept := ifmap.Filter(opts.Rows); len(kept) > 0 {
			req.InterfaceMapping = kept
		}
	}
	if policy == IndexThreePart {
		req.IndexPrefix = defaultString(strings.TrimSpace(opts.IndexPrefix), DefaultIndexPrefix)
	}

	if err := req.Validate(); err != nil {
		return ConversionRequest{}, err
	}
	return req, nil
}

// Validate checks the invariants of a request. It is exported so callers holding a
// request decoded from elsewhere can check it before starting a job.
func (r ConversionRequest) Validate() error {
	if r.InputPath == "" || r.OutputPath == "" {
		return fmt.Errorf("%w: input and output files are required", ErrInvalidRequest)
	}
	if !r.SourceDialect.IsValid() {
		return fmt.Errorf("%w: unknown source dialect %q", ErrInvalidRequest, r.SourceDialect)
	}
	if !r.TargetDialect.IsValid() {
		return fmt.Errorf("%w: unknown target dialect %q", ErrInvalidRequest, r.TargetDialect)
	}
	if !r.IndexPolicy.IsValid() {
		return fmt.Errorf("%w: unknown index policy %q", ErrInvalidRequest, r.IndexPolicy)
	}
	for _, p := range r.InterfaceMapping {
		if !ifmap.IsKnownType(p.From) || !ifmap.IsKnownType(p.To) {
			return fmt.Errorf("%w: interface mapping %q uses an unknown interface type (want one of %v)",
				ErrInvalidRequest, p.String(), ifmap.InterfaceTypes)
		}
	}
	return nil
}

// MappingString is the -if-map value for the request.
func (r ConversionRequest) MappingString() string {
	return ifmap.Build(r.InterfaceMapping, true)
}

// Prefix is the -if-index-prefix value. It is only meaningful for IndexThreePart
// and never blank there.
func (r ConversionRequest) Prefix() string {
	return defaultString(strings.TrimSpace(r.IndexPrefix), DefaultIndexPrefix)
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
