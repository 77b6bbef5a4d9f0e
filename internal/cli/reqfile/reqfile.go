// Package reqfile reads conversion requests from YAML or JSON files. Documents are
// validated against an embedded JSON Schema before they are turned into
// request.Options.
package reqfile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/kerrakir/config-converter/pkg/orchestrator/ifmap"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

//go:embed schema.json
var schemaJSON string

var schema = gojsonschema.NewStringLoader(schemaJSON)

// ErrInvalidFile indicates a request file that cannot be parsed or does not match
// the schema.
var ErrInvalidFile = errors.New("invalid request file")

// File is a decoded request file.
type File struct {
	Input          string
	Output         string
	From           string
	To             string
	IfMap          []ifmap.Pair
	MappingEnabled bool // true when the document has an ifMap key
	IfIndex        string
	IfIndexPrefix  string
}

// Load reads and validates path. Relative input and output paths are resolved
// against the directory of the request file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	f.Input = resolve(base, f.Input)
	f.Output = resolve(base, f.Output)
	return f, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Parse validates a YAML or JSON document and decodes it.
func Parse(data []byte) (File, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if doc == nil {
		return File{}, fmt.Errorf("%w: document is empty", ErrInvalidFile)
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return File{}, fmt.Errorf("%w: %s", ErrInvalidFile, strings.Join(msgs, "; "))
	}

	m, _ := doc.(map[string]any)
	f := File{
		Input:         scalar(m["input"]),
		Output:        scalar(m["output"]),
		From:          scalar(m["from"]),
		To:            scalar(m["to"]),
		IfIndex:       scalar(m["ifIndex"]),
		IfIndexPrefix: scalar(m["ifIndexPrefix"]),
	}

	if raw, ok := m["ifMap"]; ok {
		f.MappingEnabled = true
		switch v := raw.(type) {
		case string:
			pairs, err := ifmap.Parse(v)
			if err != nil {
				return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
			}
			f.IfMap = pairs
		case []any:
			for _, item := range v {
				row, _ := item.(map[string]any)
				f.IfMap = append(f.IfMap, ifmap.Pair{From: scalar(row["from"]), To: scalar(row["to"])})
			}
		}
	}
	return f, nil
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Options converts the file into request options for request.NewConversionRequest.
func (f File) Options() request.Options {
	return request.Options{
		InputPath:      f.Input,
		OutputPath:     f.Output,
		SourceDialect:  f.From,
		TargetDialect:  f.To,
		Rows:           f.IfMap,
		MappingEnabled: f.MappingEnabled,
		IndexPolicy:    f.IfIndex,
		IndexPrefix:    f.IfIndexPrefix,
	}
}
