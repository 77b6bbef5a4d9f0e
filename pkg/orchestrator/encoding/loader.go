// Package encoding loads text files for preview when their character encoding is not
// known in advance. Candidates are tried in order and the first clean decode wins;
// ISO-8859-1 is always the last candidate and cannot fail.
package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
	"golang.org/x/net/html/charset"
	textenc "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const (
	nameUTF8     = "utf-8"
	nameFallback = "iso-8859-1"
)

// DefaultCandidates is the decode order used when none is configured.
var DefaultCandidates = []string{nameUTF8, "windows-1251"}

// ErrUnknownEncoding indicates a candidate name that golang.org/x/net/html/charset
// cannot resolve to an encoding.
var ErrUnknownEncoding = errors.New("unknown character encoding")

// Status classifies the outcome of Load.
type Status int

const (
	// Decoded means Text holds the file content.
	Decoded Status = iota
	// Absent means the path does not exist.
	Absent
	// Unreadable means the path exists but could not be read (permissions, directory, I/O).
	Unreadable
)

func (s Status) String() string {
	switch s {
	case Decoded:
		return "decoded"
	case Absent:
		return "absent"
	case Unreadable:
		return "unreadable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is what Load returns. Errors are reported here and never returned.
type Result struct {
	Path     string
	Status   Status
	Text     string
	Encoding string // name of the candidate that decoded Text
	Language string // best guess from go-enry, empty when unknown
	Err      error  // set for Absent and Unreadable
}

type candidate struct {
	name string
	enc  textenc.Encoding // nil for utf-8, which is checked with utf8.Valid
}

// Loader decodes files by trying candidate encodings in order. It is safe for
// concurrent use; it holds no mutable state.
type Loader struct {
	candidates []candidate
	logger     *slog.Logger
}

// NewLoader builds a loader from IANA encoding names. Names are resolved with
// charset.Lookup; duplicates are skipped and ISO-8859-1 is appended last. An empty
// list selects DefaultCandidates. A nil handler discards logs.
func NewLoader(names []string, handler slog.Handler) (*Loader, error) {
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(handler).With(slog.String("component", "encoding"))

	if len(names) == 0 {
		names = DefaultCandidates
	}

	seen := make(map[string]bool, len(names)+1)
	cands := make([]candidate, 0, len(names)+1)
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		// charset follows the WHATWG table, which maps latin1 to windows-1252.
		// Real ISO-8859-1 is always appended as the last candidate instead.
		if name == "" || name == nameFallback || name == "latin1" || name == "iso_8859-1" {
			continue
		}
		enc, canonical := charset.Lookup(name)
		if enc == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, raw)
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		if canonical == nameUTF8 {
			enc = nil
		}
		cands = append(cands, candidate{name: canonical, enc: enc})
	}
	cands = append(cands, candidate{name: nameFallback, enc: charmap.ISO8859_1})

	l := &Loader{candidates: cands, logger: logger}
	logger.Debug("Encoding loader configured", slog.Any("candidates", l.Candidates()))
	return l, nil
}

// Candidates returns the resolved decode order.
func (l *Loader) Candidates() []string {
	out := make([]string, 0, len(l.candidates))
	for _, c := range l.candidates {
		out = append(out, c.name)
	}
	return out
}

// Load reads path and decodes it. It never modifies the filesystem.
func (l *Loader) Load(path string) Result {
	res := Result{Path: path}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.Status = Absent
		} else {
			res.Status = Unreadable
		}
		res.Err = err
		l.logger.Debug("Preview read failed", slog.String("path", path), slog.String("status", res.Status.String()), slog.String("error", err.Error()))
		return res
	}

	res.Status = Decoded
	res.Text, res.Encoding = l.Decode(content)
	res.Language = enry.GetLanguage(filepath.Base(path), content)
	l.logger.Debug("Preview decoded", slog.String("path", path), slog.String("encoding", res.Encoding), slog.Int("bytes", len(content)))
	return res
}

// Decode returns content as text together with the name of the encoding that
// produced it.
func (l *Loader) Decode(content []byte) (string, string) {
	last := len(l.candidates) - 1
	for i, c := range l.candidates {
		text, ok := decodeWith(c, content, i == last)
		if ok {
			return text, c.name
		}
		l.logger.Debug("Decode candidate rejected", slog.String("encoding", c.name))
	}
	// Unreachable: the last candidate accepts any input.
	return string(content), nameFallback
}

func decodeWith(c candidate, content []byte, terminal bool) (string, bool) {
	if c.enc == nil {
		if !utf8.Valid(content) {
			return "", false
		}
		// A byte order mark is kept as U+FEFF.
		return string(content), true
	}

	out, _, err := transform.Bytes(c.enc.NewDecoder(), content)
	if err != nil {
		return "", false
	}
	if !terminal && bytes.IndexFunc(out, isUndefined) >= 0 {
		return "", false
	}
	return string(out), true
}

// isUndefined matches what a code page yields for a byte it leaves unassigned:
// the replacement rune, or a C1 control passed through (windows-1251 0x98).
func isUndefined(r rune) bool {
	return r == utf8.RuneError || (r >= 0x80 && r <= 0x9f)
}
