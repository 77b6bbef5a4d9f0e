package encoding_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/kerrakir/config-converter/pkg/orchestrator/encoding"
)

func encodeBytes(t *testing.T, text string, enc transform.Transformer) []byte {
	t.Helper()
	out, _, err := transform.Bytes(enc, []byte(text))
	require.NoError(t, err)
	return out
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, content, 0o644))
	return p
}

func newLoader(t *testing.T, names ...string) *encoding.Loader {
	t.Helper()
	l, err := encoding.NewLoader(names, nil)
	require.NoError(t, err)
	return l
}

func TestLoad_UTF8(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "router.cfg", []byte("interface GigabitEthernet0/1\n description Привет\n"))

	res := newLoader(t).Load(p)

	require.Equal(t, encoding.Decoded, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, "utf-8", res.Encoding)
	assert.Equal(t, "interface GigabitEthernet0/1\n description Привет\n", res.Text)
}

func TestLoad_UTF8BOMKept(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bom.cfg", []byte("\xef\xbb\xbfhostname R1\n"))
	res := newLoader(t).Load(p)
	require.Equal(t, encoding.Decoded, res.Status)
	assert.Equal(t, "utf-8", res.Encoding)
	assert.Equal(t, "\ufeffhostname R1\n", res.Text)
}

func TestLoad_Windows1251(t *testing.T) {
	text := "description Привет мир"
	raw := encodeBytes(t, text, charmap.Windows1251.NewEncoder())
	p := writeFile(t, t.TempDir(), "legacy.cfg", raw)

	res := newLoader(t).Load(p)

	require.Equal(t, encoding.Decoded, res.Status)
	assert.Equal(t, "windows-1251", res.Encoding)
	assert.Equal(t, text, res.Text)
}

func TestLoad_Latin1Fallback(t *testing.T) {
	// 0xC3 0x28 is invalid UTF-8 and 0x98 is unassigned in windows-1251.
	raw := []byte{'a', 0xC3, 0x28, 0x98, 'z'}
	p := writeFile(t, t.TempDir(), "odd.bin", raw)

	res := newLoader(t).Load(p)

	require.Equal(t, encoding.Decoded, res.Status)
	assert.Equal(t, "iso-8859-1", res.Encoding)
	assert.Equal(t, "aÃ(\u0098z", res.Text)
}

func TestLoad_Absent(t *testing.T) {
	res := newLoader(t).Load(filepath.Join(t.TempDir(), "missing.cfg"))
	assert.Equal(t, encoding.Absent, res.Status)
	assert.Error(t, res.Err)
	assert.Empty(t, res.Text)
}

func TestLoad_Directory(t *testing.T) {
	res := newLoader(t).Load(t.TempDir())
	assert.Equal(t, encoding.Unreadable, res.Status)
	assert.Error(t, res.Err)
}

func TestLoad_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	p := writeFile(t, t.TempDir(), "secret.cfg", []byte("x"))
	require.NoError(t, os.Chmod(p, 0o000))

	res := newLoader(t).Load(p)
	assert.Equal(t, encoding.Unreadable, res.Status)
}

func TestLoad_DoesNotModifyFile(t *testing.T) {
	raw := encodeBytes(t, "ёлка", charmap.Windows1251.NewEncoder())
	p := writeFile(t, t.TempDir(), "keep.cfg", raw)
	before, err := os.Stat(p)
	require.NoError(t, err)

	newLoader(t).Load(p)

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, raw, after)
	st, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), st.ModTime())
}

func TestNewLoader_Candidates(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		assert.Equal(t, []string{"utf-8", "windows-1251", "iso-8859-1"}, newLoader(t).Candidates())
	})

	t.Run("Latin1 always last and deduplicated", func(t *testing.T) {
		l := newLoader(t, "latin1", "UTF-8", "utf8", "koi8-r")
		assert.Equal(t, []string{"utf-8", "koi8-r", "iso-8859-1"}, l.Candidates())
	})

	t.Run("Unknown name", func(t *testing.T) {
		_, err := encoding.NewLoader([]string{"klingon"}, nil)
		assert.ErrorIs(t, err, encoding.ErrUnknownEncoding)
	})
}

func TestDecode_EmptyInput(t *testing.T) {
	text, enc := newLoader(t).Decode(nil)
	assert.Empty(t, text)
	assert.Equal(t, "utf-8", enc)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "decoded", encoding.Decoded.String())
	assert.Equal(t, "absent", encoding.Absent.String())
	assert.Equal(t, "unreadable", encoding.Unreadable.String())
}
