package logutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactKey(t *testing.T) {
	assert.Equal(t, "********", RedactKey("short"))
	assert.Equal(t, "sk-o...wxyz", RedactKey("sk-or-v1-abcdefwxyz"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, `a\nb\tc?`, Sanitize("a\nb\tc\x01"))

	long := strings.Repeat("x", 150)
	got := Sanitize(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, got, 103)
}

func TestSanitizeCutsOnRuneBoundary(t *testing.T) {
	// After the leading "x", byte 100 is the second byte of a two-byte rune.
	text := "x" + strings.Repeat("é", 80)
	got := Sanitize(text)
	assert.True(t, utf8.ValidString(got), "got %q", got)
	assert.NotContains(t, got, string(utf8.RuneError))
	assert.Equal(t, "x"+strings.Repeat("é", 49)+"...", got)

	assert.Equal(t, strings.Repeat("日", 33)+"...", Sanitize(strings.Repeat("日", 60)))
}

func TestRotatingWriterRotatesAtLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	w, err := newRotatingWriter(path, 16)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = w.Write([]byte("abcdefghij"))
	require.NoError(t, err)

	archived, err := os.ReadFile(archiveName(path, 1))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(archived))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", string(current))
}
