package prompt

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-answer-llm/src/llm"
)

func TestTemplatesShareFormat(t *testing.T) {
	for _, tmpl := range []string{TextTemplate, ImageTemplate, CombinedTemplate} {
		assert.Contains(t, tmpl, FormatInstruction)
		assert.Contains(t, tmpl, "'Uncertain'")
	}
}

func TestTextContainsQuestion(t *testing.T) {
	parts := Text("What is 2+2?")
	require.Len(t, parts, 1)
	assert.True(t, strings.HasSuffix(parts[0].Text, "\nWhat is 2+2?"))
	assert.Contains(t, parts[0].Text, FormatInstruction)
}

func TestImageAndCombinedLayout(t *testing.T) {
	img := llm.ImagePart([]byte{1}, "image/png")

	parts := Image(img)
	require.Len(t, parts, 2)
	assert.Equal(t, ImageTemplate, parts[0].Text)
	assert.True(t, parts[1].IsImage())

	parts = Combined("question", img)
	require.Len(t, parts, 3)
	assert.Equal(t, CombinedTemplate, parts[0].Text)
	assert.Equal(t, "question", parts[1].Text)
	assert.True(t, parts[2].IsImage())
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	good := filepath.Join(dir, "screenshot_1.png")
	require.NoError(t, os.WriteFile(good, buf.Bytes(), 0o644))

	part, err := LoadImage(good)
	require.NoError(t, err)
	assert.Equal(t, "image/png", part.MIMEType)
	assert.Equal(t, buf.Bytes(), part.Data)

	bad := filepath.Join(dir, "screenshot_2.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = LoadImage(bad)
	assert.Error(t, err)

	_, err = LoadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
