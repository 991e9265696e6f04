package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-answer-llm/src/llm"
	"screen-answer-llm/src/prompt"
)

func writePNG(t *testing.T) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	path := filepath.Join(t.TempDir(), "question.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path, buf.Bytes()
}

func TestBuildQueryPicksTemplate(t *testing.T) {
	path, _ := writePNG(t)

	q, err := buildQuery(cliOptions{text: " What is 2+2? "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "text", q.kind)
	require.Len(t, q.parts, 1)
	assert.Contains(t, q.parts[0].Text, "What is 2+2?")
	assert.Contains(t, q.parts[0].Text, prompt.FormatInstruction)

	q, err = buildQuery(cliOptions{filePath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "image", q.kind)
	assert.Equal(t, path, q.source)
	require.Len(t, q.parts, 2)
	assert.Equal(t, "image/png", q.parts[1].MIMEType)

	q, err = buildQuery(cliOptions{text: "which one?", filePath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "combined", q.kind)
	require.Len(t, q.parts, 3)
	assert.Equal(t, "which one?", q.parts[1].Text)
}

func TestBuildQueryFromStdin(t *testing.T) {
	_, data := writePNG(t)
	q, err := buildQuery(cliOptions{filePath: "-"}, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "image", q.kind)
	assert.True(t, q.parts[1].IsImage())
}

func TestBuildQueryRejectsBadInput(t *testing.T) {
	_, err := buildQuery(cliOptions{text: "   "}, nil)
	assert.ErrorIs(t, err, errNoInput)

	_, err = buildQuery(cliOptions{filePath: filepath.Join(t.TempDir(), "missing.png")}, nil)
	assert.ErrorContains(t, err, "failed to read file")

	_, err = buildQuery(cliOptions{filePath: "-"}, strings.NewReader(""))
	assert.ErrorContains(t, err, "input file is empty")

	_, err = buildQuery(cliOptions{filePath: "-"}, strings.NewReader("definitely not an image"))
	assert.ErrorContains(t, err, "not a readable image")

	big := bytes.Repeat([]byte{0}, maxFileSize+1)
	_, err = buildQuery(cliOptions{filePath: "-"}, bytes.NewReader(big))
	assert.ErrorContains(t, err, "exceeds maximum size")
}

type fakeGenerator struct {
	answer string
	err    error
	parts  []llm.Part
}

func (g *fakeGenerator) Generate(_ context.Context, parts []llm.Part) (string, error) {
	g.parts = parts
	return g.answer, g.err
}

func TestAskPlainOutput(t *testing.T) {
	gen := &fakeGenerator{answer: "B. 4"}
	var out bytes.Buffer

	require.NoError(t, ask(context.Background(), gen, query{kind: "text", parts: prompt.Text("What is 2+2?")}, false, &out))
	assert.Equal(t, "B. 4", out.String())
	require.Len(t, gen.parts, 1)
}

func TestAskJSONOutput(t *testing.T) {
	gen := &fakeGenerator{answer: "A. Paris"}
	var out bytes.Buffer

	require.NoError(t, ask(context.Background(), gen, query{kind: "image", source: "q.png"}, true, &out))

	var res answerResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "A. Paris", res.Answer)
	assert.Equal(t, "image", res.Kind)
	assert.Equal(t, "q.png", res.Source)
	assert.NotEmpty(t, res.Timestamp)
}

func TestAskFailures(t *testing.T) {
	var out bytes.Buffer
	cause := errors.New("API error: rate limited")

	err := ask(context.Background(), &fakeGenerator{err: cause}, query{kind: "text"}, false, &out)
	assert.ErrorIs(t, err, cause)

	err = ask(context.Background(), &fakeGenerator{}, query{kind: "text"}, false, &out)
	assert.ErrorIs(t, err, llm.ErrEmptyAnswer)
	assert.Empty(t, out.String())
}

func TestRunWithArgsNeedsInput(t *testing.T) {
	err := runWithArgs([]string{"answer-tool", "--json"})
	assert.ErrorIs(t, err, errNoInput)
}

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"answer-tool", "-file", "a.png", "-text=hi", "-json", "-v"})
	assert.Equal(t, []string{"answer-tool", "--file", "a.png", "--text=hi", "--json", "-v"}, got)
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--text", "q", "--file", "-", "--json", "--api-key-path", "/tmp/key"}))
	assert.Equal(t, cliOptions{text: "q", filePath: "-", jsonOutput: true, apiKeyPath: "/tmp/key"}, *opts)
}
