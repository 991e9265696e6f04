package dispatch

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-answer-llm/src/artifact"
	"screen-answer-llm/src/cliplog"
	"screen-answer-llm/src/llm"
	"screen-answer-llm/src/prompt"
	"screen-answer-llm/src/worker"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls [][]llm.Part
	fn    func(call int, parts []llm.Part) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, parts []llm.Part) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, parts)
	call := len(g.calls)
	g.mu.Unlock()
	return g.fn(call, parts)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func answer(text string) func(int, []llm.Part) (string, error) {
	return func(int, []llm.Part) (string, error) { return text, nil }
}

type fixture struct {
	d     *Dispatcher
	gen   *fakeGenerator
	store *artifact.Store
	log   *cliplog.Log
}

func newFixture(t *testing.T, fn func(int, []llm.Part) (string, error)) *fixture {
	t.Helper()
	store, err := artifact.New(t.TempDir())
	require.NoError(t, err)
	pool := worker.New(worker.MaxSize, 0)
	t.Cleanup(pool.Close)

	gen := &fakeGenerator{fn: fn}
	log := cliplog.New()
	return &fixture{d: New(gen, pool, store, log), gen: gen, store: store, log: log}
}

func (f *fixture) capture(t *testing.T) artifact.Artifact {
	t.Helper()
	a, err := f.store.SaveCapture(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	return a
}

func (f *fixture) collect(t *testing.T, n int) []Result {
	t.Helper()
	var out []Result
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case r := <-f.d.Results():
			out = append(out, r)
		case <-timeout:
			t.Fatalf("got %d of %d results", len(out), n)
		}
	}
	return out
}

func TestTextQueryEndToEnd(t *testing.T) {
	f := newFixture(t, answer("B. 4"))
	f.log.Append("What is 2+2?")

	require.NoError(t, f.d.SubmitText(context.Background()))
	assert.True(t, f.log.IsEmpty())

	res := f.collect(t, 1)[0]
	require.NoError(t, res.Err)
	assert.Equal(t, TextOnly, res.Kind)
	assert.Equal(t, "B. 4", res.Message())
	assert.NotEmpty(t, res.Unit)

	require.Equal(t, 1, f.gen.callCount())
	parts := f.gen.calls[0]
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0].Text, "What is 2+2?")
	assert.Contains(t, parts[0].Text, prompt.FormatInstruction)
}

func TestTextQueryWithEmptyLog(t *testing.T) {
	f := newFixture(t, answer("unused"))

	err := f.d.SubmitText(context.Background())
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.ErrorIs(t, err, ErrNoText)
	assert.Equal(t, 0, f.gen.callCount())
}

func TestCombinedWithEmptyLogKeepsArtifact(t *testing.T) {
	f := newFixture(t, answer("unused"))
	a := f.capture(t)

	err := f.d.SubmitCombined(context.Background())
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.ErrorIs(t, err, ErrNoText)

	assert.FileExists(t, a.Path)
	assert.True(t, f.store.HasPending(), "artifact must not stay claimed")
	assert.Equal(t, 0, f.gen.callCount())
}

func TestCombinedWithoutImageKeepsText(t *testing.T) {
	f := newFixture(t, answer("unused"))
	f.log.Append("question")

	err := f.d.SubmitCombined(context.Background())
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, []string{"question"}, f.log.Snapshot())
	assert.Equal(t, 0, f.gen.callCount())
}

func TestCombinedUsesLatestCapture(t *testing.T) {
	f := newFixture(t, answer("C. 9"))
	older := f.capture(t)
	latest := f.capture(t)
	f.log.Append("first part")
	f.log.Append("second part")

	require.NoError(t, f.d.SubmitCombined(context.Background()))
	res := f.collect(t, 1)[0]

	require.NoError(t, res.Err)
	assert.Equal(t, Combined, res.Kind)
	assert.Equal(t, latest.Name, res.Source)
	assert.NoFileExists(t, latest.Path)
	assert.FileExists(t, older.Path)
	assert.True(t, f.log.IsEmpty())

	parts := f.gen.calls[0]
	require.Len(t, parts, 3)
	assert.Equal(t, prompt.CombinedTemplate, parts[0].Text)
	assert.Equal(t, "first part second part", parts[1].Text)
	assert.True(t, parts[2].IsImage())
}

func TestCombinedDeletesArtifactOnInferenceFailure(t *testing.T) {
	f := newFixture(t, func(int, []llm.Part) (string, error) { return "", errors.New("quota exceeded") })
	a := f.capture(t)
	f.log.Append("q")

	require.NoError(t, f.d.SubmitCombined(context.Background()))
	res := f.collect(t, 1)[0]

	assert.ErrorIs(t, res.Err, ErrInferenceFailure)
	assert.Equal(t, InferenceFailure, res.ErrorKind())
	assert.Equal(t, "Error processing query: quota exceeded", res.Message())
	assert.NoFileExists(t, a.Path)
}

func TestImageBatchWithOneFailure(t *testing.T) {
	f := newFixture(t, func(call int, _ []llm.Part) (string, error) {
		if call == 1 {
			return "", errors.New("model overloaded")
		}
		return "A. yes", nil
	})
	var paths []string
	for i := 0; i < 3; i++ {
		paths = append(paths, f.capture(t).Path)
	}

	n, err := f.d.SubmitImages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var ok, failed int
	for _, r := range f.collect(t, 3) {
		assert.Equal(t, ImageOnly, r.Kind)
		if r.Err != nil {
			assert.Equal(t, InferenceFailure, r.ErrorKind())
			failed++
			continue
		}
		assert.Equal(t, "A. yes", r.Text)
		ok++
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)

	for _, p := range paths {
		assert.NoFileExists(t, p)
	}
	pending, err := f.store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestImageBatchConsumesUnreadableFile(t *testing.T) {
	f := newFixture(t, answer("D. no"))
	bad := filepath.Join(f.store.Dir(), "screenshot_1.png")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))

	n, err := f.d.SubmitImages(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	res := f.collect(t, 1)[0]
	assert.ErrorIs(t, res.Err, ErrOpenFailure)
	assert.Equal(t, OpenFailure, res.ErrorKind())
	assert.Contains(t, res.Message(), "Error opening image screenshot_1.png: ")
	assert.NoFileExists(t, bad)
	assert.Equal(t, 0, f.gen.callCount())
}

func TestImageBatchWithNothingPending(t *testing.T) {
	f := newFixture(t, answer("unused"))
	n, err := f.d.SubmitImages(context.Background())
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestSingleImageOpenFailureLeavesFile(t *testing.T) {
	f := newFixture(t, answer("unused"))
	bad := filepath.Join(f.store.Dir(), "screenshot_4.png")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))
	pending, err := f.store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.d.SubmitImage(context.Background(), pending[0]))
	res := f.collect(t, 1)[0]

	assert.Equal(t, OpenFailure, res.ErrorKind())
	assert.FileExists(t, bad)
	assert.True(t, f.store.HasPending())
}

func TestSubmitWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	f := newFixture(t, func(int, []llm.Part) (string, error) {
		started.Add(1)
		<-release
		return "ok", nil
	})
	// Replace the pool with the smallest one: two workers and one queue slot.
	pool := worker.New(worker.MinSize, 1)
	f.d.pool = pool
	defer pool.Close()
	defer close(release)

	// One at a time: the single queue slot is only free again once a worker took the task.
	for i, text := range []string{"a", "b"} {
		f.log.Append(text)
		require.NoError(t, f.d.SubmitText(context.Background()), "submit %d", i)
		want := int32(i + 1)
		require.Eventually(t, func() bool { return started.Load() == want }, 2*time.Second, 5*time.Millisecond)
	}

	f.log.Append("c")
	require.NoError(t, f.d.SubmitText(context.Background()))

	f.log.Append("What is")
	f.log.Append("2+2?")
	err := f.d.SubmitText(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, []string{"What is", "2+2?"}, f.log.Snapshot(), "rejected entries go back to the log")
	assert.False(t, f.log.Append("2+2?"), "restored entries still deduplicate")
}

func TestCombinedWhenSaturatedRestoresInputs(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	f := newFixture(t, func(int, []llm.Part) (string, error) {
		started.Add(1)
		<-release
		return "ok", nil
	})
	pool := worker.New(worker.MinSize, 1)
	f.d.pool = pool
	defer pool.Close()
	defer close(release)

	for i, text := range []string{"a", "b"} {
		f.log.Append(text)
		require.NoError(t, f.d.SubmitText(context.Background()), "submit %d", i)
		want := int32(i + 1)
		require.Eventually(t, func() bool { return started.Load() == want }, 2*time.Second, 5*time.Millisecond)
	}
	f.log.Append("c")
	require.NoError(t, f.d.SubmitText(context.Background()))

	a := f.capture(t)
	f.log.Append("first")
	f.log.Append("second")
	err := f.d.SubmitCombined(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, []string{"first", "second"}, f.log.Snapshot())
	assert.FileExists(t, a.Path)
	assert.True(t, f.store.HasPending(), "artifact must not stay claimed")
}
