package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"screen-answer-llm/src/artifact"
	"screen-answer-llm/src/cliplog"
	"screen-answer-llm/src/llm"
	"screen-answer-llm/src/logutil"
	"screen-answer-llm/src/prompt"
	"screen-answer-llm/src/worker"
)

var (
	ErrOpenFailure      = errors.New("open failure")
	ErrInferenceFailure = errors.New("inference failure")
	ErrMissingInput     = errors.New("missing input")
	ErrBusy             = errors.New("busy, please retry")

	ErrNoText  = fmt.Errorf("%w: no text content", ErrMissingInput)
	ErrNoImage = fmt.Errorf("%w: no captured images", ErrMissingInput)
)

// Generator is the inference collaborator: one call, one answer.
type Generator interface {
	Generate(ctx context.Context, parts []llm.Part) (string, error)
}

// Dispatcher turns clipboard text and captured images into inference units on the pool.
// Submit methods never wait for inference; completions arrive on Results in completion order.
type Dispatcher struct {
	gen     Generator
	pool    *worker.Pool
	store   *artifact.Store
	log     *cliplog.Log
	results chan Result
}

func New(gen Generator, pool *worker.Pool, store *artifact.Store, log *cliplog.Log) *Dispatcher {
	return &Dispatcher{
		gen:     gen,
		pool:    pool,
		store:   store,
		log:     log,
		results: make(chan Result, 64),
	}
}

// Results delivers one Result per dispatched unit.
func (d *Dispatcher) Results() <-chan Result { return d.results }

// SubmitText drains the clipboard log into one text-only unit.
func (d *Dispatcher) SubmitText(ctx context.Context) error {
	entries := d.log.DrainEntries()
	if len(entries) == 0 {
		return ErrNoText
	}
	text := strings.Join(entries, " ")

	unit := newUnit()
	ok := d.pool.Submit(ctx, func(ctx context.Context) {
		res := Result{Kind: TextOnly, Unit: unit}
		res.Text, res.Err = d.generate(ctx, unit, prompt.Text(text))
		d.deliver(ctx, res)
	})
	if !ok {
		d.log.Restore(entries)
		return ErrBusy
	}
	slog.Info("text query dispatched", "unit", unit, "text", logutil.Sanitize(text))
	return nil
}

// SubmitImages fans every pending artifact out as an independent image-only unit and returns
// how many were dispatched. Batch units consume their artifact even when it cannot be opened,
// and once the whole batch is done any of its files still on disk are swept.
func (d *Dispatcher) SubmitImages(ctx context.Context) (int, error) {
	batch, err := d.store.ClaimAll()
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, ErrNoImage
	}

	batchID := newUnit()
	var (
		accepted []artifact.Artifact
		// One extra count held by this function until every unit is submitted.
		remaining atomic.Int32
	)
	remaining.Store(int32(len(batch)) + 1)
	finish := func() {
		if remaining.Add(-1) == 0 {
			if err := d.store.Sweep(accepted); err != nil {
				slog.Warn("batch sweep incomplete", "batch", batchID, "err", err)
			}
			slog.Info("image batch finished", "batch", batchID, "units", len(accepted))
		}
	}

	for _, a := range batch {
		unit := newUnit()
		ok := d.pool.Submit(ctx, func(ctx context.Context) {
			defer finish()
			d.runImage(ctx, unit, a, true)
		})
		if !ok {
			d.store.Release(a)
			remaining.Add(-1)
			continue
		}
		accepted = append(accepted, a)
		slog.Info("image query dispatched", "batch", batchID, "unit", unit, "artifact", a.Name)
	}
	n := len(accepted)
	finish()

	if n < len(batch) {
		return n, fmt.Errorf("%w: %d of %d images queued", ErrBusy, n, len(batch))
	}
	return n, nil
}

// SubmitImage dispatches a single artifact. If the image cannot be opened it is left in place.
func (d *Dispatcher) SubmitImage(ctx context.Context, a artifact.Artifact) error {
	if !d.store.Claim(a) {
		return ErrNoImage
	}
	unit := newUnit()
	ok := d.pool.Submit(ctx, func(ctx context.Context) {
		d.runImage(ctx, unit, a, false)
	})
	if !ok {
		d.store.Release(a)
		return ErrBusy
	}
	slog.Info("image query dispatched", "unit", unit, "artifact", a.Name)
	return nil
}

// SubmitCombined pairs the drained clipboard text with the newest capture. Both inputs are
// checked before anything is drained or claimed, so a MissingInput failure changes nothing.
func (d *Dispatcher) SubmitCombined(ctx context.Context) error {
	if d.log.IsEmpty() {
		return ErrNoText
	}
	if !d.store.HasPending() {
		return ErrNoImage
	}

	a, ok := d.store.ClaimLatest()
	if !ok {
		return ErrNoImage
	}
	entries := d.log.DrainEntries()
	if len(entries) == 0 {
		d.store.Release(a)
		return ErrNoText
	}
	text := strings.Join(entries, " ")

	unit := newUnit()
	ok = d.pool.Submit(ctx, func(ctx context.Context) {
		res := Result{Kind: Combined, Unit: unit, Source: a.Name}
		img, err := prompt.LoadImage(a.Path)
		if err != nil {
			d.store.Release(a)
			res.Err = &UnitError{Kind: OpenFailure, Err: err}
			slog.Error("failed to open image", "unit", unit, "artifact", a.Name, "err", err)
			d.deliver(ctx, res)
			return
		}
		res.Text, res.Err = d.generate(ctx, unit, prompt.Combined(text, img))
		d.consume(a)
		d.deliver(ctx, res)
	})
	if !ok {
		d.store.Release(a)
		d.log.Restore(entries)
		return ErrBusy
	}
	slog.Info("combined query dispatched", "unit", unit, "artifact", a.Name, "text", logutil.Sanitize(text))
	return nil
}

// runImage opens and queries one artifact. In batch mode an unreadable file is consumed too.
func (d *Dispatcher) runImage(ctx context.Context, unit string, a artifact.Artifact, batch bool) {
	res := Result{Kind: ImageOnly, Unit: unit, Source: a.Name}

	img, err := prompt.LoadImage(a.Path)
	if err != nil {
		slog.Error("failed to open image", "unit", unit, "artifact", a.Name, "err", err)
		if batch {
			d.consume(a)
		} else {
			d.store.Release(a)
		}
		res.Err = &UnitError{Kind: OpenFailure, Err: err}
		d.deliver(ctx, res)
		return
	}

	res.Text, res.Err = d.generate(ctx, unit, prompt.Image(img))
	d.consume(a)
	d.deliver(ctx, res)
}

func (d *Dispatcher) generate(ctx context.Context, unit string, parts []llm.Part) (string, error) {
	start := time.Now()
	answer, err := d.gen.Generate(ctx, parts)
	if err == nil && answer == "" {
		err = llm.ErrEmptyAnswer
	}
	if err != nil {
		slog.Error("query failed", "unit", unit, "elapsed", time.Since(start), "err", err)
		return "", &UnitError{Kind: InferenceFailure, Err: err}
	}
	slog.Info("query answered", "unit", unit, "elapsed", time.Since(start), "answer", logutil.Sanitize(answer))
	return answer, nil
}

func (d *Dispatcher) consume(a artifact.Artifact) {
	if err := d.store.Consume(a); err != nil {
		slog.Warn("artifact not deleted", "artifact", a.Name, "err", err)
	}
}

// deliver hands res to the result channel without ever parking the worker.
func (d *Dispatcher) deliver(ctx context.Context, res Result) {
	select {
	case d.results <- res:
		return
	default:
	}
	go func() {
		select {
		case d.results <- res:
		case <-ctx.Done():
			slog.Warn("result dropped on shutdown", "unit", res.Unit, "kind", res.Kind.String())
		}
	}()
}

func newUnit() string {
	return uuid.NewString()
}
