package eventloop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"screen-answer-llm/src/artifact"
	"screen-answer-llm/src/cliplog"
	"screen-answer-llm/src/dispatch"
	"screen-answer-llm/src/logutil"
	"screen-answer-llm/src/notification"
	"screen-answer-llm/src/overlay"
	"screen-answer-llm/src/screenshot"
	"screen-answer-llm/src/singleinstance"
)

// Trigger names one user action. The same names are used by hotkeys, the tray menu and
// --trigger delegation.
type Trigger string

const (
	TriggerCapture   Trigger = "capture"
	TriggerClipboard Trigger = "clipboard"
	TriggerText      Trigger = "text"
	TriggerImage     Trigger = "image"
	TriggerCombined  Trigger = "combined"
	TriggerClear     Trigger = "clear"
)

// Triggers lists every trigger in menu order.
var Triggers = []Trigger{TriggerCapture, TriggerClipboard, TriggerText, TriggerImage, TriggerCombined, TriggerClear}

var ErrUnknownTrigger = errors.New("unknown trigger")

// User-visible messages.
const (
	msgNoText          = "No text content available!"
	msgNoImages        = "No images available for processing!"
	msgNoTextCombined  = "No text content available for combined query!"
	msgNoImageCombined = "No captured images available for combined query!"
	msgBusy            = "Busy, please retry"
	msgCleared         = "Image directory cleared"
)

func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Triggers {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTrigger, s)
}

// CaptureFunc grabs the pixels inside an absolute, normalized rect.
type CaptureFunc func(r screenshot.Rect) (image.Image, error)

// Clipboard is the part of the system clipboard the loop needs.
type Clipboard interface {
	ReadText() string
	Clear() error
}

type Options struct {
	Selector   overlay.Selector
	Capture    CaptureFunc
	Store      *artifact.Store
	Log        *cliplog.Log
	Dispatcher *dispatch.Dispatcher
	Sink       notification.Sink
	Clipboard  Clipboard
	// Server is optional; when set, its connections are served as delegated triggers.
	Server singleinstance.Server
	// ClearClipboardOnDrain empties the system clipboard after a text query takes the log.
	ClearClipboardOnDrain bool
	// OnStatus receives a short status line whenever the number of running queries changes.
	OnStatus func(status string)
	// OnSelectDone runs after every region selection, however it ended.
	OnSelectDone func()
}

// Loop is the single interaction goroutine. Every trigger and every query result is handled
// here, one at a time; the region selector only ever runs on this goroutine.
type Loop struct {
	selector   overlay.Selector
	capture    CaptureFunc
	store      *artifact.Store
	log        *cliplog.Log
	dispatcher *dispatch.Dispatcher
	sink       notification.Sink
	clipboard  Clipboard
	srv        singleinstance.Server

	clearOnDrain bool
	onStatus     func(string)
	onSelectDone func()

	triggers chan Trigger
	inflight int
}

func New(opts Options) *Loop {
	capture := opts.Capture
	if capture == nil {
		capture = func(r screenshot.Rect) (image.Image, error) { return screenshot.CaptureRect(r) }
	}
	sink := opts.Sink
	if sink == nil {
		sink = notification.LogSink{}
	}
	return &Loop{
		selector:     opts.Selector,
		capture:      capture,
		store:        opts.Store,
		log:          opts.Log,
		dispatcher:   opts.Dispatcher,
		sink:         sink,
		clipboard:    opts.Clipboard,
		srv:          opts.Server,
		clearOnDrain: opts.ClearClipboardOnDrain,
		onStatus:     opts.OnStatus,
		onSelectDone: opts.OnSelectDone,
		triggers:     make(chan Trigger, 16),
	}
}

// Fire queues a trigger for the loop. It never blocks; a trigger that does not fit in the
// queue is dropped and false is returned.
func (l *Loop) Fire(t Trigger) bool {
	select {
	case l.triggers <- t:
		return true
	default:
		slog.Warn("trigger dropped, loop is behind", "trigger", string(t))
		return false
	}
}

// Run processes triggers, delegated connections and query results until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	var conns <-chan singleinstance.Conn
	if l.srv != nil {
		ch := make(chan singleinstance.Conn, 4)
		conns = ch
		go func() {
			defer close(ch)
			for {
				conn, err := l.srv.Next(ctx)
				if err != nil {
					return
				}
				select {
				case ch <- conn:
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-l.triggers:
			l.handle(ctx, t)
		case conn, ok := <-conns:
			if !ok {
				conns = nil
				continue
			}
			l.handleConn(ctx, conn)
		case res := <-l.dispatcher.Results():
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	defer conn.Close()
	t, err := ParseTrigger(conn.Request().Trigger)
	if err != nil {
		slog.Warn("delegated trigger rejected", "err", err)
		_ = conn.RespondError(err.Error())
		return
	}
	// Acknowledge first so the delegating process is not held open by the overlay.
	if err := conn.RespondOK(); err != nil {
		slog.Warn("failed to acknowledge delegated trigger", "trigger", string(t), "err", err)
	}
	l.handle(ctx, t)
}

func (l *Loop) handle(ctx context.Context, t Trigger) {
	slog.Debug("trigger", "name", string(t))
	switch t {
	case TriggerCapture:
		l.captureRegion(ctx)
	case TriggerClipboard:
		l.logClipboard()
	case TriggerText:
		l.runText(ctx)
	case TriggerImage:
		l.runImages(ctx)
	case TriggerCombined:
		l.runCombined(ctx)
	case TriggerClear:
		l.clearImages()
	default:
		slog.Warn("unhandled trigger", "name", string(t))
	}
}

func (l *Loop) captureRegion(ctx context.Context) {
	if l.selector == nil {
		l.reportCapture(errors.New("no region selector available"))
		return
	}
	rect, cancelled, err := l.selector.Select(ctx)
	if l.onSelectDone != nil {
		l.onSelectDone()
	}
	if err != nil {
		l.reportCapture(err)
		return
	}
	if cancelled {
		slog.Info("capture cancelled")
		return
	}

	a, err := l.saveRegion(rect)
	if err != nil {
		l.reportCapture(err)
		return
	}
	slog.Info("screenshot saved", "artifact", a.Name, "rect", rect.String())
}

// saveRegion grabs rect and stores it. Errors wrap overlay.ErrCapture and leave no artifact.
func (l *Loop) saveRegion(rect screenshot.Rect) (artifact.Artifact, error) {
	rect = rect.Normalize()
	if rect.Empty() {
		return artifact.Artifact{}, fmt.Errorf("%w: %w %s", overlay.ErrCapture, screenshot.ErrEmptyRect, rect)
	}
	img, err := l.capture(rect)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("%w: %w", overlay.ErrCapture, err)
	}
	a, err := l.store.SaveCapture(img)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("%w: %w", overlay.ErrCapture, err)
	}
	return a, nil
}

func (l *Loop) reportCapture(err error) {
	slog.Error("capture failed", "err", err)
	msg := err.Error()
	if errors.Is(err, overlay.ErrCapture) {
		msg = strings.TrimPrefix(msg, overlay.ErrCapture.Error()+": ")
	}
	l.sink.Display("Capture error: " + msg)
}

func (l *Loop) logClipboard() {
	if l.clipboard == nil {
		return
	}
	text := l.clipboard.ReadText()
	if l.log.Append(text) {
		slog.Info("logged text", "text", logutil.Sanitize(text), "entries", l.log.Len())
	} else {
		slog.Debug("clipboard text not logged", "text", logutil.Sanitize(text))
	}
}

func (l *Loop) runText(ctx context.Context) {
	err := l.dispatcher.SubmitText(ctx)
	switch {
	case err == nil:
		l.started(1)
		if l.clearOnDrain && l.clipboard != nil {
			if err := l.clipboard.Clear(); err != nil {
				slog.Warn("failed to clear clipboard", "err", err)
			} else {
				slog.Info("clipboard cleared")
			}
		}
	case errors.Is(err, dispatch.ErrMissingInput):
		l.report(err, msgNoText)
	default:
		l.reportSubmit(err)
	}
}

func (l *Loop) runImages(ctx context.Context) {
	n, err := l.dispatcher.SubmitImages(ctx)
	l.started(n)
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrMissingInput):
		l.report(err, msgNoImages)
	default:
		l.reportSubmit(err)
	}
}

func (l *Loop) runCombined(ctx context.Context) {
	err := l.dispatcher.SubmitCombined(ctx)
	switch {
	case err == nil:
		l.started(1)
	case errors.Is(err, dispatch.ErrNoText):
		l.report(err, msgNoTextCombined)
	case errors.Is(err, dispatch.ErrNoImage):
		l.report(err, msgNoImageCombined)
	default:
		l.reportSubmit(err)
	}
}

func (l *Loop) clearImages() {
	if err := l.store.ClearAll(); err != nil {
		slog.Error("failed to clear image directory", "dir", l.store.Dir(), "err", err)
		l.sink.Display("Error clearing image directory: " + err.Error())
		return
	}
	slog.Info("image directory cleared", "dir", l.store.Dir())
	l.sink.Display(msgCleared)
}

func (l *Loop) reportSubmit(err error) {
	if errors.Is(err, dispatch.ErrBusy) {
		l.report(err, msgBusy)
		return
	}
	l.report(err, "Error processing query: "+err.Error())
}

func (l *Loop) report(err error, msg string) {
	slog.Warn("query not dispatched", "err", err)
	l.sink.Display(msg)
}

func (l *Loop) handleResult(res dispatch.Result) {
	l.finished()
	if res.Err != nil {
		slog.Error("query result", "unit", res.Unit, "kind", res.Kind.String(), "error_kind", res.ErrorKind().String(), "err", res.Err)
	} else {
		slog.Info("query result", "unit", res.Unit, "kind", res.Kind.String(), "source", res.Source)
	}
	l.sink.Display(res.Message())
}

func (l *Loop) started(n int) {
	if n <= 0 {
		return
	}
	l.inflight += n
	l.status()
}

func (l *Loop) finished() {
	if l.inflight > 0 {
		l.inflight--
	}
	l.status()
}

func (l *Loop) status() {
	if l.onStatus == nil {
		return
	}
	if l.inflight == 0 {
		l.onStatus("")
		return
	}
	l.onStatus(fmt.Sprintf("Screen Answer: %d running", l.inflight))
}
