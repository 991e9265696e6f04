package tray

import (
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/getlantern/systray"
)

// Item is one menu entry that fires a named trigger.
type Item struct {
	Trigger string
	Title   string
	Tooltip string
}

type Options struct {
	Title    string
	Tooltip  string
	Items    []Item
	OnSelect func(trigger string)
	OnReady  func()
	OnQuit   func()
}

var (
	mu         sync.Mutex
	ready      bool
	aboutExtra []string
	baseTip    string
)

// runLoop is replaced in tests.
var runLoop = systray.Run

// Run shows the tray icon and blocks until Quit. systray's message loop must stay on one
// OS thread, so Run locks the calling goroutine to its thread for as long as it runs.
func Run(opts Options) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	runLoop(func() { onReady(opts) }, func() {
		if opts.OnQuit != nil {
			opts.OnQuit()
		}
	})
}

func Quit() {
	systray.Quit()
}

// UpdateTooltip is a no-op until the tray is ready.
func UpdateTooltip(text string) {
	mu.Lock()
	defer mu.Unlock()
	if !ready {
		return
	}
	if text == "" {
		text = baseTip
	}
	systray.SetTooltip(text)
}

// SetAboutExtra adds a line to the About box.
func SetAboutExtra(line string) {
	mu.Lock()
	defer mu.Unlock()
	aboutExtra = append(aboutExtra, line)
}

func aboutText(title string) string {
	mu.Lock()
	defer mu.Unlock()
	lines := append([]string{title}, aboutExtra...)
	return strings.Join(lines, "\n")
}

func onReady(opts Options) {
	title := opts.Title
	if title == "" {
		title = "Screen Answer LLM"
	}
	tip := opts.Tooltip
	if tip == "" {
		tip = title
	}

	systray.SetIcon(iconBytes())
	systray.SetTitle(title)
	systray.SetTooltip(tip)

	for _, item := range opts.Items {
		mi := systray.AddMenuItem(item.Title, item.Tooltip)
		go func(trigger string, ch <-chan struct{}) {
			for range ch {
				slog.Debug("tray item clicked", "trigger", trigger)
				if opts.OnSelect != nil {
					opts.OnSelect(trigger)
				}
			}
		}(item.Trigger, mi.ClickedCh)
	}

	systray.AddSeparator()
	mAbout := systray.AddMenuItem("About", "About this tool")
	mQuit := systray.AddMenuItem("Quit", "Quit the application")
	go func() {
		for {
			select {
			case <-mAbout.ClickedCh:
				showMessageBox("About", aboutText(title))
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()

	mu.Lock()
	ready = true
	baseTip = tip
	mu.Unlock()

	if opts.OnReady != nil {
		opts.OnReady()
	}
}
