package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Binding names a trigger and the key combination that fires it.
type Binding struct {
	Name  string
	Combo string
}

type combo struct {
	name string
	desc string
	keys [][]uint16 // one set of alternative rawcodes per key
}

func (c combo) has(raw uint16) bool {
	for _, alts := range c.keys {
		for _, r := range alts {
			if r == raw {
				return true
			}
		}
	}
	return false
}

// Matcher turns a stream of key down/up rawcodes into fired binding names. When several
// combinations complete on the same key press, only the ones with the most keys fire, so
// Ctrl+Alt+Shift+C does not also fire Ctrl+Alt+C. Safe for concurrent use.
type Matcher struct {
	mu     sync.Mutex
	combos []combo
	down   map[uint16]bool
}

// NewMatcher parses the bindings. Empty combos are skipped; unknown keys are an error.
func NewMatcher(bindings []Binding) (*Matcher, error) {
	m := &Matcher{down: make(map[uint16]bool)}
	var errs []error
	for _, b := range bindings {
		if strings.TrimSpace(b.Combo) == "" {
			continue
		}
		c := combo{name: b.Name, desc: b.Combo}
		for _, key := range parseHotkey(b.Combo) {
			raw := keyNameToRawcodes(key)
			if len(raw) == 0 {
				errs = append(errs, fmt.Errorf("hotkey %s (%s): cannot map key %q", b.Name, b.Combo, key))
				c.keys = nil
				break
			}
			c.keys = append(c.keys, raw)
		}
		if len(c.keys) > 0 {
			m.combos = append(m.combos, c)
		}
	}
	return m, errors.Join(errs...)
}

func (m *Matcher) Len() int { return len(m.combos) }

// KeyDown records raw as held and returns the bindings it completes. Auto-repeat of a key
// that is already down fires nothing.
func (m *Matcher) KeyDown(raw uint16) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.down[raw] {
		return nil
	}
	m.down[raw] = true

	best := 0
	var fired []string
	for _, c := range m.combos {
		if !c.has(raw) || !m.allDown(c) {
			continue
		}
		switch n := len(c.keys); {
		case n > best:
			best = n
			fired = []string{c.name}
		case n == best:
			fired = append(fired, c.name)
		}
	}
	return fired
}

func (m *Matcher) KeyUp(raw uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.down, raw)
}

// Reset forgets every held key.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = make(map[uint16]bool)
}

func (m *Matcher) allDown(c combo) bool {
	for _, alts := range c.keys {
		held := false
		for _, r := range alts {
			if m.down[r] {
				held = true
				break
			}
		}
		if !held {
			return false
		}
	}
	return true
}

var (
	activeMu sync.Mutex
	active   *Matcher
)

// ResetHeld forgets the keys the running listener believes are held. Call it after anything
// that can swallow key releases, such as a full-screen overlay taking focus.
func ResetHeld() {
	activeMu.Lock()
	m := active
	activeMu.Unlock()
	if m != nil {
		m.Reset()
	}
}

// Listen starts one global keyboard hook serving every binding and calls callback with the
// binding name each time it fires. The callback runs on the hook goroutine and must not block.
func Listen(bindings []Binding, callback func(name string)) error {
	m, err := NewMatcher(bindings)
	if err != nil {
		slog.Warn("some hotkeys were not registered", "err", err)
	}
	if m.Len() == 0 {
		return errors.New("no valid hotkeys configured")
	}
	for _, c := range m.combos {
		slog.Info("hotkey registered", "trigger", c.name, "combo", c.desc)
	}
	activeMu.Lock()
	active = m
	activeMu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("PANIC in hotkey goroutine", "panic", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			slog.Error("gohook.Start() returned nil channel")
			return
		}
		defer gohook.End()

		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				for _, name := range m.KeyDown(ev.Rawcode) {
					slog.Debug("hotkey fired", "trigger", name)
					if callback != nil {
						callback(name)
					}
				}
			case gohook.KeyUp:
				m.KeyUp(ev.Rawcode)
			}
		}
		slog.Info("hotkey event channel closed")
	}()
	return nil
}
