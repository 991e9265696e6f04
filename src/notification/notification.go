package notification

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"screen-answer-llm/src/logutil"
)

const (
	DefaultDuration = 5 * time.Second
	maxPanelRunes   = 400
)

// Sink shows a message to the user. Display is fire-and-forget and safe from any goroutine;
// every call gets its own transient panel that expires on its own.
type Sink interface {
	Display(text string)
}

// New returns the platform sink. Panels stay up for d (DefaultDuration when d<=0).
func New(d time.Duration) Sink {
	if d <= 0 {
		d = DefaultDuration
	}
	return newPlatformSink(d)
}

// LogSink only logs. It backs platforms without a panel implementation.
type LogSink struct{}

func (LogSink) Display(text string) {
	slog.Info("notification", "text", logutil.Sanitize(text))
}

// panelText caps what a fixed-size panel can reasonably show.
func panelText(text string) string {
	if utf8.RuneCountInString(text) <= maxPanelRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxPanelRunes]) + "..."
}

// slotSet hands out stacking positions; slot 0 sits in the bottom-right corner and
// higher slots stack upwards. Released slots are reused lowest first.
type slotSet struct {
	used map[int]bool
}

func (s *slotSet) acquire() int {
	if s.used == nil {
		s.used = make(map[int]bool)
	}
	for i := 0; ; i++ {
		if !s.used[i] {
			s.used[i] = true
			return i
		}
	}
}

func (s *slotSet) release(i int) {
	delete(s.used, i)
}
