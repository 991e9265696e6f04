package notification

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPanelText(t *testing.T) {
	assert.Equal(t, "B. 4", panelText("B. 4"))

	long := strings.Repeat("é", maxPanelRunes+10)
	got := panelText(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, maxPanelRunes+3, utf8.RuneCountInString(got))
}

func TestSlotSetReusesLowest(t *testing.T) {
	var s slotSet
	assert.Equal(t, 0, s.acquire())
	assert.Equal(t, 1, s.acquire())
	assert.Equal(t, 2, s.acquire())

	s.release(1)
	assert.Equal(t, 1, s.acquire())
	s.release(0)
	s.release(2)
	assert.Equal(t, 0, s.acquire())
	assert.Equal(t, 2, s.acquire())
}

func TestNewNeverReturnsNil(t *testing.T) {
	assert.NotNil(t, New(0))
}

func TestLogSinkDisplay(t *testing.T) {
	// Must not panic on control characters or empty text.
	LogSink{}.Display("")
	LogSink{}.Display("line\nbreak\x00")
}
