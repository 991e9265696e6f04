package cliplog

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendDeduplicates(t *testing.T) {
	for _, text := range []string{"hello", "  spaced  ", "multi\nline"} {
		l := New()
		assert.True(t, l.Append(text))
		assert.False(t, l.Append(text))
		assert.False(t, l.Append("\t"+text+"\n"))
		assert.Equal(t, 1, l.Len(), "text %q", text)
	}
}

func TestAppendIgnoresBlank(t *testing.T) {
	l := New()
	assert.False(t, l.Append(""))
	assert.False(t, l.Append(" \n\t "))
	assert.True(t, l.IsEmpty())
}

func TestDrainAllJoinsInOrder(t *testing.T) {
	l := New()
	l.Append("What is")
	l.Append(" 2+2? ")
	l.Append("What is")

	assert.Equal(t, []string{"What is", "2+2?"}, l.Snapshot())
	assert.Equal(t, "What is 2+2?", l.DrainAll())
	assert.True(t, l.IsEmpty())

	// Drained entries may be logged again.
	assert.True(t, l.Append("What is"))
}

func TestDrainEmptyIsIdempotent(t *testing.T) {
	var l Log
	assert.Equal(t, "", l.DrainAll())
	assert.Equal(t, "", l.DrainAll())
	assert.True(t, l.IsEmpty())
}

func TestConcurrentAppendAndDrain(t *testing.T) {
	l := New()
	const writers, perWriter = 4, 200

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		drained []string
	)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
			}
			if s := l.DrainAll(); s != "" {
				mu.Lock()
				drained = append(drained, strings.Fields(s)...)
				mu.Unlock()
			}
		}
	}()

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				l.Append(fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	close(done)
	<-stopped

	mu.Lock()
	defer mu.Unlock()
	drained = append(drained, strings.Fields(l.DrainAll())...)

	// Every entry shows up exactly once: nothing dropped, nothing both drained and retained.
	require.Len(t, drained, writers*perWriter)
	seen := map[string]bool{}
	for _, s := range drained {
		assert.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
	}
	assert.True(t, l.IsEmpty())
}

func TestRestorePutsDrainedEntriesBack(t *testing.T) {
	l := New()
	l.Append("What is")
	l.Append("2+2?")

	entries := l.DrainEntries()
	assert.Equal(t, []string{"What is", "2+2?"}, entries)
	assert.True(t, l.IsEmpty())

	// Copies made while the drained text was out keep their place after it.
	l.Append("2+2?")
	l.Append("Options: A, B")
	l.Restore(entries)

	assert.Equal(t, []string{"What is", "2+2?", "Options: A, B"}, l.Snapshot())
	assert.False(t, l.Append("2+2?"), "restored entries still deduplicate")
	assert.False(t, l.Append("What is"))
	assert.Equal(t, "What is 2+2? Options: A, B", l.DrainAll())
}

func TestRestoreNothing(t *testing.T) {
	var l Log
	l.Restore(nil)
	l.Restore([]string{"", "  "})
	assert.True(t, l.IsEmpty())
	assert.True(t, l.Append("later"))
}
