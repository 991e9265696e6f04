package clipboard

import (
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	// Needs a desktop session with a clipboard.
	if err := Init(); err != nil {
		t.Skipf("clipboard unavailable: %v", err)
	}

	if err := Write("  test text \n"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := ReadText(); got != "test text" {
		t.Errorf("ReadText() = %q, want %q", got, "test text")
	}

	if err := Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := ReadText(); got != "" {
		t.Errorf("ReadText() after Clear = %q, want empty", got)
	}
}
