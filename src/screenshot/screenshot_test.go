package screenshot

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Rect
	}{
		{"down-right", Rect{X1: 10, Y1: 20, X2: 110, Y2: 220}},
		{"up-left", Rect{X1: 110, Y1: 220, X2: 10, Y2: 20}},
		{"up-right", Rect{X1: 10, Y1: 220, X2: 110, Y2: 20}},
		{"down-left", Rect{X1: 110, Y1: 20, X2: 10, Y2: 220}},
	}
	want := Rect{X1: 10, Y1: 20, X2: 110, Y2: 220}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != want {
				t.Fatalf("Normalize(%v) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	if !(Rect{X1: 5, Y1: 5, X2: 5, Y2: 5}).Empty() {
		t.Error("expected point rect to be empty")
	}
	if !(Rect{X1: 5, Y1: 5, X2: 50, Y2: 5}).Empty() {
		t.Error("expected zero-height rect to be empty")
	}
	if (Rect{X1: 5, Y1: 5, X2: 6, Y2: 6}).Empty() {
		t.Error("expected 1x1 rect to be non-empty")
	}
}

func TestCaptureRectRejectsEmpty(t *testing.T) {
	_, err := CaptureRect(Rect{X1: 3, Y1: 3, X2: 3, Y2: 9})
	if !errors.Is(err, ErrEmptyRect) {
		t.Fatalf("expected ErrEmptyRect, got %v", err)
	}
}

func TestCaptureRect(t *testing.T) {
	// Needs a display; headless runs only log the failure.
	img, err := CaptureRect(Rect{X1: 0, Y1: 0, X2: 100, Y2: 100})
	if err != nil {
		t.Logf("Failed to capture region (expected in headless environment): %v", err)
		return
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
		t.Errorf("unexpected capture size %v", img.Bounds())
	}
}

func TestVirtualBounds(t *testing.T) {
	if _, err := VirtualBounds(); err != nil {
		t.Logf("Failed to get display bounds (expected in headless environment): %v", err)
	}
}
