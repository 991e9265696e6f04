//go:build !windows

package main

import (
	"log/slog"

	"screen-answer-llm/src/screenshot"
)

func enableDPIAwareness() {}

func logMonitorConfiguration() {
	bounds, err := screenshot.VirtualBounds()
	if err != nil {
		slog.Warn("no displays found", "err", err)
		return
	}
	slog.Info("monitor configuration", "virtual", bounds.String())
}
