//go:build !windows

package tray

import "log/slog"

func showMessageBox(title, message string) {
	slog.Info(title, "message", message)
}
