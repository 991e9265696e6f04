//go:build windows

package main

import (
	"log/slog"
	"syscall"

	"github.com/lxn/win"
)

// enableDPIAwareness asks for per-monitor DPI awareness so overlay coordinates match the
// physical pixels the capture reads.
func enableDPIAwareness() {
	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			slog.Debug("DPI: per-monitor awareness set")
		} else {
			slog.Warn("DPI: per-monitor awareness failed", "code", ret)
		}
		return
	}

	slog.Debug("DPI: SetProcessDpiAwareness not available, trying fallback")
	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		slog.Warn("DPI: no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
		slog.Warn("DPI: system awareness failed")
	}
}

func logMonitorConfiguration() {
	const smCMonitors = 80
	slog.Info("monitor configuration",
		"monitors", win.GetSystemMetrics(smCMonitors),
		"virtual_x", win.GetSystemMetrics(win.SM_XVIRTUALSCREEN),
		"virtual_y", win.GetSystemMetrics(win.SM_YVIRTUALSCREEN),
		"virtual_w", win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN),
		"virtual_h", win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN),
		"primary_w", win.GetSystemMetrics(win.SM_CXSCREEN),
		"primary_h", win.GetSystemMetrics(win.SM_CYSCREEN),
	)
}
