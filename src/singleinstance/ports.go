package singleinstance

import (
	"os"
	"strconv"
)

const (
	defaultPortStart = 49500
	defaultPortEnd   = 49550

	envPortStart = "SINGLEINSTANCE_PORT_START"
	envPortEnd   = "SINGLEINSTANCE_PORT_END"
)

// getPortRange returns the inclusive TCP port range shared by the resident and delegating
// processes. Unset or invalid variables fall back to the defaults; the result is clamped to
// [1024, 65535].
func getPortRange() (int, int) {
	start := portFromEnv(envPortStart, defaultPortStart)
	end := portFromEnv(envPortEnd, defaultPortEnd)
	if start < 1024 {
		start = 1024
	}
	if end > 65535 {
		end = 65535
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

func portFromEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetPortRangeForDebug exposes the current effective port range for logging/debugging.
func GetPortRangeForDebug() (int, int) { return getPortRange() }
