//go:build !windows

package notification

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

func newPlatformSink(time.Duration) Sink { return LogSink{} }

// ShowBlockingError reports a fatal startup problem on stderr.
func ShowBlockingError(title, message string) {
	slog.Error(title, "message", message)
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}
