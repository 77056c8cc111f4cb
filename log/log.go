// Package log provides the levelled logging helpers used throughout biblioteca-sheets.
package log

import (
	"fmt"
	"io"
	syslog "log"
	"strings"
	"sync/atomic"
)

var debugging atomic.Bool

// SetDebug enables or disables DEBUG level output.
func SetDebug(enabled bool) {
	debugging.Store(enabled)
}

// SetLevel sets the logging level from a configuration string. Only 'debug' has any
// effect, everything else logs at INFO and above.
func SetLevel(level string) {
	SetDebug(strings.ToLower(strings.TrimSpace(level)) == "debug")
}

// IsDebug returns true if DEBUG level output is enabled.
func IsDebug() bool {
	return debugging.Load()
}

// Writer returns the destination of the log output, for use by middleware that
// writes its own log lines.
func Writer() io.Writer {
	return syslog.Writer()
}

func Debugf(format string, args ...any) {
	if debugging.Load() {
		syslog.Printf("%-5s %s", "DEBUG", fmt.Sprintf(format, args...))
	}
}

func Infof(format string, args ...any) {
	syslog.Printf("%-5s %s", "INFO", fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	syslog.Printf("%-5s %s", "WARN", fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	syslog.Printf("%-5s %s", "ERROR", fmt.Sprintf(format, args...))
}
