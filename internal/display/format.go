// Package display renders human-facing output that is not a log line: the
// startup banner and duration/summary formatting.
package display

import (
	"fmt"
	"time"
)

// FormatElapsed renders a duration as "XmYs", rounding down to whole
// seconds. Hours are folded into minutes.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%dm%ds", secs/60, secs%60)
}

// FormatInterval renders a whole-second interval for log lines, e.g. "1h0m0s".
func FormatInterval(seconds int) string {
	return (time.Duration(seconds) * time.Second).String()
}

// OutcomeLabel is the short form used on cycle boundary lines.
func OutcomeLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
