//go:build !linux

package journal

import "time"

var clockStart = time.Now()

// MonotonicNow returns a monotonic clock in microseconds, the clock of
// Timeout deadlines.
func MonotonicNow() uint64 {
	return uint64(time.Since(clockStart).Microseconds())
}
