package journal

import "golang.org/x/sys/unix"

// MonotonicNow returns CLOCK_MONOTONIC in microseconds, the clock of
// Timeout deadlines.
func MonotonicNow() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1_000_000 + uint64(ts.Nsec)/1000
}
