package journal

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// waitSlice bounds each blocking wait inside WaitContext so cancellation
// is noticed promptly.
const waitSlice = 250 * time.Millisecond

// Fileno returns a descriptor to poll for journal changes.
func (r *Reader) Fileno() (int, error) {
	if err := r.check("fileno"); err != nil {
		return -1, err
	}
	fd, err := r.store.Fd()
	if err != nil {
		return -1, translate("fileno", err)
	}
	return fd, nil
}

// Events returns the poll events to wait for on Fileno.
func (r *Reader) Events() (int16, error) {
	if err := r.check("events"); err != nil {
		return 0, err
	}
	ev, err := r.store.Events()
	return ev, translate("events", err)
}

// Timeout returns the CLOCK_MONOTONIC deadline (microseconds) by which
// Process should be called even without poll activity. ok is false when
// there is none.
func (r *Reader) Timeout() (deadline uint64, ok bool, err error) {
	if err := r.check("timeout"); err != nil {
		return 0, false, err
	}
	deadline, ok, err = r.store.Timeout()
	return deadline, ok, translate("timeout", err)
}

// TimeoutMS returns Timeout as a poll(2) timeout: milliseconds from now,
// rounded up, 0 if already due, and -1 for none.
func (r *Reader) TimeoutMS() (int, error) {
	deadline, ok, err := r.Timeout()
	if err != nil {
		return -1, err
	}
	if !ok {
		return -1, nil
	}
	return timeoutMS(deadline, MonotonicNow()), nil
}

func timeoutMS(deadline, now uint64) int {
	if deadline <= now {
		return 0
	}
	return int((deadline - now + 999) / 1000)
}

// Process handles pending change notifications without blocking. Call it
// after Fileno becomes readable or the Timeout passes.
func (r *Reader) Process() (ChangeState, error) {
	if err := r.check("process"); err != nil {
		return NoChange, err
	}
	s, err := r.store.Process()
	return s, translate("process", err)
}

// Wait blocks until the journal changes or timeout passes. A negative
// timeout waits indefinitely.
func (r *Reader) Wait(timeout time.Duration) (ChangeState, error) {
	if err := r.check("wait"); err != nil {
		return NoChange, err
	}
	s, err := r.store.Wait(timeout)
	return s, translate("wait", err)
}

// WaitContext waits until the journal changes or ctx is done, in which
// case it returns ctx's error.
func (r *Reader) WaitContext(ctx context.Context) (ChangeState, error) {
	for {
		if err := ctx.Err(); err != nil {
			return NoChange, err
		}
		slice := waitSlice
		if dl, ok := ctx.Deadline(); ok {
			if left := time.Until(dl); left < slice {
				slice = max(left, 0)
			}
		}
		s, err := r.Wait(slice)
		if err != nil || s != NoChange {
			return s, err
		}
	}
}

// ReliableFD reports whether polling Fileno alone notices every change.
// When false, Timeout must be honored too.
func (r *Reader) ReliableFD() (bool, error) {
	if err := r.check("reliable fd"); err != nil {
		return false, err
	}
	ok, err := r.store.ReliableFD()
	return ok, translate("reliable fd", err)
}

// Entries yields the entries from the current position to the end of the
// journal without waiting for more.
func (r *Reader) Entries(ctx context.Context) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			e, err := r.NextEntry(1)
			if err != nil {
				yield(nil, err)
				return
			}
			if e == nil {
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Follow yields entries from the current position and then waits for new
// ones until ctx is done.
func (r *Reader) Follow(ctx context.Context) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			e, err := r.NextEntry(1)
			if err != nil {
				yield(nil, err)
				return
			}
			if e != nil {
				if !yield(e, nil) {
					return
				}
				continue
			}

			state, err := r.WaitContext(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("follow: %w", err))
				return
			}
			if state == Invalidated {
				r.log.Debug("journal files changed while following")
			}
		}
	}
}
