package journal

import (
	"fmt"
	"math"
	"time"
)

// Next moves forward over up to skip matching entries (backward when skip
// is negative) and reports whether it moved at all. At the end of the
// journal it stops early; the position is kept when nothing matched.
func (r *Reader) Next(skip int64) (bool, error) {
	if err := r.check("next"); err != nil {
		return false, err
	}
	if skip == 0 {
		return false, fmt.Errorf("next: skip must not be 0: %w", ErrInvalidArgument)
	}
	var n uint64
	var err error
	if skip > 0 {
		n, err = r.store.Next(uint64(skip))
	} else {
		n, err = r.store.Previous(uint64(-skip))
	}
	if err != nil {
		return false, translate("next", err)
	}
	return n > 0, nil
}

// Previous is Next(-skip).
func (r *Reader) Previous(skip int64) (bool, error) {
	if skip == 0 {
		if err := r.check("previous"); err != nil {
			return false, err
		}
		return false, fmt.Errorf("previous: skip must not be 0: %w", ErrInvalidArgument)
	}
	if skip == math.MinInt64 {
		return r.Next(math.MaxInt64)
	}
	return r.Next(-skip)
}

// SeekHead positions before the first entry.
func (r *Reader) SeekHead() error {
	if err := r.check("seek head"); err != nil {
		return err
	}
	return translate("seek head", r.store.SeekHead())
}

// SeekTail positions after the last entry.
func (r *Reader) SeekTail() error {
	if err := r.check("seek tail"); err != nil {
		return err
	}
	return translate("seek tail", r.store.SeekTail())
}

// SeekRealtime positions so that Next lands on the first entry at or after
// usec (microseconds since the epoch) and Previous on the last one at or
// before it.
func (r *Reader) SeekRealtime(usec uint64) error {
	if err := r.check("seek realtime"); err != nil {
		return err
	}
	return translate("seek realtime", r.store.SeekRealtime(usec))
}

// SeekRealtimeTime is SeekRealtime for a time.Time.
func (r *Reader) SeekRealtimeTime(t time.Time) error {
	us := t.UnixMicro()
	if us < 0 {
		return fmt.Errorf("seek realtime: %v before the epoch: %w", t, ErrInvalidArgument)
	}
	return r.SeekRealtime(uint64(us))
}

// SeekMonotonic positions by monotonic time within one boot. The zero boot
// id means the running boot.
func (r *Reader) SeekMonotonic(usec uint64, boot ID128) error {
	if err := r.check("seek monotonic"); err != nil {
		return err
	}
	if !r.caps.SeekMonotonic {
		return fmt.Errorf("seek monotonic: %w", ErrUnsupported)
	}
	if boot.IsZero() {
		var err error
		if boot, err = BootID(); err != nil {
			return fmt.Errorf("seek monotonic: %w", err)
		}
	}
	return translate("seek monotonic", r.store.SeekMonotonic(boot, usec))
}

// SeekCursor positions at the entry named by a cursor token.
func (r *Reader) SeekCursor(cursor string) error {
	if err := r.check("seek cursor"); err != nil {
		return err
	}
	if cursor == "" {
		return fmt.Errorf("seek cursor: empty cursor: %w", ErrInvalidArgument)
	}
	return translate("seek cursor", r.store.SeekCursor(cursor))
}

// Cursor returns the token of the current entry.
func (r *Reader) Cursor() (string, error) {
	if err := r.check("cursor"); err != nil {
		return "", err
	}
	c, err := r.store.Cursor()
	return c, translate("cursor", err)
}

// TestCursor reports whether the current entry is the one cursor names.
func (r *Reader) TestCursor(cursor string) (bool, error) {
	if err := r.check("test cursor"); err != nil {
		return false, err
	}
	if cursor == "" {
		return false, fmt.Errorf("test cursor: empty cursor: %w", ErrInvalidArgument)
	}
	ok, err := r.store.TestCursor(cursor)
	return ok, translate("test cursor", err)
}
