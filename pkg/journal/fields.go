package journal

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Value holds the value(s) of one field of an entry. Fields usually occur
// once; when a field repeats, Multi holds every value in the order stored.
type Value struct {
	single []byte
	multi  [][]byte
}

// Single makes a one-value Value.
func Single(v []byte) Value { return Value{single: v} }

// Multi makes a Value for a repeated field.
func Multi(vs ...[]byte) Value { return Value{multi: vs} }

// IsMulti reports whether the field occurred more than once.
func (v Value) IsMulti() bool { return v.multi != nil }

// Bytes returns the first value.
func (v Value) Bytes() []byte {
	if v.multi != nil {
		return v.multi[0]
	}
	return v.single
}

// String returns the first value as a string.
func (v Value) String() string { return string(v.Bytes()) }

// All returns every value in order.
func (v Value) All() [][]byte {
	if v.multi != nil {
		return v.multi
	}
	return [][]byte{v.single}
}

func (v Value) add(b []byte) Value {
	if v.multi == nil {
		return Value{multi: [][]byte{v.single, b}}
	}
	v.multi = append(v.multi, b)
	return v
}

// Fields maps field names to values.
type Fields map[string]Value

// Monotonic is a monotonic timestamp; it is only comparable between
// entries of the same boot.
type Monotonic struct {
	Timestamp uint64 // microseconds since boot
	BootID    ID128
}

// Duration returns the timestamp as time since boot.
func (m Monotonic) Duration() time.Duration {
	return time.Duration(m.Timestamp) * time.Microsecond
}

// extractField splits a NAME=VALUE record at its first '='. The value is
// copied and never decoded.
func extractField(record []byte) (string, []byte, error) {
	eq := bytes.IndexByte(record, '=')
	if eq < 0 {
		return "", nil, &IOError{
			Op:    "extract field",
			Errno: errnoUClean,
			Err:   fmt.Errorf("%w: record %q has no '='", ErrProtocol, truncateForError(record)),
		}
	}
	return string(record[:eq]), bytes.Clone(record[eq+1:]), nil
}

func truncateForError(b []byte) []byte {
	if len(b) > 64 {
		return b[:64]
	}
	return b
}

// Get returns the first value of field in the current entry. The
// pseudo-fields __CURSOR, __REALTIME_TIMESTAMP and __MONOTONIC_TIMESTAMP
// are answered too.
func (r *Reader) Get(field string) ([]byte, error) {
	if err := r.check("get"); err != nil {
		return nil, err
	}
	switch field {
	case cursorField:
		c, err := r.Cursor()
		if err != nil {
			return nil, err
		}
		return []byte(c), nil
	case realtimeField:
		us, err := r.Realtime()
		if err != nil {
			return nil, err
		}
		return strconv.AppendUint(nil, us, 10), nil
	case monotonicField:
		m, err := r.Monotonic()
		if err != nil {
			return nil, err
		}
		return strconv.AppendUint(nil, m.Timestamp, 10), nil
	}
	if err := validateFieldName(field); err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	rec, err := r.store.Data(field)
	if err != nil {
		return nil, translate("get "+field, err)
	}
	_, v, err := extractField(rec)
	return v, err
}

// GetAll returns every field of the current entry. Fields that occur more
// than once become Multi values.
func (r *Reader) GetAll() (Fields, error) {
	if err := r.check("get all"); err != nil {
		return nil, err
	}
	out := make(Fields)
	err := r.store.EachData(func(rec []byte) error {
		name, v, err := extractField(rec)
		if err != nil {
			return err
		}
		if prev, ok := out[name]; ok {
			out[name] = prev.add(v)
		} else {
			out[name] = Single(v)
		}
		return nil
	})
	if err != nil {
		return nil, translate("get all", err)
	}
	return out, nil
}

// Realtime returns the wallclock time of the current entry in microseconds
// since the epoch.
func (r *Reader) Realtime() (uint64, error) {
	if err := r.check("realtime"); err != nil {
		return 0, err
	}
	us, err := r.store.Realtime()
	return us, translate("realtime", err)
}

// RealtimeTime is Realtime as a time.Time.
func (r *Reader) RealtimeTime() (time.Time, error) {
	us, err := r.Realtime()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(int64(us)), nil
}

// Monotonic returns the monotonic time and boot id of the current entry.
func (r *Reader) Monotonic() (Monotonic, error) {
	if err := r.check("monotonic"); err != nil {
		return Monotonic{}, err
	}
	us, boot, err := r.store.Monotonic()
	if err != nil {
		return Monotonic{}, translate("monotonic", err)
	}
	return Monotonic{Timestamp: us, BootID: boot}, nil
}

// DataThreshold returns the size up to which compressed fields are
// decoded; 0 means no limit.
func (r *Reader) DataThreshold() (int, error) {
	if err := r.check("data threshold"); err != nil {
		return 0, err
	}
	n, err := r.store.DataThreshold()
	return n, translate("data threshold", err)
}

// SetDataThreshold sets the data threshold; 0 removes the limit.
func (r *Reader) SetDataThreshold(n int) error {
	if err := r.check("set data threshold"); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("set data threshold %d: %w", n, ErrInvalidArgument)
	}
	return translate("set data threshold", r.store.SetDataThreshold(n))
}
