package journal

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// Pseudo-fields added to entries returned by NextEntry and PreviousEntry.
const (
	realtimeField  = "__REALTIME_TIMESTAMP"
	monotonicField = "__MONOTONIC_TIMESTAMP"
	cursorField    = "__CURSOR"
)

// Entry is a snapshot of one journal entry. Fields includes the
// __REALTIME_TIMESTAMP, __MONOTONIC_TIMESTAMP and __CURSOR pseudo-fields as
// decimal or text values, the way journalctl exports them.
type Entry struct {
	Fields    Fields
	Realtime  uint64
	Monotonic Monotonic
	Cursor    string
}

// Time returns the realtime timestamp as a time.Time.
func (e *Entry) Time() time.Time {
	return time.UnixMicro(int64(e.Realtime))
}

// Get returns the first value of field, or nil.
func (e *Entry) Get(field string) []byte {
	v, ok := e.Fields[field]
	if !ok {
		return nil
	}
	return v.Bytes()
}

// NextEntry moves like Next and returns the entry it lands on, or nil when
// it did not move.
func (r *Reader) NextEntry(skip int64) (*Entry, error) {
	ok, err := r.Next(skip)
	if err != nil || !ok {
		return nil, err
	}
	return r.Entry()
}

// PreviousEntry is NextEntry(-skip).
func (r *Reader) PreviousEntry(skip int64) (*Entry, error) {
	ok, err := r.Previous(skip)
	if err != nil || !ok {
		return nil, err
	}
	return r.Entry()
}

// Entry returns a snapshot of the current entry.
func (r *Reader) Entry() (*Entry, error) {
	fields, err := r.GetAll()
	if err != nil {
		return nil, err
	}
	rt, err := r.Realtime()
	if err != nil {
		return nil, err
	}
	mono, err := r.Monotonic()
	if err != nil {
		return nil, err
	}
	cursor, err := r.Cursor()
	if err != nil {
		return nil, err
	}

	fields[realtimeField] = Single(strconv.AppendUint(nil, rt, 10))
	fields[monotonicField] = Single(strconv.AppendUint(nil, mono.Timestamp, 10))
	fields[cursorField] = Single([]byte(cursor))

	return &Entry{
		Fields:    fields,
		Realtime:  rt,
		Monotonic: mono,
		Cursor:    cursor,
	}, nil
}

// Converter turns a raw field value into a Go value.
type Converter func([]byte) (any, error)

// Converters maps field names to converters.
type Converters map[string]Converter

// DefaultConverters returns converters for the well-known journal fields:
// integers, 128-bit ids and timestamps.
func DefaultConverters() Converters {
	c := Converters{
		"MESSAGE_ID":  ConvertID128,
		"_MACHINE_ID": ConvertID128,
		"_BOOT_ID":    ConvertID128,

		"_SOURCE_REALTIME_TIMESTAMP":  ConvertRealtime,
		"COREDUMP_TIMESTAMP":          ConvertRealtime,
		realtimeField:                 ConvertRealtime,
		"_SOURCE_MONOTONIC_TIMESTAMP": ConvertDuration,
		monotonicField:                ConvertDuration,

		cursorField: func(b []byte) (any, error) { return string(b), nil },
		"COREDUMP":  func(b []byte) (any, error) { return bytes.Clone(b), nil },
	}
	for _, f := range []string{
		"PRIORITY", "LEADER", "SESSION_ID", "USERSPACE_USEC", "INITRD_USEC",
		"KERNEL_USEC", "_UID", "_GID", "_PID", "SYSLOG_FACILITY", "SYSLOG_PID",
		"_AUDIT_SESSION", "_AUDIT_LOGINUID", "_SYSTEMD_SESSION",
		"_SYSTEMD_OWNER_UID", "CODE_LINE", "ERRNO", "EXIT_STATUS",
		"_FSUID", "_FSGID", "COREDUMP_PID", "COREDUMP_UID", "COREDUMP_GID",
		"COREDUMP_SESSION", "COREDUMP_SIGNAL",
	} {
		c[f] = ConvertInt
	}
	return c
}

// ConvertInt parses a decimal integer.
func ConvertInt(b []byte) (any, error) {
	return strconv.ParseInt(string(b), 10, 64)
}

// ConvertID128 parses a 128-bit id.
func ConvertID128(b []byte) (any, error) {
	return ParseID128(string(b))
}

// ConvertRealtime parses microseconds since the epoch.
func ConvertRealtime(b []byte) (any, error) {
	us, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return nil, err
	}
	return time.UnixMicro(int64(us)), nil
}

// ConvertDuration parses a microsecond count.
func ConvertDuration(b []byte) (any, error) {
	us, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return nil, err
	}
	return time.Duration(us) * time.Microsecond, nil
}

// Convert applies conv to every field. A value whose converter fails stays
// []byte; fields without a converter become strings when they are valid
// UTF-8. Repeated fields become []any.
func (e *Entry) Convert(conv Converters) map[string]any {
	out := make(map[string]any, len(e.Fields))
	for name, v := range e.Fields {
		if !v.IsMulti() {
			out[name] = convertValue(conv[name], v.Bytes())
			continue
		}
		all := v.All()
		list := make([]any, len(all))
		for i, b := range all {
			list[i] = convertValue(conv[name], b)
		}
		out[name] = list
	}
	return out
}

func convertValue(c Converter, b []byte) any {
	if c != nil {
		if v, err := c(b); err == nil {
			return v
		}
		return b
	}
	if utf8.Valid(b) {
		return string(b)
	}
	return b
}

// String renders an entry in journalctl's short format.
func (e *Entry) String() string {
	return fmt.Sprintf("%s %s", e.Time().Format(time.StampMicro), e.Get("MESSAGE"))
}
