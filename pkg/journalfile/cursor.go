package journalfile

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCursor is returned by ParseCursor for malformed cursor strings.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor identifies one entry. Its string form is the one libsystemd
// produces, so tokens from journalctl --show-cursor can be used here:
//
//	s=<seqnum_id>;i=<seqnum>;b=<boot_id>;m=<monotonic>;t=<realtime>;x=<xor_hash>
type Cursor struct {
	SeqnumID  ID128
	Seqnum    uint64
	BootID    ID128
	Monotonic uint64
	Realtime  uint64
	XorHash   uint64

	// Which parts were present when parsed.
	HasSeqnum    bool
	HasMonotonic bool
	HasRealtime  bool
	HasXorHash   bool
}

// CursorFor builds the cursor of an entry stored in a file whose seqnum id is seqnumID.
func CursorFor(seqnumID ID128, m EntryMeta) Cursor {
	return Cursor{
		SeqnumID:     seqnumID,
		Seqnum:       m.Seqnum,
		BootID:       m.BootID,
		Monotonic:    m.Monotonic,
		Realtime:     m.Realtime,
		XorHash:      m.XorHash,
		HasSeqnum:    true,
		HasMonotonic: true,
		HasRealtime:  true,
		HasXorHash:   true,
	}
}

func (c Cursor) String() string {
	return fmt.Sprintf("s=%s;i=%x;b=%s;m=%x;t=%x;x=%x",
		c.SeqnumID, c.Seqnum, c.BootID, c.Monotonic, c.Realtime, c.XorHash)
}

// Matches reports whether the entry m in a file with seqnumID is the entry
// this cursor names. Only the parts present in the cursor are compared.
func (c Cursor) Matches(seqnumID ID128, m EntryMeta) bool {
	if c.HasSeqnum && (c.SeqnumID != seqnumID || c.Seqnum != m.Seqnum) {
		return false
	}
	if c.HasMonotonic && (c.BootID != m.BootID || c.Monotonic != m.Monotonic) {
		return false
	}
	if c.HasRealtime && c.Realtime != m.Realtime {
		return false
	}
	if c.HasXorHash && c.XorHash != m.XorHash {
		return false
	}
	return true
}

// ParseCursor parses a cursor string. Unknown keys are ignored; at least one
// of seqnum (s+i), monotonic (b+m) or realtime (t) must be present.
func ParseCursor(s string) (Cursor, error) {
	var c Cursor
	var haveSeqnumID, haveSeqnum, haveBoot, haveMono bool

	if s == "" {
		return c, fmt.Errorf("%w: empty", ErrInvalidCursor)
	}

	for part := range strings.SplitSeq(s, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok || len(key) != 1 || val == "" {
			return Cursor{}, fmt.Errorf("%w: bad component %q", ErrInvalidCursor, part)
		}

		var err error
		switch key {
		case "s":
			c.SeqnumID, err = parseHexID(val)
			haveSeqnumID = true
		case "i":
			c.Seqnum, err = strconv.ParseUint(val, 16, 64)
			haveSeqnum = true
		case "b":
			c.BootID, err = parseHexID(val)
			haveBoot = true
		case "m":
			c.Monotonic, err = strconv.ParseUint(val, 16, 64)
			haveMono = true
		case "t":
			c.Realtime, err = strconv.ParseUint(val, 16, 64)
			c.HasRealtime = true
		case "x":
			c.XorHash, err = strconv.ParseUint(val, 16, 64)
			c.HasXorHash = true
		}
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: component %q: %v", ErrInvalidCursor, part, err)
		}
	}

	c.HasSeqnum = haveSeqnumID && haveSeqnum
	c.HasMonotonic = haveBoot && haveMono
	if !c.HasSeqnum && !c.HasMonotonic && !c.HasRealtime {
		return Cursor{}, fmt.Errorf("%w: no position in %q", ErrInvalidCursor, s)
	}
	return c, nil
}

func parseHexID(s string) (ID128, error) {
	var id ID128
	if len(s) != 32 {
		return id, fmt.Errorf("id %q: want 32 hex digits", s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, err
	}
	return id, nil
}
