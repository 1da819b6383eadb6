package native

import (
	"fmt"

	"github.com/mbrock/sdreader/pkg/journal"
	"github.com/mbrock/sdreader/pkg/journalfile"
)

type locKind int

const (
	locHead locKind = iota
	locTail
	locRealtime
	locMonotonic
	// locEntry is a landed entry, order[idx].
	locEntry
	// locNear is where a landed entry used to be before its file went away.
	locNear
)

// navState is the reader position.
type navState struct {
	kind locKind
	usec uint64
	boot journalfile.ID128

	// anchor is the landed entry for locEntry and locNear, and the last
	// entry at seek time for locTail when hasAnchor is set.
	anchor    anchor
	hasAnchor bool

	landed bool
	idx    int
	file   *jfile
	// self makes the next step in either direction return the landed entry
	// itself; set by SeekCursor.
	self bool
}

func (s *store) land(i int) {
	p := s.order[i]
	s.nav = navState{
		kind:      locEntry,
		anchor:    anchorOf(p),
		hasAnchor: true,
		landed:    true,
		idx:       i,
		file:      p.f,
	}
}

// start returns the first index to consider when stepping forward or
// backward. ok is false when there is nothing in that direction.
func (s *store) start(forward bool) (int, bool) {
	n := len(s.order)
	nav := &s.nav
	switch nav.kind {
	case locHead:
		return 0, forward && n > 0
	case locTail:
		if !forward {
			return n - 1, n > 0
		}
		if !nav.hasAnchor {
			return 0, n > 0
		}
		return s.after(nav.anchor)
	case locEntry:
		if nav.self {
			return nav.idx, true
		}
		if forward {
			return nav.idx + 1, nav.idx+1 < n
		}
		return nav.idx - 1, nav.idx > 0
	case locNear:
		if forward {
			return s.after(nav.anchor)
		}
		return s.before(nav.anchor)
	case locRealtime:
		if forward {
			for i, p := range s.order {
				if p.meta().Realtime >= nav.usec {
					return i, true
				}
			}
			return 0, false
		}
		for i := n - 1; i >= 0; i-- {
			if s.order[i].meta().Realtime <= nav.usec {
				return i, true
			}
		}
		return 0, false
	case locMonotonic:
		if forward {
			for i, p := range s.order {
				m := p.meta()
				if m.BootID == nav.boot && m.Monotonic >= nav.usec {
					return i, true
				}
			}
			return 0, false
		}
		for i := n - 1; i >= 0; i-- {
			m := s.order[i].meta()
			if m.BootID == nav.boot && m.Monotonic <= nav.usec {
				return i, true
			}
		}
		return 0, false
	}
	return 0, false
}

func (s *store) after(a anchor) (int, bool) {
	for i, p := range s.order {
		if p.compareAnchor(a) > 0 {
			return i, true
		}
	}
	return 0, false
}

func (s *store) before(a anchor) (int, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		if s.order[i].compareAnchor(a) < 0 {
			return i, true
		}
	}
	return 0, false
}

func (s *store) Next(skip uint64) (uint64, error) {
	n, err := s.step(skip, true)
	if err != nil || n == skip {
		return n, err
	}
	// Ran off the end: pick up entries appended since the last look.
	changed, err := s.refresh()
	if err != nil || !changed {
		return n, err
	}
	more, err := s.step(skip-n, true)
	return n + more, err
}

func (s *store) Previous(skip uint64) (uint64, error) {
	return s.step(skip, false)
}

// step moves over up to skip matching entries and lands on the last one.
func (s *store) step(skip uint64, forward bool) (uint64, error) {
	i, ok := s.start(forward)
	if !ok {
		return 0, nil
	}
	var (
		count uint64
		last  = -1
	)
	for i >= 0 && i < len(s.order) {
		match, err := s.matches(s.order[i])
		if err != nil {
			return count, err
		}
		if match {
			count++
			last = i
			if count == skip {
				break
			}
		}
		if forward {
			i++
		} else {
			i--
		}
	}
	if last >= 0 {
		s.land(last)
	}
	return count, nil
}

func (s *store) SeekHead() error {
	s.nav = navState{kind: locHead}
	return nil
}

func (s *store) SeekTail() error {
	s.nav = navState{kind: locTail}
	if n := len(s.order); n > 0 {
		s.nav.anchor = anchorOf(s.order[n-1])
		s.nav.hasAnchor = true
	}
	return nil
}

func (s *store) SeekRealtime(usec uint64) error {
	s.nav = navState{kind: locRealtime, usec: usec}
	return nil
}

func (s *store) SeekMonotonic(boot journal.ID128, usec uint64) error {
	s.nav = navState{kind: locMonotonic, usec: usec, boot: boot}
	return nil
}

func (s *store) SeekCursor(cursor string) error {
	c, err := journalfile.ParseCursor(cursor)
	if err != nil {
		return fmt.Errorf("%w: %w", journal.ErrInvalidArgument, err)
	}
	for i, p := range s.order {
		if c.Matches(p.f.seqnumID(), *p.meta()) {
			s.land(i)
			s.nav.self = true
			return nil
		}
	}
	return fmt.Errorf("cursor %q names no entry in this journal: %w", cursor, journal.ErrInvalidArgument)
}

// current returns the landed entry.
func (s *store) current() (pos, error) {
	if !s.nav.landed || s.nav.idx >= len(s.order) {
		return pos{}, journal.ErrNoEntry
	}
	return s.order[s.nav.idx], nil
}

func (s *store) Cursor() (string, error) {
	p, err := s.current()
	if err != nil {
		return "", err
	}
	return journalfile.CursorFor(p.f.seqnumID(), *p.meta()).String(), nil
}

func (s *store) TestCursor(cursor string) (bool, error) {
	c, err := journalfile.ParseCursor(cursor)
	if err != nil {
		return false, fmt.Errorf("%w: %w", journal.ErrInvalidArgument, err)
	}
	p, err := s.current()
	if err != nil {
		return false, err
	}
	return c.Matches(p.f.seqnumID(), *p.meta()), nil
}

func (s *store) Realtime() (uint64, error) {
	p, err := s.current()
	if err != nil {
		return 0, err
	}
	return p.meta().Realtime, nil
}

func (s *store) Monotonic() (uint64, journal.ID128, error) {
	p, err := s.current()
	if err != nil {
		return 0, journal.ID128{}, err
	}
	m := p.meta()
	return m.Monotonic, m.BootID, nil
}
