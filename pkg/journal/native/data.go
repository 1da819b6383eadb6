package native

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/mbrock/sdreader/pkg/journal"
	"github.com/mbrock/sdreader/pkg/journalfile"
)

func (s *store) SetMatches(f *journal.Filter) error {
	s.filter = f
	for _, jf := range s.files {
		jf.terms = nil
	}
	return nil
}

// termOffset returns the data object of term in jf, or 0 if the file has
// no entry with it.
func (jf *jfile) termOffset(term []byte) (uint64, error) {
	if off, ok := jf.terms[string(term)]; ok {
		return off, nil
	}
	off, err := jf.r.FindData(term)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", jf.path, err)
	}
	if jf.terms == nil {
		jf.terms = make(map[string]uint64)
	}
	jf.terms[string(term)] = off
	return off, nil
}

// matches evaluates the filter against the entry at p. Data objects are
// shared between entries of a file, so a term is present when the entry
// references the term's data object.
func (s *store) matches(p pos) (bool, error) {
	if s.filter == nil || s.filter.Empty() {
		return true, nil
	}
	var (
		items []journalfile.Item
		err   error
	)
	ok := s.filter.Match(func(term []byte) bool {
		if err != nil {
			return false
		}
		var off uint64
		if off, err = p.f.termOffset(term); err != nil || off == 0 {
			return false
		}
		if items == nil {
			if items, err = p.f.r.EntryItems(p.meta().Offset); err != nil {
				return false
			}
		}
		return slices.ContainsFunc(items, func(it journalfile.Item) bool { return it.Offset == off })
	})
	return ok && err == nil, err
}

func (s *store) limit() uint64 {
	return uint64(s.threshold)
}

// eachRecord calls fn with a copy of every NAME=VALUE record of the
// current entry, in stored order.
func (s *store) eachRecord(fn func(rec []byte) (bool, error)) error {
	p, err := s.current()
	if err != nil {
		return err
	}
	items, err := p.f.r.EntryItems(p.meta().Offset)
	if err != nil {
		return fmt.Errorf("%s: %w", p.f.path, err)
	}
	for _, it := range items {
		rec, err := p.f.r.Data(it.Offset, s.limit())
		if err != nil {
			return fmt.Errorf("%s: %w", p.f.path, wrapFileError(err))
		}
		more, err := fn(bytes.Clone(rec))
		if err != nil || !more {
			return err
		}
	}
	return nil
}

func (s *store) Data(field string) ([]byte, error) {
	prefix := []byte(field + "=")
	var found []byte
	err := s.eachRecord(func(rec []byte) (bool, error) {
		if bytes.HasPrefix(rec, prefix) {
			found = rec
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("field %s: %w", field, journal.ErrNotFound)
	}
	return found, nil
}

func (s *store) EachData(fn func(record []byte) error) error {
	return s.eachRecord(func(rec []byte) (bool, error) {
		return true, fn(rec)
	})
}

func (s *store) DataThreshold() (int, error) {
	return s.threshold, nil
}

func (s *store) SetDataThreshold(n int) error {
	if n < 0 {
		return journal.ErrInvalidArgument
	}
	s.threshold = n
	return nil
}

// Unique walks the data objects of field in every file. Values present in
// several files are reported once per file; the Reader dedupes.
func (s *store) Unique(field string, fn func(record []byte) error) error {
	for _, jf := range s.files {
		offs, err := jf.r.FieldData(field)
		if err != nil {
			return fmt.Errorf("%s: %w", jf.path, err)
		}
		for _, off := range offs {
			rec, err := jf.r.Data(off, s.limit())
			if err != nil {
				return fmt.Errorf("%s: %w", jf.path, wrapFileError(err))
			}
			if err := fn(bytes.Clone(rec)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *store) Fields(fn func(name string) error) error {
	var names []string
	for _, jf := range s.files {
		ns, err := jf.r.FieldNames()
		if err != nil {
			return fmt.Errorf("%s: %w", jf.path, err)
		}
		names = append(names, ns...)
	}
	slices.Sort(names)
	for _, name := range slices.Compact(names) {
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}
