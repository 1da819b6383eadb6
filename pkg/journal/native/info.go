package native

import (
	"fmt"

	"github.com/mbrock/sdreader/pkg/journal"
)

func (s *store) Usage() (uint64, error) {
	var total uint64
	for _, jf := range s.files {
		total += uint64(jf.r.Size())
	}
	return total, nil
}

// Cutoff reports the realtime range covered by the files, from their
// headers.
func (s *store) Cutoff() (start, end uint64, err error) {
	found := false
	for _, jf := range s.files {
		h := jf.r.Header()
		if h.NEntries == 0 || h.HeadEntryRealtime == 0 {
			continue
		}
		if !found || h.HeadEntryRealtime < start {
			start = h.HeadEntryRealtime
		}
		if !found || h.TailEntryRealtime > end {
			end = h.TailEntryRealtime
		}
		found = true
	}
	if !found {
		return 0, 0, fmt.Errorf("journal has no entries: %w", journal.ErrNotFound)
	}
	return start, end, nil
}

func (s *store) HasRuntimeFiles() (bool, error) {
	for _, jf := range s.files {
		if jf.runtime {
			return true, nil
		}
	}
	return false, nil
}

func (s *store) HasPersistentFiles() (bool, error) {
	for _, jf := range s.files {
		if !jf.runtime {
			return true, nil
		}
	}
	return false, nil
}
