package native

import (
	"context"
	"time"

	"github.com/mbrock/sdreader/pkg/journal"
)

// fallbackInterval is how often files are checked when change
// notifications cannot be trusted.
const fallbackInterval = 250 * time.Millisecond

// pollIn is POLLIN, the same value on every platform we run on.
const pollIn = 0x1

func (s *store) startWatch() {
	if s.req.Mode == journal.ModeFileFDs {
		return
	}
	w, err := newWatcher()
	if err != nil {
		s.log.Debug("no inotify, polling journal files", "error", err)
		return
	}
	s.watch = w
	s.addWatches()
}

func (s *store) addWatches() {
	s.network = false
	for _, jf := range s.files {
		if onNetworkFS(jf.path) {
			s.network = true
			break
		}
	}
	if s.watch == nil {
		return
	}
	if s.fixed {
		for _, jf := range s.files {
			if err := s.watch.addFile(jf.path); err != nil {
				s.log.Debug("cannot watch journal file", "path", jf.path, "error", err)
			}
		}
		return
	}
	for _, dir := range s.watchDirs() {
		if err := s.watch.addDir(dir); err != nil {
			s.log.Debug("cannot watch journal directory", "path", dir, "error", err)
		}
	}
}

func (s *store) Fd() (int, error) {
	if s.watch == nil {
		return -1, journal.ErrUnsupported
	}
	return s.watch.fd, nil
}

func (s *store) Events() (int16, error) {
	return pollIn, nil
}

func (s *store) Timeout() (uint64, bool, error) {
	if reliable, _ := s.ReliableFD(); reliable {
		return 0, false, nil
	}
	return s.lastProcess + uint64(fallbackInterval/time.Microsecond), true, nil
}

// ReliableFD is false without inotify and for files on network
// filesystems, where inotify misses changes made by other hosts.
func (s *store) ReliableFD() (bool, error) {
	return s.watch != nil && !s.network, nil
}

func (s *store) Process() (journal.ChangeState, error) {
	s.lastProcess = journal.MonotonicNow()

	rescan := !s.fixed
	if s.watch != nil {
		ev, err := s.watch.drain()
		if err != nil {
			return journal.NoChange, err
		}
		if !s.network {
			if !ev.any {
				return journal.NoChange, nil
			}
			rescan = rescan && ev.rescan
		}
	}

	state := journal.NoChange
	if rescan {
		changed, err := s.rescan()
		if err != nil {
			return journal.NoChange, err
		}
		if changed {
			state = journal.Invalidated
		}
	}

	appended, replaced, err := s.refreshFiles()
	if err != nil {
		return state, err
	}
	switch {
	case replaced:
		state = journal.Invalidated
	case appended && state == journal.NoChange:
		state = journal.Appended
	}
	if state != journal.NoChange {
		if err := s.rebuild(); err != nil {
			return state, err
		}
		s.log.Debug("journal changed", "state", state, "files", len(s.files), "entries", len(s.order))
	}
	return state, nil
}

// refresh picks up entries appended to the open files.
func (s *store) refresh() (bool, error) {
	appended, replaced, err := s.refreshFiles()
	if err != nil || !(appended || replaced) {
		return false, err
	}
	return true, s.rebuild()
}

// refreshFiles re-reads every header. replaced is set when a file was
// swapped for a different one at the same path.
func (s *store) refreshFiles() (appended, replaced bool, err error) {
	for _, jf := range s.files {
		before := jf.fileID
		changed, err := jf.r.Refresh()
		if err != nil {
			return appended, replaced, wrapFileError(err)
		}
		if !changed {
			continue
		}
		if err := jf.load(); err != nil {
			return appended, replaced, err
		}
		if jf.fileID != before {
			replaced = true
		} else {
			appended = true
		}
	}
	return appended, replaced, nil
}

// rescan brings the file set in line with the directories.
func (s *store) rescan() (bool, error) {
	paths, err := s.discover()
	if err != nil {
		return false, err
	}
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}

	changed := false
	kept := s.files[:0]
	have := make(map[string]bool, len(s.files))
	for _, jf := range s.files {
		if want[jf.path] {
			kept = append(kept, jf)
			have[jf.path] = true
			continue
		}
		changed = true
		if err := jf.r.Close(); err != nil {
			s.log.Debug("closing removed journal file", "path", jf.path, "error", err)
		}
	}
	s.files = kept

	var added []string
	for _, p := range paths {
		if !have[p] {
			added = append(added, p)
		}
	}
	if len(added) > 0 {
		files, err := openPaths(context.Background(), s.log, added, false)
		if err != nil {
			return changed, err
		}
		s.files = append(s.files, files...)
		changed = changed || len(files) > 0
	}
	if changed {
		s.addWatches()
	}
	return changed, nil
}

func (s *store) Wait(timeout time.Duration) (journal.ChangeState, error) {
	if s.watch == nil {
		return s.pollWait(timeout)
	}
	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	if deadline, ok, _ := s.Timeout(); ok {
		left := 0
		if now := journal.MonotonicNow(); deadline > now {
			left = int((deadline - now + 999) / 1000)
		}
		if ms < 0 || left < ms {
			ms = left
		}
	}
	if err := s.watch.wait(ms); err != nil {
		return journal.NoChange, err
	}
	return s.Process()
}

// pollWait checks the files every fallbackInterval until something
// changes or timeout passes.
func (s *store) pollWait(timeout time.Duration) (journal.ChangeState, error) {
	deadline := time.Now().Add(timeout)
	for {
		state, err := s.Process()
		if err != nil || state != journal.NoChange {
			return state, err
		}
		wait := fallbackInterval
		if timeout >= 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return journal.NoChange, nil
			}
			wait = min(wait, left)
		}
		time.Sleep(wait)
	}
}
