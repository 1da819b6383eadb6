//go:build linux && cgo

package libsystemd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"

	"github.com/mbrock/sdreader/pkg/journal"
)

func init() {
	journal.Register(Name, journal.Capabilities{QueryUnique: true}, Open)
}

// store implements journal.Store over an sdjournal.Journal.
type store struct {
	j   *sdjournal.Journal
	req journal.OpenRequest
	log *slog.Logger

	threshold int
}

var _ journal.Store = (*store)(nil)

// Open opens the journal named by req with libsystemd.
func Open(ctx context.Context, req journal.OpenRequest) (journal.Store, error) {
	j, err := open(req)
	if err != nil {
		return nil, err
	}
	s := &store{j: j, req: req, log: req.Logger, threshold: 64 * 1024}
	if s.log == nil {
		s.log = slog.Default()
	}
	if err := j.SetDataThreshold(uint64(s.threshold)); err != nil {
		j.Close()
		return nil, recoverErrno(err)
	}
	return s, nil
}

func open(req journal.OpenRequest) (*sdjournal.Journal, error) {
	var (
		j   *sdjournal.Journal
		err error
	)
	switch req.Mode {
	case journal.ModeDefault:
		// sdjournal opens with SD_JOURNAL_LOCAL_ONLY and nothing else.
		if req.Flags != journal.LocalOnly {
			return nil, fmt.Errorf("open flags %s: %w", req.Flags, journal.ErrUnsupported)
		}
		j, err = sdjournal.NewJournal()
	case journal.ModeDirectory:
		if req.Flags != 0 {
			return nil, fmt.Errorf("open flags %s: %w", req.Flags, journal.ErrUnsupported)
		}
		j, err = sdjournal.NewJournalFromDir(req.Path)
	case journal.ModeFiles:
		j, err = sdjournal.NewJournalFromFiles(req.Files...)
	default:
		return nil, fmt.Errorf("open by %s: %w", req.Mode, journal.ErrUnsupported)
	}
	if err != nil {
		return nil, recoverErrno(err)
	}
	return j, nil
}

func (s *store) Close() error {
	return recoverErrno(s.j.Close())
}

func (s *store) Next(skip uint64) (uint64, error) {
	n, err := s.j.NextSkip(skip)
	return n, recoverErrno(err)
}

func (s *store) Previous(skip uint64) (uint64, error) {
	n, err := s.j.PreviousSkip(skip)
	return n, recoverErrno(err)
}

func (s *store) SeekHead() error {
	return recoverErrno(s.j.SeekHead())
}

func (s *store) SeekTail() error {
	return recoverErrno(s.j.SeekTail())
}

func (s *store) SeekRealtime(usec uint64) error {
	return recoverErrno(s.j.SeekRealtimeUsec(usec))
}

func (s *store) SeekMonotonic(journal.ID128, uint64) error {
	return journal.ErrUnsupported
}

func (s *store) SeekCursor(cursor string) error {
	return recoverErrno(s.j.SeekCursor(cursor))
}

func (s *store) Cursor() (string, error) {
	c, err := s.j.GetCursor()
	return c, s.entryErr(err)
}

// TestCursor reports a mismatch as an error without an errno.
func (s *store) TestCursor(cursor string) (bool, error) {
	err := s.j.TestCursor(cursor)
	if err == nil {
		return true, nil
	}
	if _, ok := errnoOf(err); ok {
		return false, s.entryErr(err)
	}
	return false, nil
}

// SetMatches replays the filter. sd_journal_add_match ORs terms of one
// field itself, so the groups map one to one.
func (s *store) SetMatches(f *journal.Filter) error {
	s.j.FlushMatches()
	for i, or := range f.Groups() {
		if i > 0 {
			if err := s.j.AddConjunction(); err != nil {
				return recoverErrno(err)
			}
		}
		for k, and := range or {
			if k > 0 {
				if err := s.j.AddDisjunction(); err != nil {
					return recoverErrno(err)
				}
			}
			for _, term := range and {
				if err := s.j.AddMatch(string(term)); err != nil {
					return recoverErrno(err)
				}
			}
		}
	}
	return nil
}

func (s *store) Data(field string) ([]byte, error) {
	b, err := s.j.GetDataBytes(field)
	if err != nil {
		return nil, s.entryErr(err)
	}
	return b, nil
}

// EachData goes through sd_journal_get_entry's map, so a repeated field
// yields only one of its values.
func (s *store) EachData(fn func(record []byte) error) error {
	e, err := s.j.GetEntry()
	if err != nil {
		return s.entryErr(err)
	}
	for k, v := range e.Fields {
		if strings.HasPrefix(k, "__") {
			continue
		}
		if err := fn([]byte(k + "=" + v)); err != nil {
			return err
		}
	}
	return nil
}

func (s *store) Realtime() (uint64, error) {
	us, err := s.j.GetRealtimeUsec()
	return us, s.entryErr(err)
}

// Monotonic takes the boot id from the entry's _BOOT_ID field, as sdjournal
// drops the one sd_journal_get_monotonic_usec returns.
func (s *store) Monotonic() (uint64, journal.ID128, error) {
	us, err := s.j.GetMonotonicUsec()
	if err != nil {
		return 0, journal.ID128{}, s.entryErr(err)
	}
	var boot journal.ID128
	if v, err := s.j.GetDataValue("_BOOT_ID"); err == nil {
		boot, _ = journal.ParseID128(v)
	}
	return us, boot, nil
}

func (s *store) DataThreshold() (int, error) {
	return s.threshold, nil
}

func (s *store) SetDataThreshold(n int) error {
	if err := s.j.SetDataThreshold(uint64(n)); err != nil {
		return recoverErrno(err)
	}
	s.threshold = n
	return nil
}

func (s *store) Fd() (int, error) {
	return -1, journal.ErrUnsupported
}

func (s *store) Events() (int16, error) {
	return 0x1, nil
}

func (s *store) Timeout() (uint64, bool, error) {
	return 0, false, journal.ErrUnsupported
}

// Process is sd_journal_wait with a zero timeout, which processes pending
// notifications like sd_journal_process.
func (s *store) Process() (journal.ChangeState, error) {
	return changeState(s.j.Wait(0))
}

func (s *store) Wait(timeout time.Duration) (journal.ChangeState, error) {
	if timeout < 0 {
		timeout = sdjournal.IndefiniteWait
	}
	return changeState(s.j.Wait(timeout))
}

func changeState(r int) (journal.ChangeState, error) {
	switch r {
	case sdjournal.SD_JOURNAL_NOP:
		return journal.NoChange, nil
	case sdjournal.SD_JOURNAL_APPEND:
		return journal.Appended, nil
	case sdjournal.SD_JOURNAL_INVALIDATE:
		return journal.Invalidated, nil
	}
	if r < 0 {
		return journal.NoChange, syscall.Errno(-r)
	}
	return journal.NoChange, nil
}

func (s *store) ReliableFD() (bool, error) {
	return false, nil
}

func (s *store) Unique(field string, fn func(record []byte) error) error {
	values, err := s.j.GetUniqueValues(field)
	if err != nil {
		return recoverErrno(err)
	}
	for _, v := range values {
		if err := fn([]byte(field + "=" + v)); err != nil {
			return err
		}
	}
	return nil
}

func (s *store) Fields(func(string) error) error {
	return journal.ErrUnsupported
}

func (s *store) Usage() (uint64, error) {
	n, err := s.j.GetUsage()
	return n, recoverErrno(err)
}

// Cutoff reads the first and last entry through a second handle so the
// position of this one is kept.
func (s *store) Cutoff() (start, end uint64, err error) {
	j, err := open(s.req)
	if err != nil {
		return 0, 0, err
	}
	defer j.Close()

	edge := func(seek func() error, step func() (uint64, error)) (uint64, error) {
		if err := seek(); err != nil {
			return 0, recoverErrno(err)
		}
		n, err := step()
		if err != nil {
			return 0, recoverErrno(err)
		}
		if n == 0 {
			return 0, fmt.Errorf("journal has no entries: %w", journal.ErrNotFound)
		}
		us, err := j.GetRealtimeUsec()
		return us, recoverErrno(err)
	}
	if start, err = edge(j.SeekHead, j.Next); err != nil {
		return 0, 0, err
	}
	if end, err = edge(j.SeekTail, j.Previous); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (s *store) HasRuntimeFiles() (bool, error) {
	return false, journal.ErrUnsupported
}

func (s *store) HasPersistentFiles() (bool, error) {
	return false, journal.ErrUnsupported
}

// entryErr maps the EADDRNOTAVAIL libsystemd returns before the first step
// onto ErrNoEntry.
func (s *store) entryErr(err error) error {
	if err == nil {
		return nil
	}
	err = recoverErrno(err)
	if errors.Is(err, syscall.EADDRNOTAVAIL) {
		return fmt.Errorf("%w: %w", journal.ErrNoEntry, err)
	}
	return err
}

// sdjournal reports failures as formatted strings ending in the errno,
// either as text or as a number. recoverErrno makes that errno visible to
// errors.Is and errors.As.
func recoverErrno(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := errnoOf(err); ok {
		return fmt.Errorf("%w: %w", errno, err)
	}
	return err
}

var knownErrnos = []syscall.Errno{
	syscall.EINVAL, syscall.ENOENT, syscall.ENOMEM, syscall.EIO, syscall.EBADF,
	syscall.EADDRNOTAVAIL, syscall.ENOSYS, syscall.EOPNOTSUPP, syscall.EPROTONOSUPPORT,
	syscall.EBADMSG, syscall.ENODATA, syscall.E2BIG, syscall.EMFILE, syscall.EACCES,
	syscall.EPERM, syscall.ENOTDIR, syscall.EUCLEAN,
}

func errnoOf(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	msg := err.Error()
	for _, e := range knownErrnos {
		if strings.HasSuffix(msg, e.Error()) {
			return e, true
		}
	}
	if i := strings.LastIndexAny(msg, " :"); i >= 0 {
		if n, perr := strconv.Atoi(msg[i+1:]); perr == nil && n > 0 {
			return syscall.Errno(n), true
		}
	}
	return 0, false
}
