package journal

import (
	"errors"
	"fmt"
	"syscall"
)

// Error kinds. Every error returned by a Reader matches exactly one of
// ErrInvalidArgument, ErrNotFound, ErrOutOfMemory, ErrIO, ErrUnsupported or
// ErrClosed with errors.Is; the remaining sentinels refine those kinds.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrIO              = errors.New("i/o error")
	ErrUnsupported     = fmt.Errorf("journal: %w", errors.ErrUnsupported)
	ErrClosed          = errors.New("journal reader is closed")

	// ErrNoEntry is returned when an operation needs a current entry and the
	// cursor has not landed on one.
	ErrNoEntry = fmt.Errorf("no current entry: %w", ErrNotFound)

	// ErrNoMessageID is returned by Catalog when the entry has no MESSAGE_ID.
	ErrNoMessageID = fmt.Errorf("entry has no MESSAGE_ID: %w", ErrNotFound)

	// ErrCatalogKeyNotFound is matched by *CatalogKeyError.
	ErrCatalogKeyNotFound = fmt.Errorf("catalog entry not found: %w", ErrNotFound)

	// ErrProtocol marks a data record without the '=' delimiter. It comes
	// wrapped in an *IOError with errno EUCLEAN.
	ErrProtocol = errors.New("malformed journal field")
)

// IOError reports a failed file or descriptor operation. It matches ErrIO
// and, through Err, the originating error.
type IOError struct {
	Op    string
	Errno syscall.Errno
	Err   error
}

func (e *IOError) Error() string {
	switch {
	case e.Err != nil && e.Errno != 0:
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, errnoName(e.Errno))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Errno != 0:
		return fmt.Sprintf("%s: %v", e.Op, e.Errno)
	}
	return e.Op + ": i/o error"
}

func (e *IOError) Unwrap() []error {
	errs := []error{ErrIO}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Errno != 0 {
		errs = append(errs, e.Errno)
	}
	return errs
}

// CatalogKeyError is returned by Catalog when the entry's MESSAGE_ID has no
// catalog text.
type CatalogKeyError struct {
	MessageID string
}

func (e *CatalogKeyError) Error() string {
	return "no catalog entry for MESSAGE_ID=" + e.MessageID
}

func (e *CatalogKeyError) Unwrap() error {
	return ErrCatalogKeyNotFound
}

func errnoName(e syscall.Errno) string {
	switch e {
	case errnoUClean:
		return "EUCLEAN"
	case syscall.EIO:
		return "EIO"
	case syscall.EBADF:
		return "EBADF"
	}
	return fmt.Sprintf("errno %d", int(e))
}

// errnoUClean is Linux's EUCLEAN ("structure needs cleaning"), which
// libsystemd returns for malformed records.
const errnoUClean = syscall.Errno(117)

var kinds = []error{
	ErrInvalidArgument,
	ErrNotFound,
	ErrOutOfMemory,
	ErrIO,
	ErrUnsupported,
	ErrClosed,
}

// translate maps an engine error onto the Reader's error kinds and prefixes
// it with op.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if errors.Is(err, errors.ErrUnsupported) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnsupported, err)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EINVAL:
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidArgument, err)
		case syscall.ENOENT:
			return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		case syscall.ENOMEM:
			return fmt.Errorf("%s: %w: %w", op, ErrOutOfMemory, err)
		case syscall.ENOSYS, syscall.EOPNOTSUPP:
			return fmt.Errorf("%s: %w: %w", op, ErrUnsupported, err)
		}
		return &IOError{Op: op, Errno: errno, Err: err}
	}
	return &IOError{Op: op, Errno: syscall.EIO, Err: err}
}
