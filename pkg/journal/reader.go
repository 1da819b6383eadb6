// Package journal reads the systemd journal.
//
// A Reader is a session over one open journal: it is restricted with
// matches, moved with Next/Previous and the Seek methods, and reads fields
// of the entry it has landed on. The storage engine behind it is
// pluggable; import github.com/mbrock/sdreader/pkg/journal/all to register
// the built-in ones.
//
//	r, err := journal.Open(ctx, journal.Options{})
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	r.AddMatchField("_SYSTEMD_UNIT", "sshd.service")
//	for {
//		ok, err := r.Next(1)
//		if err != nil || !ok {
//			break
//		}
//		msg, _ := r.Get("MESSAGE")
//		fmt.Printf("%s\n", msg)
//	}
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mbrock/sdreader/pkg/catalog"
)

// Reader is a session over an open journal. It is not safe for concurrent
// use; independent Readers are.
type Reader struct {
	store  Store
	engine string
	caps   Capabilities
	mode   OpenMode
	filter Filter
	closed bool

	log *slog.Logger
	cat *catalog.Catalog
}

// Open opens a journal as described by opts. On error nothing stays open.
func Open(ctx context.Context, opts Options) (*Reader, error) {
	opts = withDefaults(opts)

	req, err := opts.request()
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	e, ok := engines[opts.Engine]
	if !ok {
		return nil, fmt.Errorf("open journal: unknown engine %q (have %v): %w", opts.Engine, Engines(), ErrInvalidArgument)
	}
	caps := capabilityTable()[opts.Engine]
	switch {
	case req.Mode == ModeDirFD && !caps.DirFD,
		req.Mode == ModeFileFDs && !caps.FileFDs,
		req.Mode == ModeNamespace && !caps.Namespaces:
		return nil, fmt.Errorf("open journal: engine %s cannot open by %s: %w", opts.Engine, req.Mode, ErrUnsupported)
	}

	store, err := e.open(ctx, req)
	if err != nil {
		return nil, translate("open journal", err)
	}

	opts.Logger.Debug("journal opened", "engine", opts.Engine, "mode", req.Mode, "flags", req.Flags)

	return &Reader{
		store:  store,
		engine: opts.Engine,
		caps:   caps,
		mode:   req.Mode,
		log:    opts.Logger,
		cat:    opts.Catalog,
	}, nil
}

// With opens a journal, calls fn, and closes the journal again even if fn
// panics. The close error is joined with fn's.
func With(ctx context.Context, opts Options, fn func(*Reader) error) (err error) {
	r, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()
	return fn(r)
}

// Close releases the journal. Calling it again does nothing.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.store.Close()
	r.store = nil
	return translate("close", err)
}

// Closed reports whether Close was called.
func (r *Reader) Closed() bool {
	return r.closed
}

// Engine returns the name of the engine behind r.
func (r *Reader) Engine() string {
	return r.engine
}

// Capabilities returns what the engine behind r supports.
func (r *Reader) Capabilities() Capabilities {
	return r.caps
}

func (r *Reader) check(op string) error {
	if r.closed {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return nil
}

// AddMatch adds a "FIELD=value" term to the filter.
func (r *Reader) AddMatch(term string) error {
	return r.AddMatchBytes([]byte(term))
}

// AddMatchBytes adds a term whose value may be arbitrary bytes.
func (r *Reader) AddMatchBytes(term []byte) error {
	if err := r.check("add match"); err != nil {
		return err
	}
	if err := r.filter.Add(term); err != nil {
		return fmt.Errorf("add match: %w", err)
	}
	return r.applyFilter("add match")
}

// AddMatchField adds the term field=value.
func (r *Reader) AddMatchField(field, value string) error {
	return r.AddMatch(field + "=" + value)
}

// AddDisjunction makes the following terms an alternative to the ones
// added since the last AddDisjunction or AddConjunction.
func (r *Reader) AddDisjunction() error {
	if err := r.check("add disjunction"); err != nil {
		return err
	}
	r.filter.AddDisjunction()
	return nil
}

// AddConjunction makes the following terms a new group that must match in
// addition to everything before.
func (r *Reader) AddConjunction() error {
	if err := r.check("add conjunction"); err != nil {
		return err
	}
	r.filter.AddConjunction()
	return nil
}

// FlushMatches removes all matches.
func (r *Reader) FlushMatches() error {
	if err := r.check("flush matches"); err != nil {
		return err
	}
	r.filter.Flush()
	return r.applyFilter("flush matches")
}

// Filter returns a description of the current matches.
func (r *Reader) Filter() string {
	return r.filter.String()
}

func (r *Reader) applyFilter(op string) error {
	r.log.Debug("journal filter", "filter", r.filter.String())
	return translate(op, r.store.SetMatches(&r.filter))
}

// LogLevel matches entries with PRIORITY at most level (0 emerg .. 7 debug).
func (r *Reader) LogLevel(level int) error {
	if level < 0 || level > 7 {
		return fmt.Errorf("log level %d: %w", level, ErrInvalidArgument)
	}
	for i := 0; i <= level; i++ {
		if err := r.AddMatchField("PRIORITY", strconv.Itoa(i)); err != nil {
			return err
		}
	}
	return nil
}

// ThisBoot matches entries of boot id; the zero id means the running boot.
func (r *Reader) ThisBoot(id ID128) error {
	if id.IsZero() {
		var err error
		if id, err = BootID(); err != nil {
			return fmt.Errorf("this boot: %w", err)
		}
	}
	return r.AddMatchField("_BOOT_ID", id.String())
}

// ThisMachine matches entries of machine id; the zero id means this machine.
func (r *Reader) ThisMachine(id ID128) error {
	if id.IsZero() {
		var err error
		if id, err = MachineID(); err != nil {
			return fmt.Errorf("this machine: %w", err)
		}
	}
	return r.AddMatchField("_MACHINE_ID", id.String())
}

// MessageIDMatch matches entries with the given MESSAGE_ID.
func (r *Reader) MessageIDMatch(id ID128) error {
	return r.AddMatchField("MESSAGE_ID", id.String())
}
