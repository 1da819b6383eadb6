// Package native is a pure-Go journal engine. It reads *.journal files
// with pkg/journalfile, merges their entries in the order libsystemd
// would, and watches for changes with inotify where available.
//
// It registers itself as "native" with package journal.
package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"slices"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/mbrock/sdreader/internal/dirs"
	"github.com/mbrock/sdreader/pkg/journal"
	"github.com/mbrock/sdreader/pkg/journalfile"
)

// Name is the engine name to put in journal.Options.Engine.
const Name = "native"

// DefaultDataThreshold matches libsystemd's default.
const DefaultDataThreshold = 64 * 1024

func init() {
	journal.Register(Name, journal.Capabilities{
		DirFD:           true,
		FileFDs:         true,
		Namespaces:      true,
		SeekMonotonic:   true,
		EnumerateFields: true,
		QueryUnique:     true,
		PollFD:          true,
		ExactCursorSeek: true,
	}, Open)
}

// jfile is one open journal file and the entries read from it so far.
type jfile struct {
	path    string
	r       *journalfile.Reader
	fileID  journalfile.ID128
	metas   []journalfile.EntryMeta
	runtime bool

	// Data offsets of match terms; 0 means the file lacks the term.
	terms map[string]uint64
}

// store implements journal.Store.
type store struct {
	req journal.OpenRequest
	log *slog.Logger

	files []*jfile
	// fixed is set when the file set cannot change (files and fds modes).
	fixed bool

	filter *journal.Filter

	order []pos
	nav   navState

	threshold int

	watch       *watcher
	network     bool
	lastProcess uint64
}

var _ journal.Store = (*store)(nil)

// Open opens the journal files named by req.
func Open(ctx context.Context, req journal.OpenRequest) (journal.Store, error) {
	s := &store{
		req:       req,
		log:       req.Logger,
		threshold: DefaultDataThreshold,
		filter:    &journal.Filter{},
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	var err error
	switch req.Mode {
	case journal.ModeFiles:
		s.fixed = true
		s.files, err = openPaths(ctx, s.log, req.Files, true)
	case journal.ModeFileFDs:
		s.fixed = true
		s.files, err = openFDs(req.FileFDs)
	default:
		var paths []string
		if paths, err = s.discover(); err == nil {
			s.files, err = openPaths(ctx, s.log, paths, false)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := s.rebuild(); err != nil {
		closeFiles(s.files)
		return nil, err
	}
	s.startWatch()
	s.lastProcess = journal.MonotonicNow()

	s.log.Debug("native journal open", "mode", req.Mode, "files", len(s.files), "entries", len(s.order))
	return s, nil
}

// openPaths opens journal files in parallel. With strict unset, files that
// fail to open are skipped with a warning, as journald may be rotating them.
func openPaths(ctx context.Context, log *slog.Logger, paths []string, strict bool) ([]*jfile, error) {
	files := make([]*jfile, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			jf, err := openFile(p)
			if err != nil {
				if strict {
					return err
				}
				log.Warn("skipping journal file", "path", p, "error", err)
				return nil
			}
			files[i] = jf
			return nil
		})
	}
	err := g.Wait()
	files = slices.DeleteFunc(files, func(jf *jfile) bool { return jf == nil })
	if err != nil {
		closeFiles(files)
		return nil, err
	}
	return files, nil
}

func openFile(path string) (*jfile, error) {
	r, err := journalfile.OpenRead(path)
	if err != nil {
		return nil, wrapFileError(err)
	}
	return newJFile(path, r, dirs.IsRuntimePath(path))
}

func newJFile(path string, r *journalfile.Reader, runtime bool) (*jfile, error) {
	jf := &jfile{path: path, r: r, runtime: runtime}
	if err := jf.load(); err != nil {
		r.Close()
		return nil, err
	}
	return jf, nil
}

// openFDs opens files from descriptors. The caller keeps its descriptors;
// we read from duplicates.
func openFDs(fds []int) ([]*jfile, error) {
	var files []*jfile
	for _, fd := range fds {
		f, err := dupFile(fd)
		if err != nil {
			closeFiles(files)
			return nil, err
		}
		r, err := journalfile.NewReader(f)
		if err != nil {
			f.Close()
			closeFiles(files)
			return nil, wrapFileError(err)
		}
		jf, err := newJFile(f.Name(), r, false)
		if err != nil {
			closeFiles(files)
			return nil, wrapFileError(err)
		}
		files = append(files, jf)
	}
	return files, nil
}

// wrapFileError gives file format errors a journal error kind.
func wrapFileError(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", journal.ErrNotFound, err)
	case errors.Is(err, journalfile.ErrUnsupportedFeature),
		errors.Is(err, journalfile.ErrUnsupportedCompression):
		return fmt.Errorf("%w: %w", journal.ErrUnsupported, err)
	}
	return err
}

// load reads the entries appended since the last call.
func (jf *jfile) load() error {
	h := jf.r.Header()
	if h.FileID != jf.fileID {
		jf.fileID = h.FileID
		jf.metas = nil
		jf.terms = nil
	}
	offsets, err := jf.r.EntryOffsets()
	if err != nil {
		return fmt.Errorf("%s: %w", jf.path, err)
	}
	fresh := offsets[len(jf.metas):]
	for _, off := range fresh {
		m, err := jf.r.EntryMeta(off)
		if err != nil {
			return fmt.Errorf("%s: %w", jf.path, err)
		}
		jf.metas = append(jf.metas, m)
	}
	if len(fresh) > 0 {
		// New entries may carry terms that were missing before.
		maps.DeleteFunc(jf.terms, func(_ string, off uint64) bool { return off == 0 })
	}
	return nil
}

func (jf *jfile) seqnumID() journalfile.ID128 {
	return jf.r.Header().SeqnumID
}

func closeFiles(files []*jfile) error {
	var result *multierror.Error
	for _, jf := range files {
		if err := jf.r.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", jf.path, err))
		}
	}
	return result.ErrorOrNil()
}

func (s *store) Close() error {
	var result *multierror.Error
	if err := closeFiles(s.files); err != nil {
		result = multierror.Append(result, err)
	}
	if s.watch != nil {
		if err := s.watch.close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close inotify: %w", err))
		}
	}
	s.files = nil
	s.order = nil
	return result.ErrorOrNil()
}
