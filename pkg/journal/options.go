package journal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mbrock/sdreader/pkg/catalog"
)

// OpenFlags restricts which journal files are opened.
type OpenFlags int

const (
	// LocalOnly opens only journals of the local machine.
	LocalOnly OpenFlags = 1 << iota
	// RuntimeOnly opens only volatile journals in /run.
	RuntimeOnly
	// System opens only system service and kernel journals.
	System
	// CurrentUser opens only journals of the current user.
	CurrentUser
	// OSRoot treats Path or DirFD as the root of an OS tree.
	OSRoot

	// SystemOnly is the old name of System.
	SystemOnly = System

	allFlags = LocalOnly | RuntimeOnly | System | CurrentUser | OSRoot

	// DefaultFlags apply when Options.FlagsSet is false in the default mode.
	DefaultFlags = LocalOnly
)

func (f OpenFlags) String() string {
	names := []string{"local_only", "runtime_only", "system", "current_user", "os_root"}
	s := ""
	for i, n := range names {
		if f&(1<<i) != 0 {
			if s != "" {
				s += "|"
			}
			s += n
		}
	}
	if rest := f &^ allFlags; rest != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("%#x", int(rest))
	}
	if s == "" {
		return "0"
	}
	return s
}

// DefaultEngine is used when neither Options.Engine nor $SDREADER_ENGINE
// name one. "auto" asks DetectEngine.
const DefaultEngine = "native"

// Options configures Open. At most one of Path, DirFD, Files, FileFDs and
// Namespace may be set; none means the local system journal.
type Options struct {
	Flags OpenFlags
	// FlagsSet distinguishes Flags=0 ("all machines") from "use DefaultFlags".
	FlagsSet bool

	Path      string
	DirFD     int // -1 or 0 when unset; use NoFD to be explicit
	Files     []string
	FileFDs   []int
	Namespace string

	// Engine names a registered engine, or "auto".
	Engine string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Catalog resolves MESSAGE_IDs; defaults to catalog.Default().
	Catalog *catalog.Catalog
}

// NoFD marks Options.DirFD as unset.
const NoFD = -1

func withDefaults(opts Options) Options {
	if opts.Engine == "" {
		opts.Engine = os.Getenv("SDREADER_ENGINE")
	}
	if opts.Engine == "" {
		opts.Engine = DefaultEngine
	}
	if opts.Engine == "auto" {
		opts.Engine = DetectEngine()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DirFD == 0 {
		// fd 0 is stdin, never a journal directory.
		opts.DirFD = NoFD
	}
	return opts
}

// request validates opts and turns them into an OpenRequest.
func (opts Options) request() (OpenRequest, error) {
	req := OpenRequest{
		Flags:     opts.Flags,
		Path:      opts.Path,
		DirFD:     opts.DirFD,
		Files:     opts.Files,
		FileFDs:   opts.FileFDs,
		Namespace: opts.Namespace,
		Logger:    opts.Logger,
	}

	sources := 0
	if opts.Path != "" {
		sources++
		req.Mode = ModeDirectory
	}
	if opts.DirFD >= 0 {
		sources++
		req.Mode = ModeDirFD
	}
	if len(opts.Files) > 0 {
		sources++
		req.Mode = ModeFiles
	}
	if len(opts.FileFDs) > 0 {
		sources++
		req.Mode = ModeFileFDs
	}
	if opts.Namespace != "" {
		sources++
		req.Mode = ModeNamespace
	}
	if sources > 1 {
		return req, fmt.Errorf("only one of path, directory fd, files, file fds and namespace may be given: %w", ErrInvalidArgument)
	}

	if opts.Flags&^allFlags != 0 {
		return req, fmt.Errorf("unknown open flags %s: %w", opts.Flags, ErrInvalidArgument)
	}

	switch req.Mode {
	case ModeDefault, ModeNamespace:
		if opts.Flags&OSRoot != 0 {
			return req, fmt.Errorf("os_root needs a path or directory fd: %w", ErrInvalidArgument)
		}
		if !opts.FlagsSet {
			req.Flags = DefaultFlags
		}
	case ModeDirectory, ModeDirFD:
		if opts.Flags&^(OSRoot|System|CurrentUser) != 0 {
			return req, fmt.Errorf("flags %s not allowed with a directory: %w", opts.Flags, ErrInvalidArgument)
		}
	case ModeFiles, ModeFileFDs:
		if opts.Flags != 0 {
			return req, fmt.Errorf("flags %s not allowed with files: %w", opts.Flags, ErrInvalidArgument)
		}
		for _, fd := range opts.FileFDs {
			if fd < 0 {
				return req, fmt.Errorf("file descriptor %d: %w", fd, ErrInvalidArgument)
			}
		}
	}
	return req, nil
}
