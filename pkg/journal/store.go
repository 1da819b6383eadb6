package journal

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// ChangeState is the result of Process and Wait.
type ChangeState int

// The values match SD_JOURNAL_NOP, SD_JOURNAL_APPEND and SD_JOURNAL_INVALIDATE.
const (
	NoChange    ChangeState = 0
	Appended    ChangeState = 1
	Invalidated ChangeState = 2
)

func (s ChangeState) String() string {
	switch s {
	case NoChange:
		return "nop"
	case Appended:
		return "append"
	case Invalidated:
		return "invalidate"
	}
	return "unknown"
}

// Store is an open journal as provided by an engine. Stores are driven by
// a single Reader and need no locking.
//
// Errors matching ErrUnsupported mark operations the engine cannot do.
// Data and EachData deal in raw NAME=VALUE records.
type Store interface {
	Close() error

	// Next and Previous step over up to skip entries that pass the current
	// filter and report how many were traversed.
	Next(skip uint64) (uint64, error)
	Previous(skip uint64) (uint64, error)

	SeekHead() error
	SeekTail() error
	SeekRealtime(usec uint64) error
	SeekMonotonic(boot ID128, usec uint64) error
	SeekCursor(cursor string) error
	Cursor() (string, error)
	TestCursor(cursor string) (bool, error)

	// SetMatches replaces the filter. The position is kept.
	SetMatches(f *Filter) error

	Data(field string) ([]byte, error)
	EachData(fn func(record []byte) error) error
	Realtime() (uint64, error)
	Monotonic() (uint64, ID128, error)
	DataThreshold() (int, error)
	SetDataThreshold(n int) error

	Fd() (int, error)
	Events() (int16, error)
	Timeout() (usec uint64, ok bool, err error)
	Process() (ChangeState, error)
	Wait(timeout time.Duration) (ChangeState, error)
	ReliableFD() (bool, error)

	Unique(field string, fn func(record []byte) error) error
	Fields(fn func(name string) error) error
	Usage() (uint64, error)
	Cutoff() (start, end uint64, err error)
	HasRuntimeFiles() (bool, error)
	HasPersistentFiles() (bool, error)
}

// OpenMode says which source an OpenRequest names.
type OpenMode int

const (
	ModeDefault OpenMode = iota
	ModeDirectory
	ModeDirFD
	ModeFiles
	ModeFileFDs
	ModeNamespace
)

func (m OpenMode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeDirectory:
		return "directory"
	case ModeDirFD:
		return "dirfd"
	case ModeFiles:
		return "files"
	case ModeFileFDs:
		return "filefds"
	case ModeNamespace:
		return "namespace"
	}
	return "unknown"
}

// OpenRequest is what an engine receives from Open, already validated.
type OpenRequest struct {
	Mode      OpenMode
	Flags     OpenFlags
	Path      string
	DirFD     int
	Files     []string
	FileFDs   []int
	Namespace string
	Logger    *slog.Logger
}

// Capabilities lists what an engine build can do beyond the basics.
type Capabilities struct {
	DirFD           bool
	FileFDs         bool
	Namespaces      bool
	SeekMonotonic   bool
	EnumerateFields bool
	QueryUnique     bool
	PollFD          bool
	ExactCursorSeek bool
}

// Opener opens a Store for req.
type Opener func(ctx context.Context, req OpenRequest) (Store, error)

type engine struct {
	open Opener
	caps Capabilities
}

var engines = map[string]engine{}

// Register makes an engine available to Open.
// Implementations should call this from init().
func Register(name string, caps Capabilities, open Opener) {
	if name == "" {
		panic("journal: register with empty engine name")
	}
	if open == nil {
		panic("journal: register with nil opener")
	}
	if _, exists := engines[name]; exists {
		panic("journal: duplicate register for engine " + name)
	}
	engines[name] = engine{open: open, caps: caps}
}

// capabilityTable is built once, after every init() has registered.
var capabilityTable = sync.OnceValue(func() map[string]Capabilities {
	t := make(map[string]Capabilities, len(engines))
	for name, e := range engines {
		t[name] = e.caps
	}
	return t
})

// Engines returns the names of the registered engines, sorted.
func Engines() []string {
	return slices.Sorted(maps.Keys(capabilityTable()))
}

// EngineCapabilities returns the capabilities of a registered engine.
func EngineCapabilities(name string) (Capabilities, bool) {
	c, ok := capabilityTable()[name]
	return c, ok
}
