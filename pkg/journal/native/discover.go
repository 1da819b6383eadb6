package native

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mbrock/sdreader/internal/dirs"
	"github.com/mbrock/sdreader/pkg/journal"
)

// roots returns the directories to search, each either a journal root
// holding machine directories or a plain directory of journal files.
func (s *store) roots() (journalRoots, plainDirs []string, err error) {
	req := s.req
	switch req.Mode {
	case journal.ModeDefault, journal.ModeNamespace:
		journalRoots = append(journalRoots, dirs.RuntimeJournalDir())
		if req.Flags&journal.RuntimeOnly == 0 {
			journalRoots = append(journalRoots, dirs.PersistentJournalDir())
		}
		return journalRoots, nil, nil

	case journal.ModeDirectory, journal.ModeDirFD:
		dir := req.Path
		if req.Mode == journal.ModeDirFD {
			dir = fdPath(req.DirFD)
		}
		if req.Flags&journal.OSRoot != 0 {
			rt, pers := dirs.JournalDirs(dir)
			return []string{rt, pers}, nil, nil
		}
		fi, err := os.Stat(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("journal directory: %w", wrapFileError(err))
		}
		if !fi.IsDir() {
			return nil, nil, fmt.Errorf("journal directory %s: %w", dir, journal.ErrInvalidArgument)
		}
		return nil, []string{dir}, nil
	}
	return nil, nil, nil
}

// discover lists the journal files to open, sorted by path.
func (s *store) discover() ([]string, error) {
	journalRoots, plain, err := s.roots()
	if err != nil {
		return nil, err
	}

	var localID string
	if s.req.Flags&journal.LocalOnly != 0 {
		mid, err := journal.MachineID()
		if err != nil {
			return nil, fmt.Errorf("local only: %w", err)
		}
		localID = mid.String()
	}

	var paths []string
	for _, root := range journalRoots {
		found, err := s.scanRoot(root, localID)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	for _, dir := range plain {
		found, err := s.scanRoot(dir, "")
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// scanRoot collects journal files in root and in its machine directories.
// A missing root is not an error.
func (s *store) scanRoot(root, localID string) ([]string, error) {
	ents, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	var paths []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() {
			if !s.wantDir(name, localID) {
				continue
			}
			sub, err := s.scanDir(filepath.Join(root, name))
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
			continue
		}
		if s.req.Mode == journal.ModeNamespace {
			continue
		}
		if s.wantFile(name) {
			paths = append(paths, filepath.Join(root, name))
		}
	}
	return paths, nil
}

func (s *store) scanDir(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var paths []string
	for _, e := range ents {
		if !e.IsDir() && s.wantFile(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

// wantDir decides on a machine directory: "<machine-id>" holds the default
// namespace, "<machine-id>.<namespace>" another one.
func (s *store) wantDir(name, localID string) bool {
	mid, ns, hasNS := strings.Cut(name, ".")
	if !isMachineID(mid) {
		return false
	}
	if localID != "" && mid != localID {
		return false
	}
	if s.req.Mode == journal.ModeNamespace {
		if s.req.Namespace == "*" {
			return true
		}
		return hasNS && ns == s.req.Namespace
	}
	return !hasNS
}

// wantFile applies the file name rules and the System/CurrentUser flags.
func (s *store) wantFile(name string) bool {
	if !strings.HasSuffix(name, ".journal") && !strings.HasSuffix(name, ".journal~") {
		return false
	}
	system := s.req.Flags&journal.System != 0
	user := s.req.Flags&journal.CurrentUser != 0
	if !system && !user {
		return true
	}
	if system && (name == "system.journal" || strings.HasPrefix(name, "system@")) {
		return true
	}
	if user {
		prefix := "user-" + strconv.Itoa(os.Getuid())
		if name == prefix+".journal" || strings.HasPrefix(name, prefix+"@") {
			return true
		}
	}
	return false
}

func isMachineID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// watchDirs lists the directories whose contents decide the file set.
func (s *store) watchDirs() []string {
	journalRoots, plain, err := s.roots()
	if err != nil {
		return nil
	}
	var out []string
	for _, root := range append(journalRoots, plain...) {
		out = appendIfExists(out, root)
		ents, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range ents {
			if e.IsDir() && isMachineID(strings.SplitN(e.Name(), ".", 2)[0]) {
				out = append(out, filepath.Join(root, e.Name()))
			}
		}
	}
	return dedupe(out)
}

func appendIfExists(out []string, dir string) []string {
	if _, err := os.Stat(dir); err == nil {
		out = append(out, dir)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func fdPath(fd int) string {
	return "/proc/self/fd/" + strconv.Itoa(fd)
}
