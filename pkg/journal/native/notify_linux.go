package native

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	dirMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO |
		unix.IN_MODIFY | unix.IN_ATTRIB | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF | unix.IN_ONLYDIR
	fileMask = unix.IN_MODIFY | unix.IN_ATTRIB | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF

	// Events that change which files exist.
	rescanMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO |
		unix.IN_DELETE_SELF | unix.IN_MOVE_SELF | unix.IN_Q_OVERFLOW
)

// watcher is a non-blocking inotify descriptor.
type watcher struct {
	fd    int
	paths map[string]int
}

type events struct {
	any    bool
	rescan bool
}

func newWatcher() (*watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}
	return &watcher{fd: fd, paths: make(map[string]int)}, nil
}

func (w *watcher) addDir(path string) error {
	return w.add(path, dirMask)
}

func (w *watcher) addFile(path string) error {
	return w.add(path, fileMask)
}

func (w *watcher) add(path string, mask uint32) error {
	if _, ok := w.paths[path]; ok {
		return nil
	}
	wd, err := unix.InotifyAddWatch(w.fd, path, mask)
	if err != nil {
		return fmt.Errorf("inotify_add_watch %s: %w", path, err)
	}
	w.paths[path] = wd
	return nil
}

// drain reads every queued event without blocking.
func (w *watcher) drain() (events, error) {
	var ev events
	buf := make([]byte, 64*1024)
	for {
		n, err := unix.Read(w.fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return ev, nil
		}
		if err != nil {
			return ev, fmt.Errorf("read inotify: %w", err)
		}
		if n < unix.SizeofInotifyEvent {
			return ev, nil
		}
		for off := 0; off+unix.SizeofInotifyEvent <= n; {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[off]))
			ev.any = true
			if raw.Mask&rescanMask != 0 {
				ev.rescan = true
			}
			if raw.Mask&unix.IN_IGNORED != 0 {
				w.forget(int(raw.Wd))
			}
			off += unix.SizeofInotifyEvent + int(raw.Len)
		}
	}
}

func (w *watcher) forget(wd int) {
	for p, d := range w.paths {
		if d == wd {
			delete(w.paths, p)
		}
	}
}

// wait blocks until the descriptor is readable or ms milliseconds pass;
// -1 waits forever.
func (w *watcher) wait(ms int) error {
	fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll inotify: %w", err)
		}
		return nil
	}
}

func (w *watcher) close() error {
	return unix.Close(w.fd)
}

// Filesystem magic numbers from statfs(2) where inotify only sees local
// changes.
var networkFS = map[uint32]bool{
	0x6969:     true, // NFS
	0x517B:     true, // SMB
	0xFF534D42: true, // CIFS
	0xFE534D42: true, // SMB2
	0x5346414F: true, // AFS
	0x73757245: true, // CODA
	0x564c:     true, // NCP
}

func onNetworkFS(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false
	}
	return networkFS[uint32(st.Type)]
}
