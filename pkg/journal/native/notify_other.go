//go:build !linux

package native

import "github.com/mbrock/sdreader/pkg/journal"

// watcher has no implementation here; the store polls instead.
type watcher struct {
	fd int
}

type events struct {
	any    bool
	rescan bool
}

func newWatcher() (*watcher, error) {
	return nil, journal.ErrUnsupported
}

func (w *watcher) addDir(string) error { return nil }
func (w *watcher) addFile(string) error { return nil }
func (w *watcher) drain() (events, error) { return events{}, nil }
func (w *watcher) wait(int) error { return nil }
func (w *watcher) close() error { return nil }
func onNetworkFS(string) bool { return false }
