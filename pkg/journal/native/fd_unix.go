//go:build unix

package native

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// dupFile wraps a duplicate of fd so closing it leaves fd open.
func dupFile(fd int) (*os.File, error) {
	nfd, err := unix.Dup(fd)
	if err != nil {
		return nil, fmt.Errorf("dup fd %d: %w", fd, err)
	}
	unix.CloseOnExec(nfd)
	return os.NewFile(uintptr(nfd), fdPath(fd)), nil
}
