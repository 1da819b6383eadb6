//go:build !unix

package native

import (
	"fmt"
	"os"

	"github.com/mbrock/sdreader/pkg/journal"
)

func dupFile(fd int) (*os.File, error) {
	return nil, fmt.Errorf("open fd %d: %w", fd, journal.ErrUnsupported)
}
