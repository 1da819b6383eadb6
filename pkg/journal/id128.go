package journal

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mbrock/sdreader/pkg/journalfile"
)

// ID128 is a 128-bit id such as a boot id, machine id or message id.
type ID128 = journalfile.ID128

// ParseID128 accepts 32 hex digits or the UUID form.
func ParseID128(s string) (ID128, error) {
	t := strings.TrimSpace(s)
	if len(t) != 32 && len(t) != 36 {
		return ID128{}, fmt.Errorf("id128 %q: %w", s, ErrInvalidArgument)
	}
	u, err := uuid.Parse(t)
	if err != nil {
		return ID128{}, fmt.Errorf("id128 %q: %w", s, ErrInvalidArgument)
	}
	return ID128(u), nil
}

// UUID returns id in its RFC 4122 form.
func UUID(id ID128) uuid.UUID {
	return uuid.UUID(id)
}

// These paths are variables so tests can point them at fixtures.
var (
	bootIDPath    = "/proc/sys/kernel/random/boot_id"
	machineIDPath = "/etc/machine-id"
)

var (
	bootIDOnce    sync.Once
	bootID        ID128
	bootIDErr     error
	machineIDOnce sync.Once
	machineID     ID128
	machineIDErr  error
)

// BootID returns the id of the running boot.
func BootID() (ID128, error) {
	bootIDOnce.Do(func() {
		bootID, bootIDErr = readID128(bootIDPath)
	})
	return bootID, bootIDErr
}

// MachineID returns the local machine id.
func MachineID() (ID128, error) {
	machineIDOnce.Do(func() {
		machineID, machineIDErr = readID128(machineIDPath)
	})
	return machineID, machineIDErr
}

func readID128(path string) (ID128, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ID128{}, translate("read "+path, err)
	}
	id, err := ParseID128(string(b))
	if err != nil {
		return ID128{}, fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}
