//go:build linux && cgo

package journalfile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
	"golang.org/x/sync/errgroup"
)

// sdCount counts the entries libsystemd sees in path.
func sdCount(path string) (int, error) {
	j, err := sdjournal.NewJournalFromFiles(path)
	if err != nil {
		return 0, err
	}
	defer j.Close()

	n := 0
	for {
		c, err := j.Next()
		if err != nil {
			return n, err
		}
		if c == 0 {
			return n, nil
		}
		n++
	}
}

func appendNumbered(jf *File, i int) error {
	if err := jf.AppendEntry([]Field{F("MESSAGE", fmt.Sprintf("entry-%d", i)), F("N", fmt.Sprint(i))}); err != nil {
		return fmt.Errorf("append %d: %w", i, err)
	}
	if err := jf.Sync(); err != nil {
		return fmt.Errorf("sync %d: %w", i, err)
	}
	return nil
}

// After every sync, libsystemd and Reader agree on the entry count.
func TestSyncedFileReadsBackEverywhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synced.journal")
	jf, err := Create(path, ID128{0x11}, ID128{0x22})
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	defer jf.Close()

	r, err := OpenRead(path)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	for i := range 100 {
		if err := appendNumbered(jf, i); err != nil {
			t.Fatal(err)
		}
		n, err := sdCount(path)
		if err != nil {
			t.Fatalf("libsystemd after %d: %v", i, err)
		}
		if _, err := r.Refresh(); err != nil {
			t.Fatalf("Refresh after %d: %v", i, err)
		}
		offs, err := r.EntryOffsets()
		if err != nil {
			t.Fatalf("EntryOffsets after %d: %v", i, err)
		}
		if n != i+1 || len(offs) != i+1 {
			t.Fatalf("after %d appends: libsystemd sees %d, Reader sees %d", i+1, n, len(offs))
		}
	}
}

// Opening the file while it is being written never fails, in particular
// not with ENODATA from a half-written header.
func TestOpenWhileWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.journal")
	jf, err := Create(path, ID128{0x11}, ID128{0x22})
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	defer jf.Close()

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		for i := range 50 {
			if err := appendNumbered(jf, i); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for ctx.Err() == nil {
			if _, err := sdCount(path); err != nil {
				return fmt.Errorf("libsystemd: %w", err)
			}
			if r, err := OpenRead(path); err != nil {
				return fmt.Errorf("OpenRead: %w", err)
			} else if _, err := r.EntryOffsets(); err != nil {
				r.Close()
				return fmt.Errorf("EntryOffsets: %w", err)
			} else {
				r.Close()
			}
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// Entries with repeated fields and compressed payloads must read back the
// same way through libsystemd.
func TestLibsystemdReadsRepeatedAndCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compat.journal")

	jf, err := CreateWithOptions(path, WriterOptions{
		MachineID:         ID128{1},
		BootID:            ID128{2},
		Compression:       CompressZSTD,
		CompressThreshold: 64,
	})
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	big := strings.Repeat("z", 4096)
	if err := jf.AppendEntry([]Field{F("MESSAGE", big), F("TAG", "a"), F("TAG", "b")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := jf.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j, err := sdjournal.NewJournalFromFiles(path)
	if err != nil {
		t.Skipf("libsystemd unavailable: %v", err)
	}
	defer j.Close()

	if n, err := j.Next(); err != nil || n != 1 {
		t.Fatalf("Next = %d, %v", n, err)
	}
	if err := j.SetDataThreshold(0); err != nil {
		t.Fatalf("SetDataThreshold: %v", err)
	}
	msg, err := j.GetDataValue("MESSAGE")
	if err != nil {
		t.Fatalf("GetDataValue: %v", err)
	}
	if msg != big {
		t.Errorf("MESSAGE has %d bytes, want %d", len(msg), len(big))
	}
}
