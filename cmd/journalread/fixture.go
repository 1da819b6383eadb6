package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/mbrock/sdreader/pkg/journal"
	"github.com/mbrock/sdreader/pkg/journalfile"
)

// fixtureMessageID is the MESSAGE_ID of the fixture's catalog demo entry.
const fixtureMessageID = "39f53479d3a045ac8e11786248231fbf"

// cmdFixture writes a small journal file for trying out the reader:
//
//	journalread fixture [--entries N] [--compress zstd] FILE
func cmdFixture(args []string) {
	fs := flag.NewFlagSet("fixture", flag.ExitOnError)
	entries := fs.Int("entries", 5, "Number of demo entries")
	compressFlag := fs.String("compress", "none", "Compression for large fields: none, xz, lz4, zstd")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fatal("usage: journalread fixture [flags] FILE")
	}

	compression, err := parseCompression(*compressFlag)
	if err != nil {
		fatal("%v", err)
	}
	if err := writeFixture(fs.Arg(0), *entries, compression, time.Now()); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Created %s\n", fs.Arg(0))
}

func parseCompression(s string) (journalfile.Compression, error) {
	for _, c := range []journalfile.Compression{
		journalfile.CompressNone, journalfile.CompressXZ, journalfile.CompressLZ4, journalfile.CompressZSTD,
	} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// writeFixture writes n demo entries one second apart ending at now,
// followed by one entry with a MESSAGE_ID.
func writeFixture(path string, n int, compression journalfile.Compression, now time.Time) error {
	machineID, err := journal.MachineID()
	if err != nil {
		machineID = journal.ID128(uuid.New())
	}
	bootID, err := journal.BootID()
	if err != nil {
		bootID = journal.ID128(uuid.New())
	}

	jf, err := journalfile.CreateWithOptions(path, journalfile.WriterOptions{
		MachineID:   machineID,
		BootID:      bootID,
		Compression: compression,
	})
	if err != nil {
		return err
	}

	host, _ := os.Hostname()
	pid := strconv.Itoa(os.Getpid())
	start := now.Add(-time.Duration(n) * time.Second)
	mono := journal.MonotonicNow()
	for i := range n {
		t := start.Add(time.Duration(i) * time.Second)
		prio := "6"
		if i%4 == 3 {
			prio = "4"
		}
		err := jf.AppendEntryAt(uint64(t.UnixMicro()), mono+uint64(i)*1_000_000, []journalfile.Field{
			journalfile.F("MESSAGE", fmt.Sprintf("Hello from the journal writer #%d", i)),
			journalfile.F("PRIORITY", prio),
			journalfile.F("SYSLOG_IDENTIFIER", "journalread-fixture"),
			journalfile.F("_PID", pid),
			journalfile.F("_HOSTNAME", host),
			journalfile.F("_SYSTEMD_UNIT", "fixture.service"),
		})
		if err != nil {
			jf.Close()
			return err
		}
	}

	err = jf.AppendEntryAt(uint64(now.UnixMicro()), mono+uint64(n)*1_000_000, []journalfile.Field{
		journalfile.F("MESSAGE", "Fixture finished"),
		journalfile.F("MESSAGE_ID", fixtureMessageID),
		journalfile.F("PRIORITY", "5"),
		journalfile.F("SYSLOG_IDENTIFIER", "journalread-fixture"),
		journalfile.F("_HOSTNAME", host),
		journalfile.F("_SYSTEMD_UNIT", "fixture.service"),
		journalfile.F("UNIT", "fixture.service"),
	})
	if err != nil {
		jf.Close()
		return err
	}
	return jf.Close()
}
