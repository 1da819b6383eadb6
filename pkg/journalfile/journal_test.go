package journalfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	testMachine = ID128{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	testBoot    = ID128{0xfe, 0xdc, 0xba, 0x98, 0x76, 0x54, 0x32, 0x10}
)

func createTestFile(t *testing.T, opts WriterOptions) (*File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.journal")
	if opts.MachineID.IsZero() {
		opts.MachineID = testMachine
	}
	if opts.BootID.IsZero() {
		opts.BootID = testBoot
	}
	jf, err := CreateWithOptions(path, opts)
	if err != nil {
		t.Fatalf("CreateWithOptions: %v", err)
	}
	return jf, path
}

// readFields returns the payloads of the entry at off, in stored order.
func readFields(t *testing.T, r *Reader, off uint64) []string {
	t.Helper()
	items, err := r.EntryItems(off)
	if err != nil {
		t.Fatalf("EntryItems: %v", err)
	}
	var out []string
	for _, it := range items {
		p, err := r.Data(it.Offset, 0)
		if err != nil {
			t.Fatalf("Data: %v", err)
		}
		out = append(out, string(p))
	}
	return out
}

func TestCreateJournalFile(t *testing.T) {
	jf, path := createTestFile(t, WriterOptions{})

	for i := 0; i < 3; i++ {
		err := jf.AppendEntry([]Field{
			F("MESSAGE", "hello world"),
			F("PRIORITY", "6"),
			F("_PID", "1234"),
		})
		if err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
	}

	if err := jf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() < HeaderSize {
		t.Errorf("File too small: %d < %d", info.Size(), HeaderSize)
	}

	r, err := OpenRead(path)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	h := r.Header()
	if h.NEntries != 3 || h.NData != 3 || h.NFields != 3 {
		t.Errorf("header counts entries=%d data=%d fields=%d, want 3/3/3", h.NEntries, h.NData, h.NFields)
	}
	if h.State != StateOffline {
		t.Errorf("state = %d, want offline", h.State)
	}
	if !h.KeyedHash() {
		t.Error("new files should use keyed hashing")
	}
}

func TestRoundTripPreservesOrderAndDuplicates(t *testing.T) {
	jf, path := createTestFile(t, WriterOptions{FirstSeqnum: 41})

	binary := []byte{0x00, 0xff, '=', '\n', 0x80}
	entries := [][]Field{
		{F("MESSAGE", "first"), F("TAG", "a"), F("TAG", "b"), F("TAG", "a")},
		{F("MESSAGE", "second"), {Name: "BLOB", Value: binary}},
	}
	for i, fields := range entries {
		if err := jf.AppendEntryAt(uint64(1000+i), uint64(10+i), fields); err != nil {
			t.Fatalf("AppendEntryAt: %v", err)
		}
	}
	if err := jf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenRead(path)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	offs, err := r.EntryOffsets()
	if err != nil {
		t.Fatalf("EntryOffsets: %v", err)
	}
	if len(offs) != 2 {
		t.Fatalf("got %d entries, want 2", len(offs))
	}

	// The repeated TAG=a is stored once.
	want := []string{"MESSAGE=first", "TAG=a", "TAG=b"}
	if diff := cmp.Diff(want, readFields(t, r, offs[0])); diff != "" {
		t.Errorf("entry 0 fields (-want +got):\n%s", diff)
	}
	want = []string{"MESSAGE=second", "BLOB=" + string(binary)}
	if diff := cmp.Diff(want, readFields(t, r, offs[1])); diff != "" {
		t.Errorf("entry 1 fields (-want +got):\n%s", diff)
	}

	meta, err := r.EntryMeta(offs[1])
	if err != nil {
		t.Fatalf("EntryMeta: %v", err)
	}
	wantMeta := EntryMeta{
		Offset:    offs[1],
		Seqnum:    43,
		Realtime:  1001,
		Monotonic: 11,
		BootID:    testBoot,
		XorHash:   JenkinsHash64([]byte("MESSAGE=second")) ^ JenkinsHash64([]byte("BLOB="+string(binary))),
	}
	if diff := cmp.Diff(wantMeta, meta); diff != "" {
		t.Errorf("EntryMeta (-want +got):\n%s", diff)
	}
}

func TestAppendEntryRejectsBadNames(t *testing.T) {
	jf, _ := createTestFile(t, WriterOptions{})
	defer jf.Close()

	for _, name := range []string{"", "lower", "1ABC", "A=B", "WAY_TOO_LONG_" + string(bytes.Repeat([]byte("X"), 64))} {
		if err := jf.AppendEntry([]Field{F(name, "v")}); err == nil {
			t.Errorf("AppendEntry accepted field name %q", name)
		}
	}
	if err := jf.AppendEntry(nil); err == nil {
		t.Error("AppendEntry accepted an empty entry")
	}
}

func TestLookupAndEnumeration(t *testing.T) {
	for _, jenkins := range []bool{false, true} {
		jf, path := createTestFile(t, WriterOptions{JenkinsHash: jenkins})
		must(t, jf.AppendEntry([]Field{F("MESSAGE", "one"), F("_PID", "1")}))
		must(t, jf.AppendEntry([]Field{F("MESSAGE", "two"), F("_PID", "1")}))
		must(t, jf.AppendEntry([]Field{F("MESSAGE", "three"), F("UNIT", "x.service")}))
		must(t, jf.Close())

		r, err := OpenRead(path)
		if err != nil {
			t.Fatalf("OpenRead: %v", err)
		}

		off, err := r.FindData([]byte("MESSAGE=two"))
		if err != nil || off == 0 {
			t.Fatalf("jenkins=%v: FindData(MESSAGE=two) = %d, %v", jenkins, off, err)
		}
		if off, err := r.FindData([]byte("MESSAGE=four")); err != nil || off != 0 {
			t.Errorf("jenkins=%v: FindData(MESSAGE=four) = %d, %v; want 0", jenkins, off, err)
		}

		names, err := r.FieldNames()
		if err != nil {
			t.Fatalf("FieldNames: %v", err)
		}
		if diff := cmp.Diff([]string{"MESSAGE", "UNIT", "_PID"}, names); diff != "" {
			t.Errorf("jenkins=%v: FieldNames (-want +got):\n%s", jenkins, diff)
		}

		offs, err := r.FieldData("MESSAGE")
		if err != nil {
			t.Fatalf("FieldData: %v", err)
		}
		var values []string
		for _, o := range offs {
			p, err := r.Data(o, 0)
			if err != nil {
				t.Fatalf("Data: %v", err)
			}
			values = append(values, string(p))
		}
		// The field chain is newest first.
		if diff := cmp.Diff([]string{"MESSAGE=three", "MESSAGE=two", "MESSAGE=one"}, values); diff != "" {
			t.Errorf("jenkins=%v: FieldData (-want +got):\n%s", jenkins, diff)
		}

		if offs, err := r.FieldData("NOPE"); err != nil || len(offs) != 0 {
			t.Errorf("FieldData(NOPE) = %v, %v", offs, err)
		}
		r.Close()
	}
}

func TestCompressedPayloads(t *testing.T) {
	large := bytes.Repeat([]byte("compressible payload "), 200)
	for _, c := range []Compression{CompressZSTD, CompressLZ4, CompressXZ} {
		t.Run(c.String(), func(t *testing.T) {
			jf, path := createTestFile(t, WriterOptions{Compression: c, CompressThreshold: 64})
			must(t, jf.AppendEntry([]Field{{Name: "MESSAGE", Value: large}, F("SHORT", "x")}))
			must(t, jf.Close())

			r, err := OpenRead(path)
			if err != nil {
				t.Fatalf("OpenRead: %v", err)
			}
			defer r.Close()

			if r.Header().IncompatibleFlags&c.headerFlag() == 0 {
				t.Errorf("header lacks the %s flag", c)
			}

			offs, err := r.EntryOffsets()
			if err != nil || len(offs) != 1 {
				t.Fatalf("EntryOffsets = %v, %v", offs, err)
			}
			items, err := r.EntryItems(offs[0])
			if err != nil {
				t.Fatalf("EntryItems: %v", err)
			}

			// A limit cuts compressed payloads only.
			p, err := r.Data(items[0].Offset, 100)
			if err != nil {
				t.Fatalf("Data with limit: %v", err)
			}
			if len(p) != 100 || !bytes.HasPrefix([]byte("MESSAGE="+string(large)), p) {
				t.Errorf("limited payload has %d bytes", len(p))
			}

			p, err = r.Data(items[0].Offset, 0)
			if err != nil {
				t.Fatalf("Data: %v", err)
			}
			if !bytes.Equal(p, append([]byte("MESSAGE="), large...)) {
				t.Errorf("decompressed payload mismatch (%d bytes)", len(p))
			}

			// The field name and '=' survive any limit.
			p, err = r.Data(items[0].Offset, 3)
			if err != nil || string(p) != "MESSAGE=" {
				t.Errorf("tiny limit = %q, %v", p, err)
			}

			p, err = r.Data(items[1].Offset, 3)
			if err != nil || string(p) != "SHORT=x" {
				t.Errorf("uncompressed payload = %q, %v", p, err)
			}

			// Lookup still works because hashes cover the plain payload.
			if off, err := r.FindData(append([]byte("MESSAGE="), large...)); err != nil || off != items[0].Offset {
				t.Errorf("FindData = %d, %v; want %d", off, err, items[0].Offset)
			}
		})
	}
}

func TestRefreshSeesAppends(t *testing.T) {
	jf, path := createTestFile(t, WriterOptions{})
	defer jf.Close()
	must(t, jf.AppendEntry([]Field{F("MESSAGE", "one")}))
	must(t, jf.Sync())

	r, err := OpenRead(path)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	offs, err := r.EntryOffsets()
	if err != nil || len(offs) != 1 {
		t.Fatalf("EntryOffsets = %v, %v", offs, err)
	}

	changed, err := r.Refresh()
	if err != nil || changed {
		t.Fatalf("Refresh without writes = %v, %v", changed, err)
	}

	for i := 0; i < 20; i++ {
		must(t, jf.AppendEntry([]Field{F("MESSAGE", "more")}))
	}
	must(t, jf.Sync())

	changed, err = r.Refresh()
	if err != nil || !changed {
		t.Fatalf("Refresh after writes = %v, %v", changed, err)
	}
	offs, err = r.EntryOffsets()
	if err != nil {
		t.Fatalf("EntryOffsets: %v", err)
	}
	if len(offs) != 21 {
		t.Fatalf("got %d entries after refresh, want 21", len(offs))
	}
	for i := 1; i < len(offs); i++ {
		if offs[i] <= offs[i-1] {
			t.Fatalf("offsets not increasing at %d: %v", i, offs)
		}
	}
}

func TestOpenAppendKeepsDedup(t *testing.T) {
	jf, path := createTestFile(t, WriterOptions{})
	must(t, jf.AppendEntry([]Field{F("MESSAGE", "same"), F("UNIT", "a")}))
	must(t, jf.Close())

	jf, err := OpenAppend(path)
	if err != nil {
		t.Fatalf("OpenAppend: %v", err)
	}
	must(t, jf.AppendEntry([]Field{F("MESSAGE", "same"), F("UNIT", "b")}))
	must(t, jf.Close())

	r, err := OpenRead(path)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	h := r.Header()
	if h.NEntries != 2 || h.NData != 3 || h.NFields != 2 {
		t.Errorf("counts entries=%d data=%d fields=%d, want 2/3/2", h.NEntries, h.NData, h.NFields)
	}
	if h.HeadEntrySeqnum != 1 || h.TailEntrySeqnum != 2 {
		t.Errorf("seqnums %d..%d, want 1..2", h.HeadEntrySeqnum, h.TailEntrySeqnum)
	}
}

func TestShortHeaderFieldsReadAsZero(t *testing.T) {
	jf, path := createTestFile(t, WriterOptions{})
	must(t, jf.AppendEntry([]Field{F("MESSAGE", "old format")}))
	must(t, jf.Close())

	// Pretend the file was written by a journald that predates the tail
	// entry array fields.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	var size [8]byte
	le.PutUint64(size[:], 256)
	if _, err := f.WriteAt(size[:], headerSizeOffset); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r, err := OpenRead(path)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	h := r.Header()
	if h.TailEntryArrayOffset != 0 || h.TailEntryOffset != 0 {
		t.Errorf("fields beyond header_size not zeroed: %+v", h)
	}
	offs, err := r.EntryOffsets()
	if err != nil || len(offs) != 1 {
		t.Errorf("EntryOffsets = %v, %v", offs, err)
	}
}

func TestOpenReadRejectsBadFiles(t *testing.T) {
	jf, path := createTestFile(t, WriterOptions{})
	must(t, jf.AppendEntry([]Field{F("MESSAGE", "x")}))
	must(t, jf.Close())

	patch := func(off int64, b []byte) string {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		copy(data[off:], b)
		p := filepath.Join(t.TempDir(), "patched.journal")
		if err := os.WriteFile(p, data, 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	if _, err := OpenRead(patch(0, []byte("NOTAJRNL"))); !errors.Is(err, ErrBadSignature) {
		t.Errorf("bad signature: err = %v", err)
	}
	// Incompatible flags live at offset 12.
	if _, err := OpenRead(patch(12, []byte{0, 0, 0, 0x80})); !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("unknown incompatible flag: err = %v", err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
