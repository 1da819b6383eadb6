package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

const sampleSource = `#  SPDX-License-Identifier: LGPL-2.1-or-later
# Comments are skipped.

-- fc2e22bc6ee647b6b90729ab34a250b1
Subject: Process @COREDUMP_PID@ (@COREDUMP_COMM@) dumped core
Defined-By: systemd

Process @COREDUMP_PID@ (@COREDUMP_COMM@) crashed and dumped core.


This usually indicates a programming error.

-- fc2e22bc6ee647b6b90729ab34a250b1 de
Subject: Speicherabbild für Prozess @COREDUMP_PID@ (@COREDUMP_COMM@) generiert

-- 8d45620c1a4348dbb17410da57c60c66
Subject: A new session @SESSION_ID@ has been created for user @USER_ID@
`

var coredumpID = mustID("fc2e22bc6ee647b6b90729ab34a250b1")

func mustID(s string) uuid.UUID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func loadSample(t *testing.T) *Catalog {
	t.Helper()
	c := New()
	if err := c.LoadSource(strings.NewReader(sampleSource), "systemd.catalog"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	return c
}

func TestLoadSource(t *testing.T) {
	c := loadSample(t)
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}

	text, err := c.Lookup(coredumpID, "fr")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	want := "Subject: Process @COREDUMP_PID@ (@COREDUMP_COMM@) dumped core\n" +
		"Defined-By: systemd\n" +
		"\n" +
		"Process @COREDUMP_PID@ (@COREDUMP_COMM@) crashed and dumped core.\n" +
		"\n" +
		"This usually indicates a programming error.\n"
	if diff := cmp.Diff(want, text); diff != "" {
		t.Errorf("default text (-want +got):\n%s", diff)
	}

	de, err := c.Lookup(coredumpID, "de_DE", "de")
	if err != nil {
		t.Fatalf("Lookup de: %v", err)
	}
	if !strings.HasPrefix(de, "Subject: Speicherabbild") {
		t.Errorf("german text = %q", de)
	}

	if _, err := c.Lookup(mustID("00000000000000000000000000000001"), "en"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id: err = %v, want ErrNotFound", err)
	}
}

func TestLoadSourceErrors(t *testing.T) {
	c := New()
	err := c.LoadSource(strings.NewReader("Subject: no header\n"), "bad.catalog")
	if err == nil || !strings.Contains(err.Error(), "bad.catalog:1") {
		t.Errorf("err = %v, want a positioned error", err)
	}
}

func TestLanguageFromFileName(t *testing.T) {
	cases := map[string]string{
		"systemd.catalog":       "",
		"systemd.de.catalog":    "de",
		"systemd.pt_BR.catalog": "pt_BR",
		"readme.txt":            "",
	}
	for name, want := range cases {
		if got := languageFromFileName(name); got != want {
			t.Errorf("languageFromFileName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestLanguagesFromEnvironment(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "de_DE.UTF-8@euro")
	t.Setenv("LANG", "fr_FR.UTF-8")
	if diff := cmp.Diff([]string{"de_DE", "de"}, Languages()); diff != "" {
		t.Errorf("Languages (-want +got):\n%s", diff)
	}

	t.Setenv("LC_ALL", "C")
	if got := Languages(); got != nil {
		t.Errorf("Languages with LC_ALL=C = %v", got)
	}
}

func TestDatabaseRoundTrip(t *testing.T) {
	c := loadSample(t)

	var buf bytes.Buffer
	if err := c.WriteDatabase(&buf); err != nil {
		t.Fatalf("WriteDatabase: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("RHHHKSLP")) {
		t.Fatalf("missing signature: %q", buf.Bytes()[:8])
	}

	back, err := ReadDatabase(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadDatabase: %v", err)
	}
	if diff := cmp.Diff(c.entries, back.entries, cmp.AllowUnexported(key{})); diff != "" {
		t.Errorf("entries differ (-want +got):\n%s", diff)
	}

	if _, err := ReadDatabase([]byte("not a database at all, really not.......")); !errors.Is(err, ErrBadDatabase) {
		t.Errorf("garbage: err = %v, want ErrBadDatabase", err)
	}
	truncated := buf.Bytes()[:databaseHeaderSize+10]
	if _, err := ReadDatabase(truncated); !errors.Is(err, ErrBadDatabase) {
		t.Errorf("truncated: err = %v, want ErrBadDatabase", err)
	}
}

func TestLoadPrefersDatabase(t *testing.T) {
	root := t.TempDir()
	t.Setenv("SDREADER_CATALOG_DATABASE", "")
	t.Setenv("SDREADER_CATALOG_DIRS", "")

	srcDir := filepath.Join(root, "usr", "lib", "systemd", "catalog")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "systemd.catalog"), []byte(sampleSource), 0o644); err != nil {
		t.Fatal(err)
	}
	// /etc masks the file of the same name in /usr/lib.
	etcDir := filepath.Join(root, "etc", "systemd", "catalog")
	if err := os.MkdirAll(etcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	override := "-- fc2e22bc6ee647b6b90729ab34a250b1\nSubject: overridden\n"
	if err := os.WriteFile(filepath.Join(etcDir, "systemd.catalog"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(root)
	if err != nil {
		t.Fatalf("Load from sources: %v", err)
	}
	if text, _ := c.Lookup(coredumpID, "en"); text != "Subject: overridden\n" {
		t.Errorf("source lookup = %q", text)
	}

	db := New()
	db.Add(coredumpID, "", "from database\n")
	dbPath := filepath.Join(root, "var", "lib", "systemd", "catalog", "database")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := db.WriteDatabase(&buf); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err = Load(root)
	if err != nil {
		t.Fatalf("Load from database: %v", err)
	}
	if text, _ := c.Lookup(coredumpID, "en"); text != "from database\n" {
		t.Errorf("database lookup = %q", text)
	}
}

func TestSubstitute(t *testing.T) {
	fields := map[string]string{
		"COREDUMP_PID":  "42",
		"COREDUMP_COMM": "sleep",
		"HUGE":          strings.Repeat("x", 300),
	}
	lookup := func(name string) ([]byte, bool) {
		v, ok := fields[name]
		return []byte(v), ok
	}

	cases := []struct{ in, want string }{
		{"Process @COREDUMP_PID@ (@COREDUMP_COMM@)", "Process 42 (sleep)"},
		{"missing @UNKNOWN@ here", "missing UNKNOWN here"},
		{"mail root@localhost or @lower@", "mail root@localhost or @lower@"},
		{"dangling @COREDUMP_PID", "dangling @COREDUMP_PID"},
		{"@@ and @HUGE@", "@@ and HUGE"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Substitute(tc.in, lookup); got != tc.want {
			t.Errorf("Substitute(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseID(t *testing.T) {
	a, err := ParseID("fc2e22bc6ee647b6b90729ab34a250b1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseID("fc2e22bc-6ee6-47b6-b907-29ab34a250b1")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("hex and UUID forms differ: %v vs %v", a, b)
	}
	if FormatID(a) != "fc2e22bc6ee647b6b90729ab34a250b1" {
		t.Errorf("FormatID = %q", FormatID(a))
	}
	for _, bad := range []string{
		"xyz",
		"{fc2e22bc-6ee6-47b6-b907-29ab34a250b1}",
		"urn:uuid:fc2e22bc-6ee6-47b6-b907-29ab34a250b1",
	} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) succeeded", bad)
		}
	}
}
