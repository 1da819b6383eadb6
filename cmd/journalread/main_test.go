package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	flag "github.com/spf13/pflag"

	"github.com/mbrock/sdreader/pkg/journal"
	"github.com/mbrock/sdreader/pkg/journalfile"
)

var fixtureTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.journal")
	if err := writeFixture(path, 5, journalfile.CompressNone, fixtureTime); err != nil {
		t.Fatalf("writeFixture: %v", err)
	}
	return path
}

// newCLI parses args the way main does, without a config file.
func newCLI(t *testing.T, args ...string) *cli {
	t.Helper()
	c := &cli{}
	fs := flag.NewFlagSet("journalread", flag.ContinueOnError)
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %q: %v", args, err)
	}
	c.args = fs.Args()
	c.engine = "native"
	return c
}

func run(t *testing.T, c *cli) []string {
	t.Helper()
	var out bytes.Buffer
	if err := c.run(context.Background(), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	return strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
}

func hello(is ...int) []string {
	var out []string
	for _, i := range is {
		out = append(out, fmt.Sprintf("Hello from the journal writer #%d", i))
	}
	return out
}

func TestRunCat(t *testing.T) {
	path := fixture(t)
	tests := []struct {
		args []string
		want []string
	}{
		{nil, append(hello(0, 1, 2, 3, 4), "Fixture finished")},
		{[]string{"-n", "2"}, []string{"Hello from the journal writer #4", "Fixture finished"}},
		{[]string{"-n", "10"}, append(hello(0, 1, 2, 3, 4), "Fixture finished")},
		{[]string{"-n", "0"}, []string{""}},
		{[]string{"-r", "-n", "2"}, []string{"Fixture finished", "Hello from the journal writer #4"}},
		{[]string{"PRIORITY=4"}, hello(3)},
		{[]string{"PRIORITY=4", "+", "MESSAGE_ID=" + fixtureMessageID}, append(hello(3), "Fixture finished")},
		{[]string{"-p", "notice"}, append(hello(3), "Fixture finished")},
		{[]string{"-p", "5..6", "-n", "1"}, []string{"Fixture finished"}},
		{[]string{"-u", "fixture.service", "-u", "other.service", "-n", "1"}, []string{"Fixture finished"}},
		{[]string{"-u", "other.service"}, []string{""}},
		{[]string{"--since", "2025-03-01T11:59:57Z"}, append(hello(2, 3, 4), "Fixture finished")},
		{[]string{"--until", "2025-03-01T11:59:56Z"}, hello(0, 1)},
		{[]string{"-r", "--until", "2025-03-01T11:59:56Z", "-n", "1"}, hello(1)},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			c := newCLI(t, append([]string{"--file", path, "-o", "cat"}, tt.args...)...)
			if diff := cmp.Diff(tt.want, run(t, c)); diff != "" {
				t.Errorf("output (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunCursors(t *testing.T) {
	path := fixture(t)

	c := newCLI(t, "--file", path, "-o", "json", "-n", "3")
	var cursors []string
	for _, line := range run(t, c) {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad json %q: %v", line, err)
		}
		cursors = append(cursors, rec["__CURSOR"].(string))
	}
	if len(cursors) != 3 {
		t.Fatalf("got %d entries, want 3", len(cursors))
	}

	c = newCLI(t, "--file", path, "-o", "cat", "--cursor", cursors[0], "-n", "2")
	if diff := cmp.Diff(hello(3, 4), run(t, c)); diff != "" {
		t.Errorf("--cursor (-want +got):\n%s", diff)
	}
	c = newCLI(t, "--file", path, "-o", "cat", "--after-cursor", cursors[0])
	if diff := cmp.Diff([]string{"Hello from the journal writer #4", "Fixture finished"}, run(t, c)); diff != "" {
		t.Errorf("--after-cursor (-want +got):\n%s", diff)
	}
}

func TestRunCursorFile(t *testing.T) {
	path := fixture(t)
	cursorFile := filepath.Join(t.TempDir(), "cursor")

	c := newCLI(t, "--file", path, "-o", "cat", "--cursor-file", cursorFile, "-n", "2")
	if got := run(t, c); len(got) != 2 {
		t.Fatalf("first run printed %q", got)
	}
	saved, err := os.ReadFile(cursorFile)
	if err != nil {
		t.Fatalf("cursor file: %v", err)
	}
	if _, err := journalfile.ParseCursor(string(saved)); err != nil {
		t.Errorf("saved cursor %q: %v", saved, err)
	}

	// Everything has been seen.
	c = newCLI(t, "--file", path, "-o", "cat", "--cursor-file", cursorFile)
	if got := run(t, c); len(got) != 1 || got[0] != "" {
		t.Errorf("second run printed %q", got)
	}
	again, _ := os.ReadFile(cursorFile)
	if !bytes.Equal(saved, again) {
		t.Errorf("cursor file changed to %q without new entries", again)
	}
}

func TestRunVerboseWithCatalog(t *testing.T) {
	path := fixture(t)
	catDir := t.TempDir()
	src := "-- " + fixtureMessageID + "\nSubject: fixture done\n\n@UNIT@ wrote its entries.\n"
	if err := os.WriteFile(filepath.Join(catDir, "fixture.catalog"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SDREADER_CATALOG_DIRS", catDir)
	t.Setenv("SDREADER_CATALOG_DATABASE", filepath.Join(catDir, "database"))

	c := newCLI(t, "--file", path, "-o", "verbose", "-x", "-n", "1", "--utc")
	got := run(t, c)
	if !strings.HasPrefix(got[0], "Sat 2025-03-01 12:00:00.000000 UTC [s=") {
		t.Errorf("verbose header = %q", got[0])
	}
	for _, want := range []string{
		"    MESSAGE=Fixture finished",
		"    UNIT=fixture.service",
		"-- Subject: fixture done",
		"-- fixture.service wrote its entries.",
	} {
		if !contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, strings.Join(got, "\n"))
		}
	}
}

func contains(lines []string, s string) bool {
	for _, l := range lines {
		if l == s {
			return true
		}
	}
	return false
}

func TestRunInfo(t *testing.T) {
	path := fixture(t)

	fields := run(t, newCLI(t, "--file", path, "-N"))
	want := []string{"MESSAGE", "MESSAGE_ID", "PRIORITY", "SYSLOG_IDENTIFIER", "UNIT", "_HOSTNAME", "_PID", "_SYSTEMD_UNIT"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("-N (-want +got):\n%s", diff)
	}

	values := run(t, newCLI(t, "--file", path, "-F", "PRIORITY"))
	if diff := cmp.Diff([]string{"4", "5", "6"}, values); diff != "" {
		t.Errorf("-F PRIORITY (-want +got):\n%s", diff)
	}

	usage := run(t, newCLI(t, "--file", path, "--disk-usage"))
	if len(usage) != 1 || !strings.HasPrefix(usage[0], "Archived and active journals take up ") {
		t.Errorf("--disk-usage = %q", usage)
	}

	hdr := run(t, newCLI(t, "--file", path, "--header"))
	for _, want := range []string{"Engine: native", "Runtime files: no", "Persistent files: yes"} {
		if !contains(hdr, want) {
			t.Errorf("--header lacks %q:\n%s", want, strings.Join(hdr, "\n"))
		}
	}
}

func TestOpenOptions(t *testing.T) {
	tests := []struct {
		args []string
		want journal.Options
	}{
		{nil, journal.Options{FlagsSet: true, Flags: journal.LocalOnly}},
		{[]string{"-m", "--runtime"}, journal.Options{FlagsSet: true, Flags: journal.RuntimeOnly}},
		{[]string{"--namespace", "web", "--system"}, journal.Options{Namespace: "web", FlagsSet: true, Flags: journal.LocalOnly | journal.System}},
		{[]string{"-D", "/logs", "--user"}, journal.Options{Path: "/logs", Flags: journal.CurrentUser}},
		{[]string{"--root", "/img"}, journal.Options{Path: "/img", Flags: journal.OSRoot}},
		{[]string{"--file", "a", "--file", "b"}, journal.Options{Files: []string{"a", "b"}}},
	}
	for _, tt := range tests {
		c := newCLI(t, tt.args...)
		got, err := c.openOptions()
		if err != nil {
			t.Errorf("%q: %v", tt.args, err)
			continue
		}
		got.Logger, got.Engine = nil, ""
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%q (-want +got):\n%s", tt.args, diff)
		}
	}

	for _, bad := range [][]string{
		{"-D", "/x", "--file", "y"},
		{"--file", "y", "--system"},
	} {
		if _, err := newCLI(t, bad...).openOptions(); err == nil {
			t.Errorf("%q: no error", bad)
		}
	}
}

func TestParseTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := map[string]time.Time{
		"now":                 now,
		"today":               time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		"yesterday":           time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		"-1h":                 now.Add(-time.Hour),
		"+90s":                now.Add(90 * time.Second),
		"@1700000000.5":       time.UnixMicro(1700000000_500000),
		"2024-12-24":          time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC),
		"2024-12-24 18:00":    time.Date(2024, 12, 24, 18, 0, 0, 0, time.UTC),
		"2024-12-24 18:00:01": time.Date(2024, 12, 24, 18, 0, 1, 0, time.UTC),

		"2024-12-24T18:00:01+01:00": time.Date(2024, 12, 24, 17, 0, 1, 0, time.UTC),
	}
	for in, want := range tests {
		got, err := parseTime(in, now)
		if err != nil || !got.Equal(want) {
			t.Errorf("parseTime(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "soon", "-1 hour", "@x"} {
		if _, err := parseTime(bad, now); err == nil {
			t.Errorf("parseTime(%q) succeeded", bad)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in       string
		from, to int
	}{
		{"err", 0, 3},
		{"4", 0, 4},
		{"WARNING", 0, 4},
		{"debug..notice", 5, 7},
		{"2..3", 2, 3},
	}
	for _, tt := range tests {
		from, to, err := parsePriority(tt.in)
		if err != nil || from != tt.from || to != tt.to {
			t.Errorf("parsePriority(%q) = %d, %d, %v", tt.in, from, to, err)
		}
	}
	for _, bad := range []string{"8", "loud", "1..x"} {
		if _, _, err := parsePriority(bad); err == nil {
			t.Errorf("parsePriority(%q) succeeded", bad)
		}
	}
}

func TestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		// defaults for my laptop
		"output": "verbose",
		"lines": 20,
		"catalog": true,
		"color": false,
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	c := &cli{color: true}
	fs := flag.NewFlagSet("journalread", flag.ContinueOnError)
	c.register(fs)
	if err := fs.Parse([]string{"-n", "5"}); err != nil {
		t.Fatal(err)
	}
	c.applyConfig(fs, cfg)
	if c.output != "verbose" || c.lines != 5 || !c.catalog || c.color {
		t.Errorf("after config: output=%q lines=%d catalog=%v color=%v", c.output, c.lines, c.catalog, c.color)
	}

	if cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err != nil || cfg.Output != "" {
		t.Errorf("missing config = %+v, %v", cfg, err)
	}
	os.WriteFile(path, []byte(`{"outptu": "cat"}`), 0o644)
	if _, err := loadConfig(path); err == nil {
		t.Error("unknown config key accepted")
	}
}

func TestRecord(t *testing.T) {
	e := &journal.Entry{Fields: journal.Fields{
		"MESSAGE": journal.Single([]byte("hi")),
		"BIN":     journal.Single([]byte{0, 1, 0xff}),
		"TAG":     journal.Multi([]byte("a"), []byte("b")),
	}}
	want := map[string]any{
		"MESSAGE": "hi",
		"BIN":     []int{0, 1, 255},
		"TAG":     []any{"a", "b"},
	}
	if diff := cmp.Diff(want, record(e)); diff != "" {
		t.Errorf("record (-want +got):\n%s", diff)
	}
	if got := displayValue([]byte{0, 1, 2}); got != "[3 B blob data]" {
		t.Errorf("displayValue = %q", got)
	}
}
