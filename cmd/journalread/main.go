// journalread - read the systemd journal
//
// Usage:
//
//	journalread [flags] [FIELD=VALUE... [+ FIELD=VALUE...]]   Show entries
//	journalread fixture [flags] FILE                         Write a demo journal file
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/mbrock/sdreader/pkg/journal"
	_ "github.com/mbrock/sdreader/pkg/journal/all"
)

// cli holds the parsed command line.
type cli struct {
	directory string
	files     []string
	namespace string
	root      string
	merge     bool
	runtime   bool
	system    bool
	user      bool

	units    []string
	priority string
	boot     string
	machine  string
	matches  []string

	lines       int
	reverse     bool
	follow      bool
	since       string
	until       string
	cursor      string
	afterCursor string
	cursorFile  string

	output     string
	field      string
	listFields bool
	diskUsage  bool
	header     bool
	catalog    bool
	utc        bool

	engine string
	debug  bool
	color  bool
	config string

	args []string
}

func (c *cli) register(fs *flag.FlagSet) {
	fs.StringVarP(&c.directory, "directory", "D", "", "Read journal files in DIR")
	fs.StringArrayVar(&c.files, "file", nil, "Read journal FILE (can be repeated)")
	fs.StringVar(&c.namespace, "namespace", "", "Read the journal namespace NS (* for all)")
	fs.StringVar(&c.root, "root", "", "Read the journals of the OS tree at ROOT")
	fs.BoolVarP(&c.merge, "merge", "m", false, "Show entries of all machines")
	fs.BoolVar(&c.runtime, "runtime", false, "Only read volatile journals")
	fs.BoolVar(&c.system, "system", false, "Show the system journal")
	fs.BoolVar(&c.user, "user", false, "Show the journal of the current user")

	fs.StringArrayVarP(&c.units, "unit", "u", nil, "Show entries of UNIT (can be repeated)")
	fs.StringVarP(&c.priority, "priority", "p", "", "Show entries up to PRIORITY, or in a range FROM..TO")
	fs.StringVarP(&c.boot, "boot", "b", "", "Show entries of boot ID; --boot alone means the current boot")
	fs.Lookup("boot").NoOptDefVal = "current"
	fs.StringVarP(&c.machine, "machine", "M", "", "Show entries of machine ID")
	fs.StringArrayVar(&c.matches, "match", nil, "Add a FIELD=VALUE match, or + for a disjunction")

	fs.IntVarP(&c.lines, "lines", "n", -1, "Show the last N entries")
	fs.BoolVarP(&c.reverse, "reverse", "r", false, "Show the newest entries first")
	fs.BoolVarP(&c.follow, "follow", "f", false, "Wait for new entries")
	fs.StringVarP(&c.since, "since", "S", "", "Show entries at or after TIME")
	fs.StringVarP(&c.until, "until", "U", "", "Show entries at or before TIME")
	fs.StringVarP(&c.cursor, "cursor", "c", "", "Start at the entry CURSOR")
	fs.StringVar(&c.afterCursor, "after-cursor", "", "Start after the entry CURSOR")
	fs.StringVar(&c.cursorFile, "cursor-file", "", "Start after the cursor in FILE and save the last cursor there")

	fs.StringVarP(&c.output, "output", "o", "short", "Output mode: "+strings.Join(outputModes, ", "))
	fs.StringVarP(&c.field, "field", "F", "", "List the values FIELD takes")
	fs.BoolVarP(&c.listFields, "fields", "N", false, "List the field names in use")
	fs.BoolVar(&c.diskUsage, "disk-usage", false, "Show the space the journal files take")
	fs.BoolVar(&c.header, "header", false, "Show a summary of the journal files")
	fs.BoolVarP(&c.catalog, "catalog", "x", false, "Add explanations from the message catalog")
	fs.BoolVar(&c.utc, "utc", false, "Show times in UTC")

	fs.StringVar(&c.engine, "engine", "", "Engine: native, libsystemd, auto (overrides SDREADER_ENGINE)")
	fs.BoolVar(&c.debug, "debug", os.Getenv("JOURNALREAD_DEBUG") != "", "Log debug messages to stderr")
	fs.StringVar(&c.config, "config", configPath(), "Config file")
}

// applyConfig fills in settings from cfg that were not given as flags.
func (c *cli) applyConfig(fs *flag.FlagSet, cfg Config) {
	if cfg.Output != "" && !fs.Changed("output") {
		c.output = cfg.Output
	}
	if cfg.Engine != "" && !fs.Changed("engine") {
		c.engine = cfg.Engine
	}
	if cfg.Lines != nil && !fs.Changed("lines") {
		c.lines = *cfg.Lines
	}
	if cfg.Catalog && !fs.Changed("catalog") {
		c.catalog = true
	}
	if cfg.Debug && !fs.Changed("debug") {
		c.debug = true
	}
	if cfg.CursorFile != "" && !fs.Changed("cursor-file") {
		c.cursorFile = cfg.CursorFile
	}
	if cfg.Color != nil {
		c.color = c.color && *cfg.Color
	}
}

func main() {
	// fixture has its own flags.
	if len(os.Args) >= 2 && os.Args[1] == "fixture" {
		cmdFixture(os.Args[2:])
		return
	}

	var c cli
	c.register(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `journalread - read the systemd journal

Usage:
  journalread [flags] [FIELD=VALUE... [+ FIELD=VALUE...]]
  journalread fixture [--entries N] [--compress MODE] FILE

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()
	c.args = flag.Args()
	c.color = term.IsTerminal(int(os.Stdout.Fd()))

	cfg, err := loadConfig(c.config)
	if err != nil {
		fatal("config: %v", err)
	}
	c.applyConfig(flag.CommandLine, cfg)

	level := slog.LevelWarn
	if c.debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.run(ctx, os.Stdout); err != nil {
		stop()
		fatal("%v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// openOptions turns the source flags into journal.Options.
func (c *cli) openOptions() (journal.Options, error) {
	opts := journal.Options{Engine: c.engine, Logger: slog.Default()}

	sources := 0
	for _, set := range []bool{c.directory != "", len(c.files) > 0, c.namespace != "", c.root != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return opts, errors.New("only one of --directory, --file, --namespace and --root may be given")
	}

	var flags journal.OpenFlags
	if c.system {
		flags |= journal.System
	}
	if c.user {
		flags |= journal.CurrentUser
	}

	switch {
	case c.directory != "":
		opts.Path = c.directory
	case c.root != "":
		opts.Path = c.root
		flags |= journal.OSRoot
	case len(c.files) > 0:
		opts.Files = c.files
		if flags != 0 {
			return opts, errors.New("--system and --user do not apply to --file")
		}
	default:
		opts.Namespace = c.namespace
		opts.FlagsSet = true
		if !c.merge {
			flags |= journal.LocalOnly
		}
		if c.runtime {
			flags |= journal.RuntimeOnly
		}
	}
	opts.Flags = flags
	return opts, nil
}

func (c *cli) run(ctx context.Context, stdout io.Writer) error {
	opts, err := c.openOptions()
	if err != nil {
		return err
	}
	return journal.With(ctx, opts, func(r *journal.Reader) error {
		switch {
		case c.diskUsage:
			return diskUsage(r, stdout)
		case c.header:
			return header(r, stdout)
		case c.listFields:
			return listFields(r, stdout)
		case c.field != "":
			return listValues(r, c.field, stdout)
		}

		if err := c.addMatches(r); err != nil {
			return err
		}
		p, err := newPrinter(stdout, c.output, c.color)
		if err != nil {
			return err
		}
		p.utc = c.utc

		last, err := c.show(ctx, r, p)
		if cerr := p.close(); err == nil {
			err = cerr
		}
		if c.cursorFile != "" && last != "" {
			if werr := atomic.WriteFile(c.cursorFile, strings.NewReader(last)); werr != nil && err == nil {
				err = fmt.Errorf("save cursor: %w", werr)
			}
		}
		return err
	})
}

// addMatches adds the positional and --match terms, then ANDs the unit,
// priority, boot and machine filters onto them.
func (c *cli) addMatches(r *journal.Reader) error {
	terms := append(slices.Clone(c.matches), c.args...)
	for _, t := range terms {
		var err error
		if t == "+" {
			err = r.AddDisjunction()
		} else {
			err = r.AddMatch(t)
		}
		if err != nil {
			return err
		}
	}

	if len(terms) > 0 && (len(c.units) > 0 || c.priority != "" || c.boot != "" || c.machine != "") {
		if err := r.AddConjunction(); err != nil {
			return err
		}
	}
	for _, u := range c.units {
		if err := r.AddMatchField("_SYSTEMD_UNIT", u); err != nil {
			return err
		}
	}
	if c.priority != "" {
		from, to, err := parsePriority(c.priority)
		if err != nil {
			return err
		}
		for i := from; i <= to; i++ {
			if err := r.AddMatchField("PRIORITY", strconv.Itoa(i)); err != nil {
				return err
			}
		}
	}
	if c.boot != "" {
		var id journal.ID128
		if c.boot != "current" && c.boot != "0" {
			var err error
			if id, err = journal.ParseID128(c.boot); err != nil {
				return fmt.Errorf("--boot: %w", err)
			}
		}
		if err := r.ThisBoot(id); err != nil {
			return err
		}
	}
	if c.machine != "" {
		id, err := journal.ParseID128(c.machine)
		if err != nil {
			return fmt.Errorf("--machine: %w", err)
		}
		if err := r.ThisMachine(id); err != nil {
			return err
		}
	}
	slog.Debug("filter", "matches", r.Filter())
	return nil
}

// show positions the reader, prints entries and returns the cursor of the
// last one printed.
func (c *cli) show(ctx context.Context, r *journal.Reader, p *printer) (string, error) {
	now := time.Now()
	var since, until time.Time
	var err error
	if c.since != "" {
		if since, err = parseTime(c.since, now); err != nil {
			return "", fmt.Errorf("--since: %w", err)
		}
	}
	if c.until != "" {
		if until, err = parseTime(c.until, now); err != nil {
			return "", fmt.Errorf("--until: %w", err)
		}
	}

	after := c.afterCursor
	if c.cursorFile != "" && c.cursor == "" && after == "" {
		data, err := os.ReadFile(c.cursorFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("cursor file: %w", err)
		}
		after = strings.TrimSpace(string(data))
	}

	step := r.NextEntry
	if c.reverse {
		step = r.PreviousEntry
	}
	limit := -1
	var first *journal.Entry

	switch {
	case c.cursor != "" || after != "":
		cur := c.cursor
		if cur == "" {
			cur = after
		}
		if err := r.SeekCursor(cur); err != nil {
			return "", err
		}
		if after != "" && c.cursor == "" {
			// The next step returns the cursor's entry itself.
			if _, err := step(1); err != nil {
				return "", err
			}
		}
		limit = c.lines
	case c.reverse:
		if !until.IsZero() {
			err = r.SeekRealtimeTime(until)
		} else {
			err = r.SeekTail()
		}
		limit = c.lines
	case !since.IsZero():
		err = r.SeekRealtimeTime(since)
		limit = c.lines
	case c.lines >= 0:
		if err = r.SeekTail(); err != nil {
			break
		}
		if c.lines > 0 {
			var moved bool
			if moved, err = r.Previous(int64(c.lines)); err == nil && moved {
				first, err = r.Entry()
			}
		}
		if c.lines == 0 {
			limit = 0
		}
	default:
		err = r.SeekHead()
	}
	if err != nil {
		return "", err
	}

	inRange := func(e *journal.Entry) (show, more bool) {
		t := e.Time()
		if !since.IsZero() && t.Before(since) {
			return false, !c.reverse
		}
		if !until.IsZero() && t.After(until) {
			return false, c.reverse
		}
		return true, true
	}

	var last string
	printed := 0
	emit := func(e *journal.Entry) error {
		var text string
		if c.catalog && e.Get("MESSAGE_ID") != nil {
			text, _ = r.Catalog()
		}
		if err := p.print(e, text); err != nil {
			return err
		}
		last = e.Cursor
		printed++
		return nil
	}

	if first != nil {
		if err := emit(first); err != nil {
			return last, err
		}
	}
	for limit < 0 || printed < limit {
		if err := ctx.Err(); err != nil {
			return last, nil
		}
		e, err := step(1)
		if err != nil {
			return last, err
		}
		if e == nil {
			break
		}
		show, more := inRange(e)
		if !more {
			break
		}
		if show {
			if err := emit(e); err != nil {
				return last, err
			}
		}
	}

	if !c.follow || c.reverse {
		return last, nil
	}
	for e, err := range r.Follow(ctx) {
		if err != nil {
			return last, err
		}
		if show, more := inRange(e); !more {
			break
		} else if !show {
			continue
		}
		if err := emit(e); err != nil {
			return last, err
		}
	}
	return last, nil
}

// parseTime understands absolute times, "now", "today", "yesterday",
// "tomorrow", relative offsets like "-1h" or "+30m", and "@" followed by
// seconds since the epoch.
func parseTime(s string, now time.Time) (time.Time, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch s {
	case "now":
		return now, nil
	case "today":
		return midnight, nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), nil
	case "tomorrow":
		return midnight.AddDate(0, 0, 1), nil
	}
	if strings.HasPrefix(s, "@") {
		sec, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad epoch time %q", s)
		}
		return time.UnixMicro(int64(sec * 1e6)), nil
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad relative time %q: %w", s, err)
		}
		return now.Add(d), nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

func diskUsage(r *journal.Reader, w io.Writer) error {
	n, err := r.Usage()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Archived and active journals take up %s in the file system.\n", humanize.IBytes(n))
	return err
}

func header(r *journal.Reader, w io.Writer) error {
	n, err := r.Usage()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Engine: %s\n", r.Engine())
	fmt.Fprintf(w, "Disk usage: %s\n", humanize.IBytes(n))
	start, end, err := r.Cutoff()
	switch {
	case errors.Is(err, journal.ErrNotFound):
		fmt.Fprintln(w, "Entries: none")
	case err != nil:
		return err
	default:
		first, last := time.UnixMicro(int64(start)), time.UnixMicro(int64(end))
		fmt.Fprintf(w, "Head entry: %s (%s)\n", first.Format(time.RFC3339), humanize.Time(first))
		fmt.Fprintf(w, "Tail entry: %s (%s)\n", last.Format(time.RFC3339), humanize.Time(last))
	}
	for _, q := range []struct {
		label string
		fn    func() (bool, error)
	}{
		{"Runtime files", r.HasRuntimeFiles},
		{"Persistent files", r.HasPersistentFiles},
	} {
		ok, err := q.fn()
		if errors.Is(err, journal.ErrUnsupported) {
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", q.label, yesNo(ok))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func listFields(r *journal.Reader, w io.Writer) error {
	names, err := r.EnumerateFields()
	if err != nil {
		return err
	}
	slices.Sort(names)
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return nil
}

func listValues(r *journal.Reader, field string, w io.Writer) error {
	values, err := r.QueryUnique(field)
	if err != nil {
		return err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, displayValue(v))
	}
	slices.Sort(out)
	for _, v := range out {
		fmt.Fprintln(w, v)
	}
	return nil
}
