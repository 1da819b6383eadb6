package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/mbrock/sdreader/pkg/journal"
)

var outputModes = []string{"short", "cat", "json", "yaml", "verbose"}

const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorRed    = "\x1b[1;31m"
	colorYellow = "\x1b[1;33m"
)

// printer writes entries in one output mode.
type printer struct {
	w     *bufio.Writer
	mode  string
	color bool
	utc   bool

	json *json.Encoder
	yaml *yaml.Encoder
}

func newPrinter(w io.Writer, mode string, color bool) (*printer, error) {
	if !slices.Contains(outputModes, mode) {
		return nil, fmt.Errorf("unknown output mode %q (want one of %s)", mode, strings.Join(outputModes, ", "))
	}
	p := &printer{w: bufio.NewWriter(w), mode: mode, color: color}
	switch mode {
	case "json":
		p.json = json.NewEncoder(p.w)
		p.json.SetEscapeHTML(false)
	case "yaml":
		p.yaml = yaml.NewEncoder(p.w)
		p.yaml.SetIndent(2)
	}
	return p, nil
}

// print writes e. catalogText is the explanation shown under the entry
// with -x; it is ignored by the machine-readable modes.
func (p *printer) print(e *journal.Entry, catalogText string) error {
	var err error
	switch p.mode {
	case "short":
		p.short(e)
		p.catalog(catalogText)
	case "cat":
		p.w.Write(e.Get("MESSAGE"))
		p.w.WriteByte('\n')
	case "json":
		err = p.json.Encode(record(e))
	case "yaml":
		err = p.yaml.Encode(record(e))
	case "verbose":
		p.verbose(e)
		p.catalog(catalogText)
	}
	if err != nil {
		return err
	}
	return p.w.Flush()
}

func (p *printer) close() error {
	if p.yaml != nil {
		if err := p.yaml.Close(); err != nil {
			return err
		}
	}
	return p.w.Flush()
}

func (p *printer) timestamp(e *journal.Entry, layout string) string {
	t := e.Time()
	if p.utc {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	return t.Format(layout)
}

// short is journalctl's default: "Jan 02 15:04:05 host ident[pid]: message".
func (p *printer) short(e *journal.Entry) {
	b := p.w
	b.WriteString(p.timestamp(e, time.Stamp))
	if host := e.Get("_HOSTNAME"); host != nil {
		b.WriteByte(' ')
		b.Write(host)
	}

	ident := e.Get("SYSLOG_IDENTIFIER")
	if ident == nil {
		ident = e.Get("_COMM")
	}
	if ident != nil {
		b.WriteByte(' ')
		b.Write(ident)
		pid := e.Get("_PID")
		if pid == nil {
			pid = e.Get("SYSLOG_PID")
		}
		if pid != nil {
			fmt.Fprintf(b, "[%s]", pid)
		}
	}
	b.WriteString(": ")

	color := ""
	if p.color {
		color = priorityColor(e.Get("PRIORITY"))
	}
	if color != "" {
		b.WriteString(color)
	}
	b.WriteString(displayValue(e.Get("MESSAGE")))
	if color != "" {
		b.WriteString(colorReset)
	}
	b.WriteByte('\n')
}

func (p *printer) verbose(e *journal.Entry) {
	b := p.w
	fmt.Fprintf(b, "%s [%s]\n", p.timestamp(e, "Mon 2006-01-02 15:04:05.000000 MST"), e.Cursor)
	for _, name := range slices.Sorted(maps.Keys(e.Fields)) {
		if strings.HasPrefix(name, "__") {
			continue
		}
		for _, v := range e.Fields[name].All() {
			fmt.Fprintf(b, "    %s=%s\n", name, displayValue(v))
		}
	}
}

func (p *printer) catalog(text string) {
	if text == "" {
		return
	}
	for line := range strings.Lines(strings.TrimRight(text, "\n")) {
		p.w.WriteString("-- ")
		p.w.WriteString(strings.TrimSuffix(line, "\n"))
		p.w.WriteByte('\n')
	}
}

func priorityColor(prio []byte) string {
	if len(prio) != 1 {
		return ""
	}
	switch {
	case prio[0] <= '3':
		return colorRed
	case prio[0] == '4':
		return colorYellow
	case prio[0] == '5':
		return colorBold
	}
	return ""
}

// printable reports whether v can go to a terminal as is.
func printable(v []byte) bool {
	if !utf8.Valid(v) {
		return false
	}
	for _, r := range string(v) {
		if r != '\t' && r != '\n' && !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func displayValue(v []byte) string {
	if printable(v) {
		return string(v)
	}
	return fmt.Sprintf("[%s blob data]", humanize.IBytes(uint64(len(v))))
}

// record converts an entry for the json and yaml modes. Values that are not
// printable text become arrays of byte values; repeated fields become
// arrays, as in journalctl -o json.
func record(e *journal.Entry) map[string]any {
	out := make(map[string]any, len(e.Fields))
	for name, v := range e.Fields {
		if !v.IsMulti() {
			out[name] = exportValue(v.Bytes())
			continue
		}
		var vs []any
		for _, b := range v.All() {
			vs = append(vs, exportValue(b))
		}
		out[name] = vs
	}
	return out
}

func exportValue(b []byte) any {
	if printable(b) {
		return string(b)
	}
	ints := make([]int, len(b))
	for i, c := range b {
		ints[i] = int(c)
	}
	return ints
}

// parsePriority accepts a level name or number, or a range "from..to".
func parsePriority(s string) (from, to int, err error) {
	lo, hi, isRange := strings.Cut(s, "..")
	if !isRange {
		to, err = priorityLevel(s)
		return 0, to, err
	}
	if from, err = priorityLevel(lo); err != nil {
		return 0, 0, err
	}
	if to, err = priorityLevel(hi); err != nil {
		return 0, 0, err
	}
	if from > to {
		from, to = to, from
	}
	return from, to, nil
}

var priorityNames = []string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

func priorityLevel(s string) (int, error) {
	if i := slices.Index(priorityNames, strings.ToLower(s)); i >= 0 {
		return i, nil
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '7' {
		return int(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}
