package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// LoadSourceDirs imports every *.catalog file found in dirs. When the same
// file name exists in several directories only the first one is read, and
// files are imported in name order. The first definition of an (id,
// language) pair wins.
func (c *Catalog) LoadSourceDirs(dirs ...string) error {
	files := make(map[string]string)
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.catalog"))
		if err != nil {
			return err
		}
		for _, m := range matches {
			base := filepath.Base(m)
			if _, ok := files[base]; !ok {
				files[base] = m
			}
		}
	}

	names := make([]string, 0, len(files))
	for base := range files {
		names = append(names, base)
	}
	sort.Strings(names)

	for _, base := range names {
		if err := c.LoadSourceFile(files[base]); err != nil {
			return err
		}
	}
	return nil
}

// LoadSourceFile imports one *.catalog file.
func (c *Catalog) LoadSourceFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.LoadSource(f, filepath.Base(path))
}

// LoadSource imports catalog source text. name is used for error messages
// and supplies the default language when it looks like "foo.<lang>.catalog".
//
// An entry starts with a header line "-- <message id> [language]" preceded
// by an empty line (or the start of the file). Lines starting with '#' or
// ';' are comments. Runs of empty lines inside text collapse to one.
func (c *Catalog) LoadSource(r io.Reader, name string) error {
	defLang := languageFromFileName(name)

	var (
		gotID     bool
		id        uuid.UUID
		lang      string
		payload   strings.Builder
		emptyLine = true
		lineNo    int
	)

	finish := func() {
		if !gotID {
			return
		}
		c.mu.Lock()
		k := key{id, lang}
		if _, dup := c.entries[k]; !dup {
			c.entries[k] = payload.String()
		}
		c.mu.Unlock()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t\r")

		if line == "" {
			emptyLine = true
			continue
		}
		if line[0] == '#' || line[0] == ';' {
			continue
		}

		if emptyLine {
			if hid, hlang, ok, err := parseHeader(line); ok {
				if err != nil {
					return fmt.Errorf("%s:%d: %w", name, lineNo, err)
				}
				finish()
				gotID = true
				id = hid
				lang = hlang
				if lang == "" {
					lang = defLang
				}
				payload.Reset()
				emptyLine = false
				continue
			}
		}

		if !gotID {
			return fmt.Errorf("%s:%d: text before the first message id", name, lineNo)
		}
		if emptyLine && payload.Len() > 0 {
			payload.WriteByte('\n')
		}
		payload.WriteString(line)
		payload.WriteByte('\n')
		emptyLine = false
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	finish()
	return nil
}

// parseHeader recognizes "-- <32 hex digits>[ <language>]". ok is false when
// line is not a header at all.
func parseHeader(line string) (id uuid.UUID, lang string, ok bool, err error) {
	rest, found := strings.CutPrefix(line, "-- ")
	if !found || len(rest) < 32 || (len(rest) > 32 && rest[32] != ' ') {
		return id, "", false, nil
	}
	id, perr := uuid.Parse(rest[:32])
	if perr != nil {
		return id, "", false, nil
	}
	if len(rest) > 32 {
		lang = strings.TrimSpace(rest[33:])
		if len(lang) > 31 {
			return id, "", true, fmt.Errorf("language %q too long", lang)
		}
	}
	return id, lang, true, nil
}

func languageFromFileName(name string) string {
	base, ok := strings.CutSuffix(filepath.Base(name), ".catalog")
	if !ok {
		return ""
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	lang := base[i+1:]
	if lang == "" || len(lang) > 31 {
		return ""
	}
	return lang
}
