// Package catalog resolves systemd message catalog entries: human readable
// explanations keyed by a log message's MESSAGE_ID.
//
// Catalogs are read either from the compiled database that
// `journalctl --update-catalog` maintains, or directly from *.catalog
// source files.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mbrock/sdreader/internal/dirs"
)

// ErrNotFound is returned by Lookup when no entry exists for an id.
var ErrNotFound = errors.New("catalog entry not found")

// Catalog maps (message id, language) to template text. The zero value is
// not usable; use New.
type Catalog struct {
	mu      sync.RWMutex
	entries map[key]string
}

type key struct {
	id   uuid.UUID
	lang string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[key]string)}
}

// Add stores text for id in lang ("" is the default language). A later
// Add for the same key replaces the text.
func (c *Catalog) Add(id uuid.UUID, lang, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key{id, lang}] = text
}

// Len returns the number of stored (id, language) pairs.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup returns the template for id, trying langs in order and then the
// default language. With no langs the environment's locale is used.
func (c *Catalog) Lookup(id uuid.UUID, langs ...string) (string, error) {
	if len(langs) == 0 {
		langs = Languages()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range langs {
		if text, ok := c.entries[key{id, l}]; ok {
			return text, nil
		}
	}
	if text, ok := c.entries[key{id, ""}]; ok {
		return text, nil
	}
	return "", fmt.Errorf("%s: %w", FormatID(id), ErrNotFound)
}

// IDs returns the distinct message ids in the catalog, sorted.
func (c *Catalog) IDs() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for k := range c.entries {
		if !seen[k.id] {
			seen[k.id] = true
			out = append(out, k.id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i], out[j]) })
	return out
}

func lessID(a, b uuid.UUID) bool {
	return string(a[:]) < string(b[:])
}

// ParseID accepts a message id as 32 hex digits or in UUID form.
func ParseID(s string) (uuid.UUID, error) {
	t := strings.TrimSpace(s)
	if len(t) != 32 && len(t) != 36 {
		return uuid.UUID{}, fmt.Errorf("invalid message id %q: want 32 hex digits or a UUID", s)
	}
	id, err := uuid.Parse(t)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid message id %q: %w", s, err)
	}
	return id, nil
}

// FormatID renders id the way journal fields carry it: 32 lowercase hex digits.
func FormatID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

// Languages returns the catalog languages preferred by the environment,
// most specific first: LC_ALL, then LC_MESSAGES, then LANG. "de_DE.UTF-8"
// yields "de_DE" and "de". The C and POSIX locales yield nothing.
func Languages() []string {
	var loc string
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" {
			loc = v
			break
		}
	}
	return languagesFor(loc)
}

func languagesFor(loc string) []string {
	if i := strings.IndexAny(loc, ".@"); i >= 0 {
		loc = loc[:i]
	}
	if loc == "" || loc == "C" || loc == "POSIX" {
		return nil
	}
	out := []string{loc}
	if i := strings.IndexByte(loc, '_'); i > 0 {
		out = append(out, loc[:i])
	}
	return out
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the system catalog: the compiled database if it exists,
// otherwise the *.catalog sources. It is loaded once per process.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load("")
	})
	return defaultCat, defaultErr
}

// Load reads the catalog of the OS tree at root ("" for the running system).
func Load(root string) (*Catalog, error) {
	db := dirs.CatalogDatabase(root)
	c, err := ReadDatabaseFile(db)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	c = New()
	if err := c.LoadSourceDirs(dirs.CatalogSourceDirs(root)...); err != nil {
		return nil, err
	}
	return c, nil
}
