// Package dirs provides standard directory resolution for sdreader.
// It knows where systemd keeps journals and catalogs, and where the CLI
// keeps its configuration, with environment overrides for tests.
package dirs

import (
	"os"
	"path/filepath"
)

// RuntimeJournalDir returns the volatile journal directory.
// Priority: $SDREADER_RUNTIME_JOURNAL_DIR > /run/log/journal
func RuntimeJournalDir() string {
	if v := os.Getenv("SDREADER_RUNTIME_JOURNAL_DIR"); v != "" {
		return v
	}
	return "/run/log/journal"
}

// PersistentJournalDir returns the persistent journal directory.
// Priority: $SDREADER_JOURNAL_DIR > /var/log/journal
func PersistentJournalDir() string {
	if v := os.Getenv("SDREADER_JOURNAL_DIR"); v != "" {
		return v
	}
	return "/var/log/journal"
}

// JournalDirs returns the runtime and persistent journal directories,
// below root when root is not empty (an OS tree or container image).
func JournalDirs(root string) (runtime, persistent string) {
	if root == "" {
		return RuntimeJournalDir(), PersistentJournalDir()
	}
	return filepath.Join(root, "run", "log", "journal"), filepath.Join(root, "var", "log", "journal")
}

// IsRuntimePath reports whether path lies in volatile storage.
func IsRuntimePath(path string) bool {
	rt := RuntimeJournalDir()
	if rel, err := filepath.Rel(rt, path); err == nil && filepath.IsLocal(rel) {
		return true
	}
	rel, err := filepath.Rel("/run", path)
	return err == nil && filepath.IsLocal(rel)
}

// CatalogDatabase returns the path of the compiled message catalog.
// Priority: $SDREADER_CATALOG_DATABASE > <root>/var/lib/systemd/catalog/database
func CatalogDatabase(root string) string {
	if v := os.Getenv("SDREADER_CATALOG_DATABASE"); v != "" {
		return v
	}
	return filepath.Join(rootOrSlash(root), "var", "lib", "systemd", "catalog", "database")
}

// CatalogSourceDirs returns the directories holding *.catalog sources,
// highest priority first.
// Priority: $SDREADER_CATALOG_DIRS (colon separated) > systemd's defaults
func CatalogSourceDirs(root string) []string {
	if v := os.Getenv("SDREADER_CATALOG_DIRS"); v != "" {
		return filepath.SplitList(v)
	}
	base := rootOrSlash(root)
	return []string{
		filepath.Join(base, "etc", "systemd", "catalog"),
		filepath.Join(base, "run", "systemd", "catalog"),
		filepath.Join(base, "usr", "local", "lib", "systemd", "catalog"),
		filepath.Join(base, "usr", "lib", "systemd", "catalog"),
	}
}

// ConfigDir returns the directory for journalread's configuration.
// Priority: $JOURNALREAD_CONFIG_DIR > $XDG_CONFIG_HOME/journalread > ~/.config/journalread
func ConfigDir() string {
	if v := os.Getenv("JOURNALREAD_CONFIG_DIR"); v != "" {
		return v
	}
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "journalread")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", "journalread")
	}
	return filepath.Join(os.TempDir(), "journalread-config")
}

func rootOrSlash(root string) string {
	if root == "" {
		return "/"
	}
	return root
}
