package journal

import "fmt"

// QueryUnique returns the distinct values of field across the whole
// journal. Matches are ignored.
func (r *Reader) QueryUnique(field string) ([][]byte, error) {
	if err := r.check("query unique"); err != nil {
		return nil, err
	}
	if err := validateFieldName(field); err != nil {
		return nil, fmt.Errorf("query unique: %w", err)
	}
	if !r.caps.QueryUnique {
		return nil, fmt.Errorf("query unique: %w", ErrUnsupported)
	}

	seen := make(map[string]bool)
	var out [][]byte
	err := r.store.Unique(field, func(rec []byte) error {
		name, v, err := extractField(rec)
		if err != nil {
			return err
		}
		if name != field {
			return nil
		}
		if !seen[string(v)] {
			seen[string(v)] = true
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, translate("query unique", err)
	}
	return out, nil
}

// EnumerateFields returns every field name used in the journal.
func (r *Reader) EnumerateFields() ([]string, error) {
	if err := r.check("enumerate fields"); err != nil {
		return nil, err
	}
	if !r.caps.EnumerateFields {
		return nil, fmt.Errorf("enumerate fields: %w", ErrUnsupported)
	}
	seen := make(map[string]bool)
	var out []string
	err := r.store.Fields(func(name string) error {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
		return nil
	})
	if err != nil {
		return nil, translate("enumerate fields", err)
	}
	return out, nil
}

// Usage returns the disk space used by the open journal files, in bytes.
func (r *Reader) Usage() (uint64, error) {
	if err := r.check("usage"); err != nil {
		return 0, err
	}
	n, err := r.store.Usage()
	return n, translate("usage", err)
}

// Cutoff returns the realtime timestamps of the oldest and newest entries.
func (r *Reader) Cutoff() (start, end uint64, err error) {
	if err := r.check("cutoff"); err != nil {
		return 0, 0, err
	}
	start, end, err = r.store.Cutoff()
	return start, end, translate("cutoff", err)
}

// HasRuntimeFiles reports whether any open file is in volatile storage.
func (r *Reader) HasRuntimeFiles() (bool, error) {
	if err := r.check("has runtime files"); err != nil {
		return false, err
	}
	ok, err := r.store.HasRuntimeFiles()
	return ok, translate("has runtime files", err)
}

// HasPersistentFiles reports whether any open file is in persistent storage.
func (r *Reader) HasPersistentFiles() (bool, error) {
	if err := r.check("has persistent files"); err != nil {
		return false, err
	}
	ok, err := r.store.HasPersistentFiles()
	return ok, translate("has persistent files", err)
}
