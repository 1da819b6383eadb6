package catalog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
)

// On-disk layout of the compiled catalog (systemd's catalog.c):
//
//	header: signature[8] compat le32 incompat le32 header_size le64
//	        n_items le64 catalog_item_size le64
//	items:  id[16] language[32] offset le64, sorted by id then language
//	strings: NUL-terminated texts; item offsets are relative to here
var databaseSignature = [8]byte{'R', 'H', 'H', 'H', 'K', 'S', 'L', 'P'}

const (
	databaseHeaderSize = 40
	databaseItemSize   = 56
	languageSize       = 32
)

// ErrBadDatabase is returned for files that are not a compiled catalog.
var ErrBadDatabase = errors.New("invalid catalog database")

var le = binary.LittleEndian

// ReadDatabaseFile reads a compiled catalog database.
func ReadDatabaseFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ReadDatabase(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ReadDatabase decodes a compiled catalog database.
func ReadDatabase(data []byte) (*Catalog, error) {
	if len(data) < databaseHeaderSize || !bytes.Equal(data[:8], databaseSignature[:]) {
		return nil, ErrBadDatabase
	}
	if incompat := le.Uint32(data[12:]); incompat != 0 {
		return nil, fmt.Errorf("incompatible flags %#x: %w", incompat, ErrBadDatabase)
	}
	headerSize := le.Uint64(data[16:])
	nItems := le.Uint64(data[24:])
	itemSize := le.Uint64(data[32:])
	if headerSize < databaseHeaderSize || itemSize < databaseItemSize {
		return nil, fmt.Errorf("header size %d item size %d: %w", headerSize, itemSize, ErrBadDatabase)
	}
	if nItems > uint64(len(data)) || headerSize+nItems*itemSize > uint64(len(data)) {
		return nil, fmt.Errorf("%d items do not fit: %w", nItems, ErrBadDatabase)
	}

	strs := data[headerSize+nItems*itemSize:]
	c := New()
	for i := uint64(0); i < nItems; i++ {
		item := data[headerSize+i*itemSize:]

		var id uuid.UUID
		copy(id[:], item[:16])
		lang := item[16 : 16+languageSize]
		if n := bytes.IndexByte(lang, 0); n >= 0 {
			lang = lang[:n]
		}

		off := le.Uint64(item[16+languageSize:])
		if off >= uint64(len(strs)) {
			return nil, fmt.Errorf("item %d offset %d: %w", i, off, ErrBadDatabase)
		}
		text := strs[off:]
		end := bytes.IndexByte(text, 0)
		if end < 0 {
			return nil, fmt.Errorf("item %d text not terminated: %w", i, ErrBadDatabase)
		}
		c.entries[key{id, string(lang)}] = string(text[:end])
	}
	return c, nil
}

// WriteDatabase encodes c in the compiled database format.
func (c *Catalog) WriteDatabase(w io.Writer) error {
	c.mu.RLock()
	keys := make([]key, 0, len(c.entries))
	for k := range c.entries {
		if len(k.lang) >= languageSize {
			c.mu.RUnlock()
			return fmt.Errorf("language %q too long", k.lang)
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].id != keys[j].id {
			return lessID(keys[i].id, keys[j].id)
		}
		return keys[i].lang < keys[j].lang
	})

	var items, strs bytes.Buffer
	offsets := make(map[string]uint64)
	for _, k := range keys {
		text := c.entries[k]
		off, ok := offsets[text]
		if !ok {
			off = uint64(strs.Len())
			offsets[text] = off
			strs.WriteString(text)
			strs.WriteByte(0)
		}

		var item [databaseItemSize]byte
		copy(item[:16], k.id[:])
		copy(item[16:16+languageSize], k.lang)
		le.PutUint64(item[16+languageSize:], off)
		items.Write(item[:])
	}
	c.mu.RUnlock()

	var hdr [databaseHeaderSize]byte
	copy(hdr[:8], databaseSignature[:])
	le.PutUint64(hdr[16:], databaseHeaderSize)
	le.PutUint64(hdr[24:], uint64(len(keys)))
	le.PutUint64(hdr[32:], databaseItemSize)

	for _, b := range [][]byte{hdr[:], items.Bytes(), strs.Bytes()} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
