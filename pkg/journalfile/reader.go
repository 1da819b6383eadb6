package journalfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Errors returned while decoding a file.
var (
	ErrBadSignature       = errors.New("invalid journal signature")
	ErrUnsupportedFeature = errors.New("unsupported journal file feature")
	ErrCorrupt            = errors.New("corrupt journal file")
)

// DefaultCacheSize is the number of data payloads a Reader keeps decoded.
const DefaultCacheSize = 1024

// Reader gives random access to the objects of one journal file. It is not
// safe for concurrent use.
type Reader struct {
	f      *os.File
	path   string
	header Header
	size   int64

	cache *lru.Cache[uint64, []byte]

	// Entry offsets found so far, and where the walk of the entry array
	// chain stopped, so Refresh only reads what was appended.
	offsets   []uint64
	walkArray uint64
	walkIndex uint64
}

// OpenRead opens an existing journal file for reading.
func OpenRead(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads the header of f. The Reader takes ownership of f.
func NewReader(f *os.File) (*Reader, error) {
	cache, err := lru.New[uint64, []byte](DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	r := &Reader{f: f, path: f.Name(), cache: cache}
	if err := r.readHeader(); err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	fi, err := r.f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	r.size = fi.Size()

	buf := make([]byte, HeaderSize)
	n, err := r.f.ReadAt(buf, 0)
	if n < headerSizeOffset+8 {
		if err == nil {
			err = ErrCorrupt
		}
		return fmt.Errorf("read header: %w", err)
	}

	// Files written by older journald have a shorter header; the fields it
	// does not cover read as zero.
	hsize := le.Uint64(buf[headerSizeOffset:])
	if hsize < headerSizeOffset+8 || int64(hsize) > r.size {
		return fmt.Errorf("header size %d: %w", hsize, ErrCorrupt)
	}
	if hsize < HeaderSize {
		clear(buf[hsize:])
	}
	clear(buf[n:])

	var h Header
	if err := binary.Read(bytes.NewReader(buf), le, &h); err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if h.Signature != HeaderSignature {
		return ErrBadSignature
	}
	if extra := h.IncompatibleFlags &^ headerIncompatibleSupported; extra != 0 {
		return fmt.Errorf("incompatible flags %#x: %w", extra, ErrUnsupportedFeature)
	}

	if r.header.FileID != h.FileID {
		r.resetWalk()
	}
	r.header = h
	return nil
}

func (r *Reader) resetWalk() {
	r.offsets = nil
	r.walkArray = 0
	r.walkIndex = 0
	r.cache.Purge()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Path returns the file path.
func (r *Reader) Path() string {
	return r.path
}

// Header returns the parsed file header.
func (r *Reader) Header() Header {
	return r.header
}

// Size returns the file size as of the last Refresh.
func (r *Reader) Size() int64 {
	return r.size
}

// NEntries returns the number of entries in the file.
func (r *Reader) NEntries() uint64 {
	return r.header.NEntries
}

// Online reports whether a writer has the file open.
func (r *Reader) Online() bool {
	return r.header.State == StateOnline
}

// Refresh re-reads the header to pick up new entries. It reports whether
// the file changed since the last read.
func (r *Reader) Refresh() (bool, error) {
	old := r.header
	oldSize := r.size
	if err := r.readHeader(); err != nil {
		return false, fmt.Errorf("%s: %w", r.path, err)
	}
	changed := old.NEntries != r.header.NEntries ||
		old.TailEntryOffset != r.header.TailEntryOffset ||
		old.TailObjectOffset != r.header.TailObjectOffset ||
		old.FileID != r.header.FileID ||
		oldSize != r.size
	return changed, nil
}

func (r *Reader) readAt(offset int64, v any) error {
	size := binary.Size(v)
	buf := make([]byte, size)
	if _, err := r.f.ReadAt(buf, offset); err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(buf), le, v)
}

// objectHeader reads and checks the header of the object at offset.
func (r *Reader) objectHeader(offset uint64, typ uint8) (ObjectHeader, error) {
	var oh ObjectHeader
	if offset < HeaderSize || offset%8 != 0 {
		return oh, fmt.Errorf("object offset %#x: %w", offset, ErrCorrupt)
	}
	if err := r.readAt(int64(offset), &oh); err != nil {
		return oh, fmt.Errorf("read object at %#x: %w", offset, err)
	}
	if oh.Type != typ {
		return oh, fmt.Errorf("object at %#x has type %d, want %d: %w", offset, oh.Type, typ, ErrCorrupt)
	}
	if oh.Size < ObjectHeaderSize || offset+oh.Size > uint64(r.size) {
		// The file may have grown since we last looked.
		if fi, err := r.f.Stat(); err == nil {
			r.size = fi.Size()
		}
		if oh.Size < ObjectHeaderSize || offset+oh.Size > uint64(r.size) {
			return oh, fmt.Errorf("object at %#x size %d: %w", offset, oh.Size, ErrCorrupt)
		}
	}
	return oh, nil
}

// maxChain bounds linked-list walks so a corrupt file cannot loop forever.
func (r *Reader) maxChain() uint64 {
	return r.header.NObjects + 1
}

// EntryOffsets returns the offsets of all entries in file order.
func (r *Reader) EntryOffsets() ([]uint64, error) {
	if r.walkArray == 0 {
		r.walkArray = r.header.EntryArrayOffset
		r.walkIndex = 0
	}
	compact := r.header.Compact()
	itemSize := uint64(8)
	if compact {
		itemSize = 4
	}

	for steps := uint64(0); r.walkArray != 0 && uint64(len(r.offsets)) < r.header.NEntries; steps++ {
		if steps > r.maxChain() {
			return nil, fmt.Errorf("entry array chain: %w", ErrCorrupt)
		}
		oh, err := r.objectHeader(r.walkArray, ObjectEntryArray)
		if err != nil {
			return nil, err
		}
		n := (oh.Size - EntryArrayObjectHeaderSize) / itemSize
		buf := make([]byte, oh.Size-ObjectHeaderSize)
		if _, err := r.f.ReadAt(buf, int64(r.walkArray)+ObjectHeaderSize); err != nil {
			return nil, fmt.Errorf("read entry array: %w", err)
		}
		next := le.Uint64(buf[:8])
		items := buf[8:]

		for r.walkIndex < n {
			var off uint64
			if compact {
				off = uint64(le.Uint32(items[r.walkIndex*4:]))
			} else {
				off = le.Uint64(items[r.walkIndex*8:])
			}
			if off == 0 {
				break
			}
			r.offsets = append(r.offsets, off)
			r.walkIndex++
			if uint64(len(r.offsets)) == r.header.NEntries {
				break
			}
		}
		if r.walkIndex < n || next == 0 {
			// Resume in this array next time; it may fill up.
			break
		}
		r.walkArray = next
		r.walkIndex = 0
	}

	return r.offsets, nil
}

// EntryMeta reads the fixed fields of the entry at offset.
func (r *Reader) EntryMeta(offset uint64) (EntryMeta, error) {
	if _, err := r.objectHeader(offset, ObjectEntry); err != nil {
		return EntryMeta{}, err
	}
	var eo EntryObject
	if err := r.readAt(int64(offset), &eo); err != nil {
		return EntryMeta{}, fmt.Errorf("read entry: %w", err)
	}
	return EntryMeta{
		Offset:    offset,
		Seqnum:    eo.Seqnum,
		Realtime:  eo.Realtime,
		Monotonic: eo.Monotonic,
		BootID:    eo.BootID,
		XorHash:   eo.XorHash,
	}, nil
}

// EntryItems returns the data references of the entry at offset, in the
// order they are stored.
func (r *Reader) EntryItems(offset uint64) ([]Item, error) {
	oh, err := r.objectHeader(offset, ObjectEntry)
	if err != nil {
		return nil, err
	}
	if oh.Size < EntryObjectHeaderSize {
		return nil, fmt.Errorf("entry at %#x: %w", offset, ErrCorrupt)
	}
	buf := make([]byte, oh.Size-EntryObjectHeaderSize)
	if _, err := r.f.ReadAt(buf, int64(offset)+EntryObjectHeaderSize); err != nil {
		return nil, fmt.Errorf("read entry items: %w", err)
	}

	if r.header.Compact() {
		items := make([]Item, 0, len(buf)/CompactEntryItemSize)
		for i := 0; i+CompactEntryItemSize <= len(buf); i += CompactEntryItemSize {
			off := uint64(le.Uint32(buf[i:]))
			h, err := r.DataHash(off)
			if err != nil {
				return nil, err
			}
			items = append(items, Item{Offset: off, Hash: h})
		}
		return items, nil
	}

	items := make([]Item, 0, len(buf)/EntryItemSize)
	for i := 0; i+EntryItemSize <= len(buf); i += EntryItemSize {
		items = append(items, Item{
			Offset: le.Uint64(buf[i:]),
			Hash:   le.Uint64(buf[i+8:]),
		})
	}
	return items, nil
}

// DataHash returns the stored hash of the data object at offset.
func (r *Reader) DataHash(offset uint64) (uint64, error) {
	if _, err := r.objectHeader(offset, ObjectData); err != nil {
		return 0, err
	}
	var h uint64
	if err := r.readAt(int64(offset)+ObjectHeaderSize, &h); err != nil {
		return 0, fmt.Errorf("read data hash: %w", err)
	}
	return h, nil
}

func (r *Reader) dataPayloadOffset() uint64 {
	if r.header.Compact() {
		return CompactDataObjectHeaderSize
	}
	return DataObjectHeaderSize
}

// Data returns the NAME=VALUE payload of the data object at offset. The
// slice may be shared with the cache and must not be modified.
// For compressed objects a positive limit allows decoding to stop early,
// and the result is cut to limit bytes, never inside the field name;
// plain payloads are returned whole.
func (r *Reader) Data(offset uint64, limit uint64) ([]byte, error) {
	if p, ok := r.cache.Get(offset); ok {
		return r.clip(offset, p, limit), nil
	}

	oh, err := r.objectHeader(offset, ObjectData)
	if err != nil {
		return nil, err
	}
	start := r.dataPayloadOffset()
	if oh.Size < start {
		return nil, fmt.Errorf("data at %#x: %w", offset, ErrCorrupt)
	}
	raw := make([]byte, oh.Size-start)
	if _, err := r.f.ReadAt(raw, int64(offset+start)); err != nil {
		return nil, fmt.Errorf("read data payload: %w", err)
	}

	if oh.Flags&objectCompressionMask == 0 {
		r.cache.Add(offset, raw)
		return raw, nil
	}

	decodeLimit := limit
	if limit > 0 {
		decodeLimit = limit + maxFieldNameLen + 1
	}
	p, err := decompress(oh.Flags, raw, decodeLimit)
	if err != nil {
		return nil, fmt.Errorf("data at %#x: %w", offset, err)
	}
	if decodeLimit == 0 || uint64(len(p)) < decodeLimit {
		// Complete payload; later calls can reuse it.
		r.cache.Add(offset, p)
	}
	return cut(p, limit), nil
}

// clip applies limit to a cached payload if the object is compressed.
func (r *Reader) clip(offset uint64, p []byte, limit uint64) []byte {
	if limit == 0 || uint64(len(p)) <= limit {
		return p
	}
	oh, err := r.objectHeader(offset, ObjectData)
	if err != nil || oh.Flags&objectCompressionMask == 0 {
		return p
	}
	return cut(p, limit)
}

// cut shortens a payload to limit bytes but always keeps the field name
// and its '='.
func cut(p []byte, limit uint64) []byte {
	if limit == 0 || uint64(len(p)) <= limit {
		return p
	}
	n := limit
	if eq := bytes.IndexByte(p, '='); eq >= 0 && uint64(eq)+1 > n {
		n = uint64(eq) + 1
	}
	return p[:n]
}

// FindData looks up the data object holding payload exactly. It returns 0
// when the file has no such object.
func (r *Reader) FindData(payload []byte) (uint64, error) {
	h := HashFor(&r.header, payload)
	var found uint64
	err := r.walkHashChain(r.header.DataHashTableOffset, r.header.DataHashTableSize, h, ObjectData,
		func(off, objHash uint64) (bool, error) {
			if objHash != h {
				return true, nil
			}
			p, err := r.Data(off, 0)
			if err != nil {
				return false, err
			}
			if bytes.Equal(p, payload) {
				found = off
				return false, nil
			}
			return true, nil
		})
	return found, err
}

// walkHashChain calls fn for each object in the bucket of hash h.
// fn returns false to stop.
func (r *Reader) walkHashChain(tableOffset, tableSize, h uint64, typ uint8, fn func(off, objHash uint64) (bool, error)) error {
	buckets := tableSize / HashItemSize
	if tableOffset == 0 || buckets == 0 {
		return nil
	}
	var item HashItem
	if err := r.readAt(int64(tableOffset+(h%buckets)*HashItemSize), &item); err != nil {
		return fmt.Errorf("read hash table: %w", err)
	}
	return r.walkChain(item.HeadHashOffset, typ, fn)
}

func (r *Reader) walkChain(off uint64, typ uint8, fn func(off, objHash uint64) (bool, error)) error {
	for steps := uint64(0); off != 0; steps++ {
		if steps > r.maxChain() {
			return fmt.Errorf("hash chain: %w", ErrCorrupt)
		}
		if _, err := r.objectHeader(off, typ); err != nil {
			return err
		}
		// Data and field objects share the hash/next_hash_offset prefix.
		var link struct{ Hash, NextHashOffset uint64 }
		if err := r.readAt(int64(off)+ObjectHeaderSize, &link); err != nil {
			return fmt.Errorf("read hash link: %w", err)
		}
		more, err := fn(off, link.Hash)
		if err != nil || !more {
			return err
		}
		off = link.NextHashOffset
	}
	return nil
}

// FieldNames returns every field name stored in the file, sorted.
func (r *Reader) FieldNames() ([]string, error) {
	buckets := r.header.FieldHashTableSize / HashItemSize
	if r.header.FieldHashTableOffset == 0 || buckets == 0 {
		return nil, nil
	}
	buf := make([]byte, buckets*HashItemSize)
	if _, err := r.f.ReadAt(buf, int64(r.header.FieldHashTableOffset)); err != nil {
		return nil, fmt.Errorf("read field hash table: %w", err)
	}

	var names []string
	for i := uint64(0); i < buckets; i++ {
		head := le.Uint64(buf[i*HashItemSize:])
		err := r.walkChain(head, ObjectField, func(off, _ uint64) (bool, error) {
			name, err := r.fieldName(off)
			if err != nil {
				return false, err
			}
			names = append(names, name)
			return true, nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *Reader) fieldName(off uint64) (string, error) {
	oh, err := r.objectHeader(off, ObjectField)
	if err != nil {
		return "", err
	}
	if oh.Size < FieldObjectHeaderSize {
		return "", fmt.Errorf("field at %#x: %w", off, ErrCorrupt)
	}
	buf := make([]byte, oh.Size-FieldObjectHeaderSize)
	if _, err := r.f.ReadAt(buf, int64(off)+FieldObjectHeaderSize); err != nil {
		return "", fmt.Errorf("read field name: %w", err)
	}
	return string(buf), nil
}

// FieldData returns the offsets of all data objects for field, following
// the field's data chain.
func (r *Reader) FieldData(field string) ([]uint64, error) {
	h := HashFor(&r.header, []byte(field))
	var fieldOff uint64
	err := r.walkHashChain(r.header.FieldHashTableOffset, r.header.FieldHashTableSize, h, ObjectField,
		func(off, objHash uint64) (bool, error) {
			if objHash != h {
				return true, nil
			}
			name, err := r.fieldName(off)
			if err != nil {
				return false, err
			}
			if name == field {
				fieldOff = off
				return false, nil
			}
			return true, nil
		})
	if err != nil || fieldOff == 0 {
		return nil, err
	}

	var fo FieldObject
	if err := r.readAt(int64(fieldOff), &fo); err != nil {
		return nil, fmt.Errorf("read field: %w", err)
	}

	var out []uint64
	off := fo.HeadDataOffset
	for steps := uint64(0); off != 0; steps++ {
		if steps > r.maxChain() {
			return nil, fmt.Errorf("field data chain: %w", ErrCorrupt)
		}
		if _, err := r.objectHeader(off, ObjectData); err != nil {
			return nil, err
		}
		var do DataObject
		if err := r.readAt(int64(off), &do); err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}
		out = append(out, off)
		off = do.NextFieldOffset
	}
	return out, nil
}
