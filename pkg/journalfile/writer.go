// Package journalfile reads and writes systemd journal (*.journal) files.
//
// The reader is the storage layer of the native journal engine; the writer
// produces files that journalctl (and the reader) accept, and is used for
// fixtures and demos. Based on https://systemd.io/JOURNAL_FILE_FORMAT/
package journalfile

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Default hash table sizes (number of HashItems)
const (
	DefaultDataHashTableSize  = 2047 // ~32KB
	DefaultFieldHashTableSize = 333  // ~5KB
)

// DefaultCompressThreshold is the payload size from which data objects are
// compressed when the writer has a Compression configured.
const DefaultCompressThreshold = 512

// WriterOptions configures a new journal file.
type WriterOptions struct {
	MachineID ID128
	BootID    ID128

	// SeqnumID defaults to a random id. Files sharing a seqnum id are
	// ordered by sequence number when read together.
	SeqnumID ID128

	// FirstSeqnum is the sequence number of the first entry minus one.
	FirstSeqnum uint64

	Compression       Compression
	CompressThreshold int

	// JenkinsHash selects the legacy unkeyed lookup3 hash for hash tables
	// instead of siphash24 keyed by the file id.
	JenkinsHash bool
}

// File represents an open journal file
type File struct {
	mu   sync.Mutex
	f    *os.File
	path string

	header    Header
	machineID ID128
	bootID    ID128

	compression       Compression
	compressThreshold int

	// In-memory hash tables for dedup
	dataHashTable  []HashItem
	fieldHashTable []HashItem

	// Cache of data hashes to offsets for fast lookup
	dataCache map[uint64]uint64 // hash -> offset

	// Cache of field name hashes to field offsets
	fieldCache map[uint64]uint64 // hash -> offset

	// Tracks whether new entries were appended since the last durable sync.
	dirty bool
}

// Create creates a new journal file at path
func Create(path string, machineID, bootID ID128) (*File, error) {
	return CreateWithOptions(path, WriterOptions{MachineID: machineID, BootID: bootID})
}

// CreateWithOptions creates a new journal file at path.
func CreateWithOptions(path string, opts WriterOptions) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return nil, fmt.Errorf("create journal file: %w", err)
	}

	if opts.CompressThreshold <= 0 {
		opts.CompressThreshold = DefaultCompressThreshold
	}

	jf := &File{
		f:                 f,
		path:              path,
		machineID:         opts.MachineID,
		bootID:            opts.BootID,
		compression:       opts.Compression,
		compressThreshold: opts.CompressThreshold,
		dataCache:         make(map[uint64]uint64),
		fieldCache:        make(map[uint64]uint64),
	}

	if err := jf.initialize(opts); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	return jf, nil
}

// OpenAppend opens an existing journal file for appending new entries.
func OpenAppend(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0640)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}

	jf := &File{
		f:                 f,
		path:              path,
		compressThreshold: DefaultCompressThreshold,
		dataCache:         make(map[uint64]uint64),
		fieldCache:        make(map[uint64]uint64),
	}

	if err := jf.load(); err != nil {
		f.Close()
		return nil, err
	}
	return jf, nil
}

func (jf *File) load() error {
	buf := make([]byte, HeaderSize)
	if _, err := jf.f.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if err := binary.Read(bytes.NewReader(buf), le, &jf.header); err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if jf.header.Signature != HeaderSignature {
		return fmt.Errorf("invalid journal signature")
	}
	if jf.header.Compact() {
		return fmt.Errorf("appending to compact journal files is not supported")
	}

	// Keep the machine id, start a new boot for this writer.
	jf.machineID = jf.header.MachineID
	if _, err := rand.Read(jf.bootID[:]); err != nil {
		return fmt.Errorf("generate boot ID: %w", err)
	}

	var err error
	jf.dataHashTable, err = jf.readHashTable(jf.header.DataHashTableOffset, jf.header.DataHashTableSize)
	if err != nil {
		return fmt.Errorf("read data hash table: %w", err)
	}
	jf.fieldHashTable, err = jf.readHashTable(jf.header.FieldHashTableOffset, jf.header.FieldHashTableSize)
	if err != nil {
		return fmt.Errorf("read field hash table: %w", err)
	}

	// Rebuild the dedup caches so reopened files keep one object per payload.
	if err := jf.indexChains(jf.dataHashTable, jf.dataCache); err != nil {
		return fmt.Errorf("index data objects: %w", err)
	}
	if err := jf.indexChains(jf.fieldHashTable, jf.fieldCache); err != nil {
		return fmt.Errorf("index field objects: %w", err)
	}
	return nil
}

func (jf *File) indexChains(table []HashItem, cache map[uint64]uint64) error {
	for _, item := range table {
		off := item.HeadHashOffset
		for steps := uint64(0); off != 0; steps++ {
			if steps > jf.header.NObjects {
				return fmt.Errorf("hash chain loop at %#x", off)
			}
			var link struct{ Hash, NextHashOffset uint64 }
			if err := jf.readAt(int64(off)+ObjectHeaderSize, &link); err != nil {
				return err
			}
			if _, ok := cache[link.Hash]; !ok {
				cache[link.Hash] = off
			}
			off = link.NextHashOffset
		}
	}
	return nil
}

func (jf *File) readHashTable(offset, size uint64) ([]HashItem, error) {
	items := make([]HashItem, size/HashItemSize)
	buf := make([]byte, size)
	if _, err := jf.f.ReadAt(buf, int64(offset)); err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(buf), le, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (jf *File) initialize(opts WriterOptions) error {
	// Generate unique file ID
	var fileID ID128
	if _, err := rand.Read(fileID[:]); err != nil {
		return fmt.Errorf("generate file ID: %w", err)
	}

	seqnumID := opts.SeqnumID
	if seqnumID.IsZero() {
		if _, err := rand.Read(seqnumID[:]); err != nil {
			return fmt.Errorf("generate seqnum ID: %w", err)
		}
	}

	// Calculate sizes - hash tables are Objects with ObjectHeader
	dataHashItemsSize := DefaultDataHashTableSize * HashItemSize
	fieldHashItemsSize := DefaultFieldHashTableSize * HashItemSize
	dataHashObjSize := align64(uint64(ObjectHeaderSize + dataHashItemsSize))
	fieldHashObjSize := align64(uint64(ObjectHeaderSize + fieldHashItemsSize))

	// Layout: Header | DataHashTableObject | FieldHashTableObject | arena...
	dataHashObjOffset := uint64(HeaderSize)
	fieldHashObjOffset := dataHashObjOffset + dataHashObjSize

	var incompatible uint32
	if !opts.JenkinsHash {
		incompatible |= HeaderIncompatibleKeyedHash
	}

	jf.header = Header{
		Signature:         HeaderSignature,
		IncompatibleFlags: incompatible,
		State:             StateOffline,
		FileID:            fileID,
		MachineID:         jf.machineID,
		SeqnumID:          seqnumID,
		HeaderSize:        HeaderSize,
		ArenaSize:         dataHashObjSize + fieldHashObjSize,
		// The header stores offset to the ITEMS, not the object header
		DataHashTableOffset:  dataHashObjOffset + ObjectHeaderSize,
		DataHashTableSize:    uint64(dataHashItemsSize),
		FieldHashTableOffset: fieldHashObjOffset + ObjectHeaderSize,
		FieldHashTableSize:   uint64(fieldHashItemsSize),
		NObjects:             2, // The two hash table objects
		TailEntrySeqnum:      opts.FirstSeqnum,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, le, &jf.header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := jf.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	jf.dataHashTable = make([]HashItem, DefaultDataHashTableSize)
	if err := jf.writeTableObject(ObjectDataHashTable, dataHashObjSize, jf.dataHashTable); err != nil {
		return fmt.Errorf("write data hash table: %w", err)
	}
	jf.fieldHashTable = make([]HashItem, DefaultFieldHashTableSize)
	if err := jf.writeTableObject(ObjectFieldHashTable, fieldHashObjSize, jf.fieldHashTable); err != nil {
		return fmt.Errorf("write field hash table: %w", err)
	}

	jf.header.TailObjectOffset = fieldHashObjOffset

	return jf.syncHeader()
}

func (jf *File) writeTableObject(typ uint8, size uint64, items []HashItem) error {
	hdr := ObjectHeader{Type: typ, Size: size}
	if err := binary.Write(jf.f, le, &hdr); err != nil {
		return err
	}
	return binary.Write(jf.f, le, items)
}

func (jf *File) syncHeader() error {
	// Write the entire header in a single syscall. At 272 bytes this fits well
	// within a filesystem block, giving readers a coherent view without the
	// risk of observing partially-updated fields.
	var buf bytes.Buffer
	if err := binary.Write(&buf, le, &jf.header); err != nil {
		return err
	}
	_, err := jf.f.WriteAt(buf.Bytes(), 0)
	return err
}

// SetBootID changes the boot id stamped on subsequently appended entries.
func (jf *File) SetBootID(id ID128) {
	jf.mu.Lock()
	defer jf.mu.Unlock()
	jf.bootID = id
}

// AppendEntry appends a new journal entry stamped with the current clocks.
func (jf *File) AppendEntry(fields []Field) error {
	return jf.AppendEntryAt(uint64(time.Now().UnixMicro()), monotonicNow(), fields)
}

// AppendEntryAt appends a new journal entry with explicit realtime and
// monotonic timestamps (microseconds). Fields keep their order; repeated
// names are kept as separate items.
func (jf *File) AppendEntryAt(realtime, monotonic uint64, fields []Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("append entry: no fields")
	}
	for _, fl := range fields {
		if !ValidFieldName(fl.Name) {
			return fmt.Errorf("append entry: invalid field name %q", fl.Name)
		}
	}

	jf.mu.Lock()
	defer jf.mu.Unlock()

	// File lock for cross-process synchronization
	if err := unix.Flock(int(jf.f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	defer unix.Flock(int(jf.f.Fd()), unix.LOCK_UN)

	// Mark file as being written so readers know indexes may be changing.
	if err := jf.beginWrite(); err != nil {
		return err
	}

	jf.dirty = true

	items := make([]EntryItem, 0, len(fields))
	seen := make(map[uint64]bool, len(fields))
	var xorHash uint64

	for _, fl := range fields {
		data := make([]byte, 0, len(fl.Name)+1+len(fl.Value))
		data = append(data, fl.Name...)
		data = append(data, '=')
		data = append(data, fl.Value...)

		hash := HashFor(&jf.header, data)

		// journald stores an identical NAME=VALUE once per entry.
		if seen[hash] {
			continue
		}
		seen[hash] = true

		// The xor hash is always Jenkins, even in keyed-hash files.
		xorHash ^= JenkinsHash64(data)

		offset, exists := jf.dataCache[hash]
		if !exists {
			var err error
			offset, err = jf.appendData(data, hash, len(fl.Name))
			if err != nil {
				return fmt.Errorf("append data %q: %w", fl.Name, err)
			}
			jf.dataCache[hash] = offset
		}

		items = append(items, EntryItem{
			ObjectOffset: offset,
			Hash:         hash,
		})
	}

	return jf.appendEntryObject(realtime, monotonic, xorHash, items)
}

// ValidFieldName reports whether name is a legal journal field name:
// 1 to 64 characters of A-Z, 0-9 and '_', not starting with a digit.
func ValidFieldName(name string) bool {
	if name == "" || len(name) > maxFieldNameLen {
		return false
	}
	if name[0] >= '0' && name[0] <= '9' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') && c != '_' {
			return false
		}
	}
	return true
}

func monotonicNow() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return uint64(time.Now().UnixMicro())
	}
	return uint64(ts.Sec)*1_000_000 + uint64(ts.Nsec)/1000
}

// align64 rounds up to the next 8-byte boundary
func align64(n uint64) uint64 {
	return (n + 7) &^ 7
}

// writeAt writes a binary-encodable value at the given file offset.
func (jf *File) writeAt(offset int64, v any) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, le, v); err != nil {
		return err
	}
	_, err := jf.f.WriteAt(buf.Bytes(), offset)
	return err
}

// readAt reads a binary-decodable value from the given file offset.
func (jf *File) readAt(offset int64, v any) error {
	size := binary.Size(v)
	buf := make([]byte, size)
	if _, err := jf.f.ReadAt(buf, offset); err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(buf), le, v)
}

// tailOffset seeks to the end of the file and pads it to an 8-byte boundary.
func (jf *File) tailOffset() (uint64, error) {
	offset, err := jf.f.Seek(0, 2)
	if err != nil {
		return 0, err
	}
	aligned := align64(uint64(offset))
	if aligned != uint64(offset) {
		padding := make([]byte, aligned-uint64(offset))
		if _, err := jf.f.Write(padding); err != nil {
			return 0, err
		}
	}
	return aligned, nil
}

// beginWrite mirrors journald: mark the header ONLINE so readers know the file
// may be mid-update. We immediately persist the state flip so new readers see it.
func (jf *File) beginWrite() error {
	if jf.header.State == StateOnline {
		return nil
	}
	jf.header.State = StateOnline
	// Persist just the state byte to avoid rewriting the full header mid-append.
	if _, err := jf.f.WriteAt([]byte{byte(StateOnline)}, 16); err != nil {
		return err
	}
	return nil
}

func (jf *File) appendData(data []byte, hash uint64, nameLen int) (uint64, error) {
	fieldName := data[:nameLen]

	fieldHash := HashFor(&jf.header, fieldName)
	fieldOffset, err := jf.ensureField(fieldName, fieldHash)
	if err != nil {
		return 0, err
	}

	// Read the field's current head_data_offset
	var prevHeadData uint64
	if err := jf.readAt(int64(fieldOffset)+FieldObjectHeaderSize-8, &prevHeadData); err != nil {
		return 0, err
	}

	payload := data
	var flags uint8
	if jf.compression != CompressNone && len(data) >= jf.compressThreshold {
		out, ok, err := compress(jf.compression, data)
		if err != nil {
			return 0, err
		}
		if ok {
			payload = out
			flags = jf.compression.objectFlag()
			jf.header.IncompatibleFlags |= jf.compression.headerFlag()
		}
	}

	// Object size is exact (header + payload), no padding in size
	objSize := uint64(DataObjectHeaderSize + len(payload))

	offset, err := jf.tailOffset()
	if err != nil {
		return 0, err
	}

	dataHdr := DataObject{
		ObjectHeader:    ObjectHeader{Type: ObjectData, Flags: flags, Size: objSize},
		Hash:            hash,
		NextFieldOffset: prevHeadData, // link to previous head
	}
	if err := binary.Write(jf.f, le, &dataHdr); err != nil {
		return 0, err
	}
	if _, err := jf.f.Write(payload); err != nil {
		return 0, err
	}

	// Update field's head_data_offset to point to this new data object
	if err := jf.writeAt(int64(fieldOffset)+FieldObjectHeaderSize-8, &offset); err != nil {
		return 0, err
	}

	hashIdx := hash % uint64(len(jf.dataHashTable))
	if err := jf.linkHash(jf.dataHashTable, jf.header.DataHashTableOffset, offset, hashIdx); err != nil {
		return 0, err
	}

	jf.header.NObjects++
	jf.header.NData++
	jf.header.TailObjectOffset = offset

	return offset, nil
}

func (jf *File) ensureField(fieldName []byte, hash uint64) (uint64, error) {
	if offset, ok := jf.fieldCache[hash]; ok {
		return offset, nil
	}

	objSize := uint64(FieldObjectHeaderSize + len(fieldName))

	offset, err := jf.tailOffset()
	if err != nil {
		return 0, err
	}

	fieldHdr := FieldObject{
		ObjectHeader: ObjectHeader{Type: ObjectField, Size: objSize},
		Hash:         hash,
	}
	if err := binary.Write(jf.f, le, &fieldHdr); err != nil {
		return 0, err
	}
	if _, err := jf.f.Write(fieldName); err != nil {
		return 0, err
	}

	hashIdx := hash % uint64(len(jf.fieldHashTable))
	if err := jf.linkHash(jf.fieldHashTable, jf.header.FieldHashTableOffset, offset, hashIdx); err != nil {
		return 0, err
	}

	jf.fieldCache[hash] = offset

	jf.header.NObjects++
	jf.header.NFields++
	jf.header.TailObjectOffset = offset

	return offset, nil
}

// linkHash appends the object at offset to bucket idx of a hash table.
// Data and field objects both keep next_hash_offset right after their hash.
func (jf *File) linkHash(table []HashItem, tableOffset, offset, idx uint64) error {
	item := &table[idx]
	prevTail := item.TailHashOffset

	if item.HeadHashOffset == 0 {
		item.HeadHashOffset = offset
	}
	item.TailHashOffset = offset

	if prevTail != 0 {
		if err := jf.writeAt(int64(prevTail)+ObjectHeaderSize+8, &offset); err != nil {
			return err
		}
	}

	return jf.writeAt(int64(tableOffset+idx*HashItemSize), item)
}

// linkDataToEntry updates a data object to reference an entry.
// For the first entry, sets entry_offset. For additional entries, uses entry arrays.
func (jf *File) linkDataToEntry(dataOffset, entryOffset uint64) error {
	entryInfoOffset := int64(dataOffset) + DataObjectHeaderSize - 24
	var info DataEntryInfo
	if err := jf.readAt(entryInfoOffset, &info); err != nil {
		return err
	}

	switch {
	case info.EntryOffset == 0:
		info.EntryOffset = entryOffset
	case info.EntryArrayOffset == 0:
		arrayOffset, err := jf.createEntryArray(entryOffset)
		if err != nil {
			return err
		}
		info.EntryArrayOffset = arrayOffset
	default:
		if err := jf.appendToEntryArray(info.EntryArrayOffset, entryOffset); err != nil {
			return err
		}
	}

	info.NEntries++
	return jf.writeAt(entryInfoOffset, &info)
}

// createEntryArray creates a new entry array object with one entry.
func (jf *File) createEntryArray(entryOffset uint64) (uint64, error) {
	const initialCapacity = 16
	objSize := uint64(EntryArrayObjectHeaderSize + 8*initialCapacity)

	offset, err := jf.tailOffset()
	if err != nil {
		return 0, err
	}

	arrayHdr := EntryArrayObject{
		ObjectHeader: ObjectHeader{Type: ObjectEntryArray, Size: objSize},
	}
	if err := binary.Write(jf.f, le, &arrayHdr); err != nil {
		return 0, err
	}
	items := make([]uint64, initialCapacity)
	items[0] = entryOffset
	if err := binary.Write(jf.f, le, items); err != nil {
		return 0, err
	}

	jf.header.NObjects++
	jf.header.NEntryArrays++
	jf.header.TailObjectOffset = offset

	return offset, nil
}

// appendToEntryArray appends an entry to the entry array chain.
func (jf *File) appendToEntryArray(arrayOffset, entryOffset uint64) error {
	for {
		var hdr EntryArrayObject
		if err := jf.readAt(int64(arrayOffset), &hdr); err != nil {
			return err
		}

		if hdr.NextEntryArrayOffset != 0 {
			arrayOffset = hdr.NextEntryArrayOffset
			continue
		}

		itemCount := (hdr.Size - EntryArrayObjectHeaderSize) / 8
		items := make([]uint64, itemCount)
		itemsOffset := int64(arrayOffset) + EntryArrayObjectHeaderSize
		buf := make([]byte, itemCount*8)
		if _, err := jf.f.ReadAt(buf, itemsOffset); err != nil {
			return err
		}
		if err := binary.Read(bytes.NewReader(buf), le, items); err != nil {
			return err
		}

		for i := uint64(0); i < itemCount; i++ {
			if items[i] == 0 {
				return jf.writeAt(itemsOffset+int64(i*8), &entryOffset)
			}
		}

		newArrayOffset, err := jf.createEntryArray(entryOffset)
		if err != nil {
			return err
		}
		return jf.writeAt(int64(arrayOffset)+ObjectHeaderSize, &newArrayOffset)
	}
}

func (jf *File) appendEntryObject(realtime, monotonic, xorHash uint64, items []EntryItem) error {
	objSize := uint64(EntryObjectHeaderSize + len(items)*EntryItemSize)

	offset, err := jf.tailOffset()
	if err != nil {
		return err
	}

	jf.header.TailEntrySeqnum++
	seqnum := jf.header.TailEntrySeqnum

	entryHdr := EntryObject{
		ObjectHeader: ObjectHeader{Type: ObjectEntry, Size: objSize},
		Seqnum:       seqnum,
		Realtime:     realtime,
		Monotonic:    monotonic,
		BootID:       jf.bootID,
		XorHash:      xorHash,
	}
	if err := binary.Write(jf.f, le, &entryHdr); err != nil {
		return err
	}
	if err := binary.Write(jf.f, le, items); err != nil {
		return err
	}

	for _, item := range items {
		if err := jf.linkDataToEntry(item.ObjectOffset, offset); err != nil {
			return fmt.Errorf("linking data to entry: %w", err)
		}
	}

	newArrayOffset, err := jf.appendEntryArray(jf.header.TailEntryArrayOffset, offset)
	if err != nil {
		return err
	}

	jf.header.NObjects += 2 // entry + entry array
	jf.header.NEntryArrays++
	if jf.header.EntryArrayOffset == 0 {
		jf.header.EntryArrayOffset = newArrayOffset
	}
	jf.header.TailEntryArrayOffset = uint32(newArrayOffset)
	jf.header.TailEntryArrayNEntries = 1
	jf.header.TailObjectOffset = newArrayOffset
	jf.header.NEntries++
	jf.header.TailEntryOffset = offset
	jf.header.TailEntryBootID = jf.bootID
	jf.header.TailEntryRealtime = realtime
	jf.header.TailEntryMonotonic = monotonic

	if jf.header.HeadEntrySeqnum == 0 {
		jf.header.HeadEntrySeqnum = seqnum
		jf.header.HeadEntryRealtime = realtime
	}
	if endPos, err := jf.f.Seek(0, 2); err == nil {
		jf.header.ArenaSize = uint64(endPos) - HeaderSize
	}

	// Sync/Close will flip offline and fsync.
	jf.dirty = true
	return nil
}

// Sync flushes pending writes and sets state to OFFLINE so external readers
// (like journalctl) can access the file. The file remains open for further writes.
func (jf *File) Sync() error {
	jf.mu.Lock()
	defer jf.mu.Unlock()

	return jf.syncLocked()
}

// Close closes the journal file
func (jf *File) Close() error {
	jf.mu.Lock()
	defer jf.mu.Unlock()

	if err := jf.syncLocked(); err != nil {
		return err
	}
	return jf.f.Close()
}

// syncLocked assumes jf.mu is held.
func (jf *File) syncLocked() error {
	if !jf.dirty {
		return nil
	}

	if err := jf.beginWrite(); err != nil {
		return err
	}

	if endPos, err := jf.f.Seek(0, 2); err == nil {
		jf.header.ArenaSize = uint64(endPos) - HeaderSize
	}

	jf.header.State = StateOffline
	if err := jf.syncHeader(); err != nil {
		return err
	}

	if err := jf.f.Sync(); err != nil {
		return err
	}

	jf.dirty = false
	return nil
}

// appendEntryArray writes a new entry array object containing a single entry offset
// and links it from the previous tail. Returns the offset of the new array.
func (jf *File) appendEntryArray(prevTail uint32, entryOffset uint64) (uint64, error) {
	objSize := uint64(EntryArrayObjectHeaderSize + 8) // one offset

	offset, err := jf.tailOffset()
	if err != nil {
		return 0, err
	}

	arrayHdr := EntryArrayObject{
		ObjectHeader: ObjectHeader{Type: ObjectEntryArray, Size: objSize},
	}
	if err := binary.Write(jf.f, le, &arrayHdr); err != nil {
		return 0, err
	}
	if err := binary.Write(jf.f, le, &entryOffset); err != nil {
		return 0, err
	}

	if prevTail != 0 {
		if err := jf.writeAt(int64(prevTail)+ObjectHeaderSize, &offset); err != nil {
			return 0, err
		}
	}

	return offset, nil
}

// Path returns the file path
func (jf *File) Path() string {
	return jf.path
}
