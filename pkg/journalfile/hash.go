package journalfile

import (
	"math/bits"

	"github.com/dchest/siphash"
)

// Jenkins lookup3 (hashlittle2) by Bob Jenkins, public domain. Journal files
// without HEADER_INCOMPATIBLE_KEYED_HASH use it for hash tables, and every
// file uses it for the entry xor_hash.

func rot(x uint32, k int) uint32 {
	return bits.RotateLeft32(x, k)
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= rot(c, 4)
	c += b
	b -= a
	b ^= rot(a, 6)
	a += c
	c -= b
	c ^= rot(b, 8)
	b += a
	a -= c
	a ^= rot(c, 16)
	c += b
	b -= a
	b ^= rot(a, 19)
	a += c
	c -= b
	c ^= rot(b, 4)
	b += a
	return a, b, c
}

func final(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= rot(b, 14)
	a ^= c
	a -= rot(c, 11)
	b ^= a
	b -= rot(a, 25)
	c ^= b
	c -= rot(b, 16)
	a ^= c
	a -= rot(c, 4)
	b ^= a
	b -= rot(a, 14)
	c ^= b
	c -= rot(b, 24)
	return a, b, c
}

// JenkinsHashLittle2 computes two 32-bit hash values from data.
// This is the hashlittle2 function from lookup3.c with zero initial values.
func JenkinsHashLittle2(data []byte) (pc, pb uint32) {
	a := uint32(0xdeadbeef) + uint32(len(data))
	b, c := a, a

	if len(data) == 0 {
		return c, b
	}

	for len(data) > 12 {
		a += le.Uint32(data[0:4])
		b += le.Uint32(data[4:8])
		c += le.Uint32(data[8:12])
		a, b, c = mix(a, b, c)
		data = data[12:]
	}

	// The byte-wise tail of lookup3 adds exactly the bytes present, which is
	// the same as adding zero-padded little-endian words.
	var tail [12]byte
	copy(tail[:], data)
	a += le.Uint32(tail[0:4])
	b += le.Uint32(tail[4:8])
	c += le.Uint32(tail[8:12])

	a, b, c = final(a, b, c)
	return c, b
}

// JenkinsHash64 computes a 64-bit hash from data.
func JenkinsHash64(data []byte) uint64 {
	a, b := JenkinsHashLittle2(data)
	return uint64(a)<<32 | uint64(b)
}

// SipHash24 computes a 64-bit keyed hash using SipHash-2-4.
// The key is the file_id from the journal header (16 bytes).
func SipHash24(data []byte, key ID128) uint64 {
	k0 := le.Uint64(key[0:8])
	k1 := le.Uint64(key[8:16])
	return siphash.Hash(k0, k1, data)
}

// HashFor returns the hash-table hash of data for a file with header h.
func HashFor(h *Header, data []byte) uint64 {
	if h.KeyedHash() {
		return SipHash24(data, h.FileID)
	}
	return JenkinsHash64(data)
}
