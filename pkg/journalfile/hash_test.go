package journalfile

import "testing"

func TestJenkinsHash64(t *testing.T) {
	if got := JenkinsHash64(nil); got != 0xdeadbeefdeadbeef {
		t.Errorf("JenkinsHash64(empty) = %#x, want 0xdeadbeefdeadbeef", got)
	}

	// Reference value from the lookup3.c self test.
	pc, _ := JenkinsHashLittle2([]byte("Four score and seven years ago"))
	if pc != 0x17770551 {
		t.Errorf("hashlittle2 c = %#x, want 0x17770551", pc)
	}

	data := []byte("MESSAGE=hello world")
	if JenkinsHash64(data) != JenkinsHash64(data) {
		t.Error("hash is not deterministic")
	}
}

func TestJenkinsHashTailLengths(t *testing.T) {
	// Every tail length must depend on every byte.
	base := []byte("ABCDEFGHIJKLMNOPQRSTUVWX")
	for n := 1; n <= len(base); n++ {
		data := append([]byte(nil), base[:n]...)
		h := JenkinsHash64(data)
		for i := range data {
			mutated := append([]byte(nil), data...)
			mutated[i] ^= 0x01
			if JenkinsHash64(mutated) == h {
				t.Errorf("len %d: flipping byte %d does not change the hash", n, i)
			}
		}
	}
}

func TestSipHash24(t *testing.T) {
	var key ID128
	for i := range key {
		key[i] = byte(i)
	}
	// First vector of the SipHash reference implementation.
	if got := SipHash24(nil, key); got != 0x726fdb47dd0e0e31 {
		t.Errorf("SipHash24(empty) = %#x, want 0x726fdb47dd0e0e31", got)
	}
}

func TestHashForFollowsHeader(t *testing.T) {
	data := []byte("_PID=1")
	h := Header{FileID: ID128{1, 2, 3}}
	if got := HashFor(&h, data); got != JenkinsHash64(data) {
		t.Errorf("unkeyed header: got %#x, want jenkins", got)
	}
	h.IncompatibleFlags |= HeaderIncompatibleKeyedHash
	if got := HashFor(&h, data); got != SipHash24(data, h.FileID) {
		t.Errorf("keyed header: got %#x, want siphash", got)
	}
}
