package journalfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression selects how the writer stores large data payloads.
type Compression int

const (
	CompressNone Compression = iota
	CompressXZ
	CompressLZ4
	CompressZSTD
)

// ErrUnsupportedCompression is returned for object flags this package cannot decode.
var ErrUnsupportedCompression = errors.New("unsupported compression")

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressXZ:
		return "xz"
	case CompressLZ4:
		return "lz4"
	case CompressZSTD:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", int(c))
}

func (c Compression) objectFlag() uint8 {
	switch c {
	case CompressXZ:
		return ObjectCompressedXZ
	case CompressLZ4:
		return ObjectCompressedLZ4
	case CompressZSTD:
		return ObjectCompressedZSTD
	}
	return 0
}

func (c Compression) headerFlag() uint32 {
	switch c {
	case CompressXZ:
		return HeaderIncompatibleCompressedXZ
	case CompressLZ4:
		return HeaderIncompatibleCompressedLZ4
	case CompressZSTD:
		return HeaderIncompatibleCompressedZSTD
	}
	return 0
}

var (
	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error
)

func sharedZstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zstdDecoder, zstdDecoderErr
}

// decompress returns the plain payload of a data object. A positive limit
// stops decoding once that many bytes are available; the result may be
// longer than limit for codecs that decode whole blocks.
func decompress(flags uint8, payload []byte, limit uint64) ([]byte, error) {
	switch flags & objectCompressionMask {
	case 0:
		return payload, nil

	case ObjectCompressedZSTD:
		dec, err := sharedZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return out, nil

	case ObjectCompressedLZ4:
		// systemd prefixes the LZ4 block with the le64 uncompressed size.
		if len(payload) < 8 {
			return nil, fmt.Errorf("lz4 payload too short: %d bytes", len(payload))
		}
		size := le.Uint64(payload[:8])
		if size > 1<<32 {
			return nil, fmt.Errorf("lz4 payload claims %d bytes", size)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload[8:], out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decode: %w", err)
		}
		return out[:n], nil

	case ObjectCompressedXZ:
		r, err := xz.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		var src io.Reader = r
		if limit > 0 {
			src = io.LimitReader(r, int64(limit))
		}
		out, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("xz decode: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("object flags %#x: %w", flags, ErrUnsupportedCompression)
}

// compress encodes data with c. ok is false when compression does not pay
// off, in which case the caller stores data as-is.
func compress(c Compression, data []byte) (out []byte, ok bool, err error) {
	switch c {
	case CompressZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, false, fmt.Errorf("zstd encoder: %w", err)
		}
		defer enc.Close()
		out = enc.EncodeAll(data, nil)

	case CompressLZ4:
		buf := make([]byte, 8+lz4.CompressBlockBound(len(data)))
		le.PutUint64(buf[:8], uint64(len(data)))
		n, err := lz4.CompressBlock(data, buf[8:], nil)
		if err != nil {
			return nil, false, fmt.Errorf("lz4 encode: %w", err)
		}
		if n == 0 {
			return nil, false, nil // incompressible
		}
		out = buf[:8+n]

	case CompressXZ:
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, false, fmt.Errorf("xz writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, false, fmt.Errorf("xz encode: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, false, fmt.Errorf("xz encode: %w", err)
		}
		out = buf.Bytes()

	default:
		return nil, false, nil
	}

	if len(out) >= len(data) {
		return nil, false, nil
	}
	return out, true, nil
}
