// SPDX-License-Identifier: MPL-2.0

// Package compress compresses engine payload bodies before they are wrapped
// into an artifact. Compression is a payload concern: the artifact codec
// never sees the tag or the uncompressed size.
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag values are stored inside engine payloads. Changing them changes the
// payload encoding and therefore the engine version tag.
const (
	// None stores data as-is.
	None Tag = 0
	// LZ4 is block-mode LZ4.
	LZ4 Tag = 1
	// Zstd is zstd at the default speed level.
	Zstd Tag = 2
)

const (
	// MaxSize is the largest uncompressed size Decompress accepts.
	MaxSize = 64 << 20

	// maxLZ4Ratio bounds the expansion of an LZ4 block: a length byte of
	// 255 is the most a single input byte can add to a literal or match.
	maxLZ4Ratio = 255
	// zstdPrealloc caps the output buffer reserved before zstd decoding.
	zstdPrealloc = 1 << 20
)

var (
	// ErrUnknownTag is returned for tags outside None, LZ4 and Zstd.
	ErrUnknownTag = errors.New("unknown compression tag")
	// ErrSizeMismatch is returned when decompressed data does not have the
	// recorded size.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
	// ErrTooLarge is returned when a recorded size exceeds MaxSize or cannot
	// be produced from the compressed bytes.
	ErrTooLarge = errors.New("declared size too large")

	// errIncompressible signals that compressed output would not be smaller
	// than its input. Compress falls back to None on it.
	errIncompressible = errors.New("data is incompressible")
)

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

// Tag identifies a compression algorithm.
type Tag uint8

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxSize))
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// String returns the configuration name of the tag.
func (t Tag) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// IsValid reports whether t is a known tag.
func (t Tag) IsValid() bool {
	return t <= Zstd
}

// ParseTag parses a configuration name produced by Tag.String.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("%w: %q (valid: none, lz4, zstd)", ErrUnknownTag, name)
	}
}

// Names returns the configuration names of all known tags.
func Names() []string {
	return []string{None.String(), LZ4.String(), Zstd.String()}
}

// Compress compresses data with the requested algorithm and returns the
// output together with the tag actually used. When compression would not
// shrink the data, the input is returned unchanged tagged None.
func Compress(data []byte, tag Tag) ([]byte, Tag, error) {
	var (
		out []byte
		err error
	)
	switch tag {
	case None:
		return data, None, nil
	case LZ4:
		out, err = compressLZ4(data)
	case Zstd:
		out, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownTag, uint8(tag))
	}

	if errors.Is(err, errIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return out, tag, nil
}

// Decompress reverses Compress. size must equal the original data length
// exactly; a mismatch is an error. size is checked against MaxSize and the
// codec's maximum expansion before any output buffer is allocated.
func Decompress(data []byte, tag Tag, size int) ([]byte, error) {
	if size < 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, size, MaxSize)
	}
	switch tag {
	case None:
		if len(data) != size {
			return nil, fmt.Errorf("%w: stored %d bytes, expected %d", ErrSizeMismatch, len(data), size)
		}
		return data, nil
	case LZ4:
		return decompressLZ4(data, size)
	case Zstd:
		return decompressZstd(data, size)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, uint8(tag))
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func decompressLZ4(data []byte, size int) ([]byte, error) {
	if size > len(data)*maxLZ4Ratio {
		return nil, fmt.Errorf("%w: %d bytes cannot expand to %d with lz4", ErrTooLarge, len(data), size)
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("%w: lz4 produced %d bytes, expected %d", ErrSizeMismatch, n, size)
	}
	return dst, nil
}

func compressZstd(data []byte) ([]byte, error) {
	out := zstdEncoder.EncodeAll(data, nil)
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

func decompressZstd(data []byte, size int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, min(size, zstdPrealloc)))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: zstd produced %d bytes, expected %d", ErrSizeMismatch, len(out), size)
	}
	return out, nil
}
