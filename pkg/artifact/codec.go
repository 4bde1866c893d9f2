// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
)

// Layout constants. These are protocol constants: changing any of them
// requires a new format version.
const (
	// FormatVersion is the layout revision written by Encode.
	FormatVersion uint16 = 1

	// MaxDigestSize is the largest source digest the one-byte length field can describe.
	MaxDigestSize = 255

	// prefixSize covers magic, format version, engine tag and digest length.
	prefixSize = 4 + 2 + VersionTagSize + 1

	// payloadLengthSize is the width of the payload length field.
	payloadLengthSize = 8
)

// magic is the 4-byte artifact signature.
var magic = [4]byte{'S', 'C', 'B', 'C'}

// SupportedFormatVersions lists every layout revision Decode accepts.
// There is no best-effort decoding of other revisions.
var SupportedFormatVersions = []uint16{FormatVersion}

// Magic returns the artifact signature.
func Magic() [4]byte { return magic }

// IsSupportedFormatVersion reports whether Decode understands version v.
func IsSupportedFormatVersion(v uint16) bool {
	return slices.Contains(SupportedFormatVersions, v)
}

// headerSize is the number of bytes preceding the payload.
func headerSize(digestLen int) int {
	return prefixSize + digestLen + payloadLengthSize
}

// Encode lays out payload behind a header stamped with the engine tag and the
// optional source digest. The output depends only on the inputs: the same
// arguments always produce byte-identical artifacts.
func Encode(payload []byte, tag VersionTag, digest []byte) ([]byte, error) {
	if len(digest) > MaxDigestSize {
		return nil, fmt.Errorf("%w: %d bytes, at most %d", ErrDigestTooLong, len(digest), MaxDigestSize)
	}

	out := make([]byte, 0, headerSize(len(digest))+len(payload))
	out = append(out, magic[:]...)
	out = binary.BigEndian.AppendUint16(out, FormatVersion)
	out = append(out, tag[:]...)
	out = append(out, byte(len(digest)))
	out = append(out, digest...)
	out = binary.BigEndian.AppendUint64(out, uint64(len(payload)))
	out = append(out, payload...)
	return out, nil
}

// Decode validates data and returns the artifact it holds. Checks run in
// order: minimum length and magic, format version, then digest and payload
// length consistency. Bytes after the declared payload make the artifact
// corrupt rather than being ignored.
func Decode(data []byte) (*Artifact, error) {
	header, offset, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		header:  header,
		payload: bytes.Clone(data[offset:]),
	}, nil
}

// Peek runs the same validation as Decode but returns only the header,
// without copying the payload.
func Peek(data []byte) (Header, error) {
	header, _, err := parseHeader(data)
	return header, err
}

// parseHeader validates the whole buffer and returns the header together with
// the payload offset.
func parseHeader(data []byte) (Header, int, error) {
	if err := checkPrefix(data); err != nil {
		return Header{}, 0, err
	}

	version := binary.BigEndian.Uint16(data[4:6])
	if !IsSupportedFormatVersion(version) {
		return Header{}, 0, decodeErrorf(KindUnsupportedFormatVersion,
			"format version %d is not supported (supported: %v)", version, SupportedFormatVersions)
	}

	var h Header
	h.FormatVersion = version
	copy(h.EngineVersionTag[:], data[6:6+VersionTagSize])

	digestLen := int(data[prefixSize-1])
	offset := headerSize(digestLen)
	if len(data) < offset {
		return Header{}, 0, decodeErrorf(KindTruncated,
			"header with %d-byte source digest needs %d bytes, have %d", digestLen, offset, len(data))
	}
	if digestLen > 0 {
		h.SourceDigest = bytes.Clone(data[prefixSize : prefixSize+digestLen])
	}

	h.PayloadLength = binary.BigEndian.Uint64(data[offset-payloadLengthSize : offset])
	remaining := uint64(len(data) - offset)
	switch {
	case h.PayloadLength > remaining:
		return Header{}, 0, decodeErrorf(KindTruncated,
			"declared payload length %d, only %d bytes present", h.PayloadLength, remaining)
	case h.PayloadLength < remaining:
		return Header{}, 0, decodeErrorf(KindCorrupt,
			"%d unexpected bytes after declared payload length %d", remaining-h.PayloadLength, h.PayloadLength)
	}

	return h, offset, nil
}

// checkPrefix validates the fixed-size prefix. A buffer whose leading bytes
// disagree with the magic is foreign even when it is shorter than the
// prefix; a buffer that is a (possibly empty) prefix of a valid header is
// truncated.
func checkPrefix(data []byte) error {
	n := min(len(data), len(magic))
	if !bytes.Equal(data[:n], magic[:n]) {
		return decodeErrorf(KindNotAnArtifact, "invalid magic bytes %q", data[:n])
	}
	if len(data) < prefixSize {
		return decodeErrorf(KindTruncated, "%d bytes, header needs at least %d", len(data), prefixSize)
	}
	return nil
}
