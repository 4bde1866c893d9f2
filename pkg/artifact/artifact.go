// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
)

// VersionTagSize is the fixed width of an engine version tag.
const VersionTagSize = 8

type (
	// VersionTag binds a payload to the engine build that produced it.
	// Payloads are not portable across engine builds, so an artifact whose
	// tag differs from the running engine's tag must not be executed.
	VersionTag [VersionTagSize]byte

	// Header is the decoded artifact metadata, without the payload.
	Header struct {
		FormatVersion    uint16
		EngineVersionTag VersionTag
		// SourceDigest is empty when the compiler omitted it.
		SourceDigest  []byte
		PayloadLength uint64
	}

	// Artifact is a validated, immutable compiled artifact. Values are only
	// produced by Decode; the payload is a private copy of the decoded bytes.
	Artifact struct {
		header  Header
		payload []byte
	}
)

// String returns the lowercase hex form of the tag.
func (t VersionTag) String() string {
	return hex.EncodeToString(t[:])
}

// IsZero reports whether the tag is all zero bytes.
func (t VersionTag) IsZero() bool {
	return t == VersionTag{}
}

// ParseVersionTag parses the 16-character hex form produced by VersionTag.String.
func ParseVersionTag(s string) (VersionTag, error) {
	var tag VersionTag
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return tag, fmt.Errorf("parsing engine version tag: %w", err)
	}
	if len(decoded) != VersionTagSize {
		return tag, fmt.Errorf("engine version tag is %d bytes, want %d", len(decoded), VersionTagSize)
	}
	copy(tag[:], decoded)
	return tag, nil
}

// HasDigest reports whether the header carries a source digest.
func (h Header) HasDigest() bool {
	return len(h.SourceDigest) > 0
}

// DigestString returns the hex form of the source digest, or "" when absent.
func (h Header) DigestString() string {
	return hex.EncodeToString(h.SourceDigest)
}

// Size returns the total encoded size of an artifact with this header.
func (h Header) Size() uint64 {
	return uint64(headerSize(len(h.SourceDigest))) + h.PayloadLength
}

// Header returns a copy of the artifact header.
func (a *Artifact) Header() Header {
	h := a.header
	h.SourceDigest = slices.Clone(a.header.SourceDigest)
	return h
}

// FormatVersion returns the layout revision the artifact was encoded with.
func (a *Artifact) FormatVersion() uint16 { return a.header.FormatVersion }

// EngineVersionTag returns the tag of the engine build that produced the payload.
func (a *Artifact) EngineVersionTag() VersionTag { return a.header.EngineVersionTag }

// SourceDigest returns a copy of the source digest, or nil when absent.
func (a *Artifact) SourceDigest() []byte { return slices.Clone(a.header.SourceDigest) }

// PayloadLength returns the number of payload bytes.
func (a *Artifact) PayloadLength() uint64 { return a.header.PayloadLength }

// Payload returns a copy of the payload bytes.
func (a *Artifact) Payload() []byte { return bytes.Clone(a.payload) }

// CompatibleWith reports whether the payload was produced by an engine with the given tag.
func (a *Artifact) CompatibleWith(tag VersionTag) bool {
	return a.header.EngineVersionTag == tag
}
