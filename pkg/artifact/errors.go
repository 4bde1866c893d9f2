// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"errors"
	"fmt"
)

// Decode failure kinds.
const (
	// KindNotAnArtifact means the buffer does not start with the artifact magic.
	KindNotAnArtifact Kind = iota + 1
	// KindUnsupportedFormatVersion means the header declares a layout revision
	// this decoder does not understand.
	KindUnsupportedFormatVersion
	// KindTruncated means fewer bytes are present than the header requires or
	// than the declared payload length.
	KindTruncated
	// KindCorrupt means the buffer is structurally inconsistent, such as bytes
	// trailing the declared payload.
	KindCorrupt
)

var (
	// ErrNotAnArtifact is the sentinel wrapped by DecodeError for KindNotAnArtifact.
	ErrNotAnArtifact = errors.New("not a compiled artifact")
	// ErrUnsupportedFormatVersion is the sentinel wrapped by DecodeError for KindUnsupportedFormatVersion.
	ErrUnsupportedFormatVersion = errors.New("unsupported artifact format version")
	// ErrTruncated is the sentinel wrapped by DecodeError for KindTruncated.
	ErrTruncated = errors.New("truncated artifact")
	// ErrCorrupt is the sentinel wrapped by DecodeError for KindCorrupt.
	ErrCorrupt = errors.New("corrupt artifact")

	// ErrDigestTooLong is returned by Encode when the source digest does not
	// fit the one-byte length field.
	ErrDigestTooLong = errors.New("source digest too long")
)

type (
	// Kind classifies why a buffer failed to decode.
	Kind int

	// DecodeError reports a structural problem found while decoding an artifact.
	// It wraps the sentinel matching its Kind for errors.Is() compatibility.
	DecodeError struct {
		Kind   Kind
		Detail string
	}
)

// String returns the kind name used in error messages and CLI output.
func (k Kind) String() string {
	switch k {
	case KindNotAnArtifact:
		return "not-an-artifact"
	case KindUnsupportedFormatVersion:
		return "unsupported-format-version"
	case KindTruncated:
		return "truncated"
	case KindCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Sentinel returns the sentinel error for the kind, or nil for an unknown kind.
func (k Kind) Sentinel() error {
	switch k {
	case KindNotAnArtifact:
		return ErrNotAnArtifact
	case KindUnsupportedFormatVersion:
		return ErrUnsupportedFormatVersion
	case KindTruncated:
		return ErrTruncated
	case KindCorrupt:
		return ErrCorrupt
	default:
		return nil
	}
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	msg := "invalid artifact"
	if sentinel := e.Kind.Sentinel(); sentinel != nil {
		msg = sentinel.Error()
	}
	if e.Detail == "" {
		return msg
	}
	return msg + ": " + e.Detail
}

// Unwrap returns the kind's sentinel so callers can use errors.Is.
func (e *DecodeError) Unwrap() error { return e.Kind.Sentinel() }

func decodeErrorf(kind Kind, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
