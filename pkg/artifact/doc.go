// SPDX-License-Identifier: MPL-2.0

// Package artifact defines the byte layout of a compiled script artifact and
// is the single place where that layout is encoded, decoded and validated.
//
// An artifact is a fixed-layout header followed by an opaque payload produced
// by a host script engine. All multi-byte integers are big-endian:
//
//	offset  size  field
//	0       4     magic "SCBC"
//	4       2     format version
//	6       8     engine version tag
//	14      1     source digest length (d, 0 when omitted)
//	15      d     source digest
//	15+d    8     payload length
//	23+d    n     payload
//
// Decoding is all-or-nothing. A buffer is rejected as truncated, foreign,
// of an unsupported format version, or corrupt (trailing bytes after the
// declared payload) before any payload byte is handed out. The payload is
// never interpreted here; executing it is the job of a host engine.
//
// The source digest and engine version tags are derived with
// domain-separated BLAKE3 keyed hashing so the two can never collide.
package artifact
