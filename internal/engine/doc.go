// SPDX-License-Identifier: MPL-2.0

// Package engine defines the host script engine contract used by the compile
// and execute services.
//
// An engine turns script source into an opaque payload and later executes
// that payload. Payloads are only valid for the engine build that produced
// them; VersionTag identifies that build and is stamped into every artifact.
//
// Concrete engines live in subpackages: shell wraps mvdan.cc/sh and
// enginetest provides an instrumented fake for tests.
package engine
