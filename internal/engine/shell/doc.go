// SPDX-License-Identifier: MPL-2.0

// Package shell implements a host script engine on top of mvdan.cc/sh.
//
// Compiling parses the source with the configured shell dialect and stores
// the resulting syntax tree, serialized with mvdan.cc/sh/v3/syntax/typedjson,
// inside a deterministic CBOR envelope. Executing decodes the tree and runs
// it with the mvdan.cc/sh interpreter, so no parsing happens at run time.
//
// The engine version tag covers the interpreter module version, the
// envelope revision and the dialect. Payloads from a different interpreter
// build or dialect are rejected before they reach this package.
package shell
