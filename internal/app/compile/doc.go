// SPDX-License-Identifier: MPL-2.0

// Package compile turns script source into artifact bytes. It asks the engine
// for a payload, stamps the engine version tag and a source digest, and
// encodes the result. It never reads or writes files.
package compile
