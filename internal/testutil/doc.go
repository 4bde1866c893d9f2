// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers that fail the test on error instead of
// returning it, plus fixtures that build real artifacts with the shell engine.
package testutil
