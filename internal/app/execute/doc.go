// SPDX-License-Identifier: MPL-2.0

// Package execute runs compiled artifacts. It decodes the artifact, refuses
// payloads built by a different engine, and hands the payload to the engine
// exactly once. Every failure is reported as a *RunError naming the stage
// that rejected the artifact.
package execute
