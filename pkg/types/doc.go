// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared by the engine, the services
// and the CLI.
package types
