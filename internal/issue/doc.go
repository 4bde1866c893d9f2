// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into user-facing guidance: ActionableError
// adds the operation, resource and fix suggestions to an error, and the
// issue catalog holds longer markdown explanations rendered with glamour.
package issue
