// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/invowk/scriptc/pkg/artifact"
	"github.com/invowk/scriptc/pkg/types"
)

var (
	// ErrSyntax is the sentinel wrapped by SyntaxError.
	ErrSyntax = errors.New("script syntax error")
	// ErrClosed is returned by engines that have been closed.
	ErrClosed = errors.New("engine is closed")
	// ErrInvalidPayload is returned when ExecuteBytecode is given bytes the
	// engine did not produce.
	ErrInvalidPayload = errors.New("invalid engine payload")
)

type (
	// Engine compiles script source into opaque payloads and executes them.
	//
	// Implementations must not write to the process stdout or stderr outside
	// of the writers supplied through IO.
	Engine interface {
		// CompileToBytecode compiles source into a payload. Syntax problems
		// are reported as *SyntaxError.
		CompileToBytecode(ctx context.Context, source string) ([]byte, error)
		// ExecuteBytecode runs a payload previously produced by an engine with
		// the same VersionTag. A script exiting non-zero is reported through
		// Result, not as an error.
		ExecuteBytecode(ctx context.Context, payload []byte, io IO) (*Result, error)
		// VersionTag identifies the engine build and payload encoding.
		VersionTag() artifact.VersionTag
		// Close releases engine resources. Later calls fail with ErrClosed.
		Close() error
	}

	// IO is the execution environment handed to a script.
	IO struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Args are the positional parameters ($1, $2, ...).
		Args []string
		// Env holds KEY=VALUE pairs. A nil Env gives the script an empty
		// environment.
		Env []string
		// Dir is the working directory; empty means the current directory.
		Dir string
	}

	// Result is the outcome of a completed execution.
	Result struct {
		ExitCode types.ExitCode
	}

	// SyntaxError reports a compile-time problem in script source.
	SyntaxError struct {
		// Name is the source name used in diagnostics.
		Name    string
		Line    uint
		Col     uint
		Message string
		// Incomplete is set when the source ended before a construct was closed.
		Incomplete bool
	}
)

// Success reports whether the script exited with status zero.
func (r *Result) Success() bool {
	return r.ExitCode.IsSuccess()
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	name := e.Name
	if name == "" {
		name = "script"
	}
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", name, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", name, e.Line, e.Col, e.Message)
}

// Unwrap returns ErrSyntax for errors.Is compatibility.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }
