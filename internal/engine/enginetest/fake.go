// SPDX-License-Identifier: MPL-2.0

// Package enginetest provides an instrumented engine for service tests.
package enginetest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/invowk/scriptc/internal/engine"
	"github.com/invowk/scriptc/pkg/artifact"
	"github.com/invowk/scriptc/pkg/types"
)

// PayloadPrefix starts every payload produced by Fake.
const PayloadPrefix = "bc:"

// DefaultTag is the version tag of a Fake built by New.
var DefaultTag = artifact.DeriveVersionTag("enginetest/fake")

var _ engine.Engine = (*Fake)(nil)

type (
	// Fake is an engine whose payload is PayloadPrefix followed by the
	// source text. It records every call and lets tests inject failures.
	// Fake is safe for concurrent use.
	Fake struct {
		mu sync.Mutex

		tag      artifact.VersionTag
		execErr  error
		exitCode types.ExitCode
		output   string
		closed   bool

		compiles []string
		executes []Execution
	}

	// Execution records one ExecuteBytecode call.
	Execution struct {
		Payload []byte
		Args    []string
	}
)

// New returns a Fake tagged DefaultTag.
func New() *Fake {
	return &Fake{tag: DefaultTag}
}

// SetVersionTag changes the tag reported by VersionTag.
func (f *Fake) SetVersionTag(tag artifact.VersionTag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tag = tag
}

// FailExecute makes every subsequent ExecuteBytecode call return err.
func (f *Fake) FailExecute(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErr = err
}

// SetExitCode makes executions complete with code.
func (f *Fake) SetExitCode(code types.ExitCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exitCode = code
}

// SetOutput makes executions write s to the supplied stdout.
func (f *Fake) SetOutput(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output = s
}

// CompileToBytecode returns PayloadPrefix+source. Sources with more '(' than
// ')' fail with *engine.SyntaxError.
func (f *Fake) CompileToBytecode(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, engine.ErrClosed
	}
	f.compiles = append(f.compiles, source)

	if open, closing := strings.Count(source, "("), strings.Count(source, ")"); open > closing {
		return nil, &engine.SyntaxError{
			Name:       "fake",
			Line:       1,
			Col:        uint(strings.LastIndex(source, "(") + 1),
			Message:    fmt.Sprintf("unbalanced parentheses: %d '(' and %d ')'", open, closing),
			Incomplete: true,
		}
	}
	return []byte(PayloadPrefix + source), nil
}

// ExecuteBytecode records the call and completes with the configured exit code.
func (f *Fake) ExecuteBytecode(ctx context.Context, payload []byte, ioc engine.IO) (*engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, engine.ErrClosed
	}
	f.executes = append(f.executes, Execution{
		Payload: bytes.Clone(payload),
		Args:    append([]string(nil), ioc.Args...),
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.execErr != nil {
		return nil, f.execErr
	}
	if !bytes.HasPrefix(payload, []byte(PayloadPrefix)) {
		return nil, fmt.Errorf("%w: missing %q prefix", engine.ErrInvalidPayload, PayloadPrefix)
	}
	if f.output != "" && ioc.Stdout != nil {
		if _, err := fmt.Fprint(ioc.Stdout, f.output); err != nil {
			return nil, err
		}
	}
	return &engine.Result{ExitCode: f.exitCode}, nil
}

// VersionTag returns the configured tag.
func (f *Fake) VersionTag() artifact.VersionTag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tag
}

// Close marks the engine closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Compiles returns the sources passed to CompileToBytecode, in call order.
func (f *Fake) Compiles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.compiles...)
}

// Executions returns the recorded ExecuteBytecode calls, in call order.
func (f *Fake) Executions() []Execution {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Execution(nil), f.executes...)
}

// ExecuteCount returns the number of ExecuteBytecode calls.
func (f *Fake) ExecuteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executes)
}
