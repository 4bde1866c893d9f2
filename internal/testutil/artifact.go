// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"testing"

	"github.com/invowk/scriptc/internal/app/compile"
	"github.com/invowk/scriptc/internal/engine/shell"
)

// NewShellEngine returns a shell engine closed at the end of the test.
func NewShellEngine(t testing.TB, opts ...shell.Option) *shell.Engine {
	t.Helper()
	eng, err := shell.New(opts...)
	if err != nil {
		t.Fatalf("shell.New() error: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// CompileArtifact compiles source with a fresh shell engine configured by
// opts and returns the artifact bytes.
func CompileArtifact(t testing.TB, source string, opts ...shell.Option) []byte {
	t.Helper()
	data, err := compile.New(NewShellEngine(t, opts...)).Compile(t.Context(), source)
	if err != nil {
		t.Fatalf("compile %q: %v", source, err)
	}
	return data
}
