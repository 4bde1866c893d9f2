// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/invowk/scriptc/internal/compress"
	"github.com/invowk/scriptc/internal/engine"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	e, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func run(t *testing.T, e *Engine, source string, ioc engine.IO) (*engine.Result, string) {
	t.Helper()

	ctx := t.Context()
	payload, err := e.CompileToBytecode(ctx, source)
	if err != nil {
		t.Fatalf("CompileToBytecode(%q) error = %v", source, err)
	}

	var stdout bytes.Buffer
	if ioc.Stdout == nil {
		ioc.Stdout = &stdout
	}
	result, err := e.ExecuteBytecode(ctx, payload, ioc)
	if err != nil {
		t.Fatalf("ExecuteBytecode() error = %v", err)
	}
	return result, stdout.String()
}

func TestCompileAndExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		source   string
		args     []string
		env      []string
		wantOut  string
		wantCode int
	}{
		{name: "arithmetic", source: "echo $((1+1))", wantOut: "2\n"},
		{name: "positional args", source: `echo "$1-$2"`, args: []string{"a", "-e"}, wantOut: "a--e\n"},
		{name: "environment", source: `echo "$GREETING"`, env: []string{"GREETING=hello"}, wantOut: "hello\n"},
		{name: "function", source: "greet() { echo \"hi $1\"; }\ngreet there", wantOut: "hi there\n"},
		{name: "non-zero exit", source: "echo before; exit 3", wantOut: "before\n", wantCode: 3},
		{name: "false builtin", source: "false", wantCode: 1},
		{name: "empty script", source: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEngine(t)
			result, out := run(t, e, tt.source, engine.IO{Args: tt.args, Env: tt.env})
			if out != tt.wantOut {
				t.Errorf("stdout = %q, want %q", out, tt.wantOut)
			}
			if int(result.ExitCode) != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", result.ExitCode, tt.wantCode)
			}
		})
	}
}

func TestCompileSyntaxError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		dialect        string
		source         string
		wantIncomplete bool
	}{
		{name: "unclosed paren", dialect: "bash", source: "function(", wantIncomplete: false},
		{name: "unclosed quote", dialect: "bash", source: `echo "oops`, wantIncomplete: true},
		{name: "bash arrays in posix", dialect: "posix", source: "a=(1 2 3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEngine(t, WithDialect(tt.dialect), WithName("broken.sh"))
			payload, err := e.CompileToBytecode(t.Context(), tt.source)
			if err == nil {
				t.Fatalf("CompileToBytecode(%q) = %d bytes, want error", tt.source, len(payload))
			}
			if payload != nil {
				t.Error("CompileToBytecode() returned bytes alongside error")
			}

			var synErr *engine.SyntaxError
			if !errors.As(err, &synErr) {
				t.Fatalf("error = %T (%v), want *engine.SyntaxError", err, err)
			}
			if !errors.Is(err, engine.ErrSyntax) {
				t.Error("error does not wrap ErrSyntax")
			}
			if synErr.Name != "broken.sh" {
				t.Errorf("Name = %q, want %q", synErr.Name, "broken.sh")
			}
			if synErr.Line == 0 {
				t.Errorf("Line = 0, want a position (%v)", err)
			}
			if tt.wantIncomplete && !synErr.Incomplete {
				t.Errorf("Incomplete = false for %q", tt.source)
			}
		})
	}
}

func TestCompileDeterministic(t *testing.T) {
	t.Parallel()

	source := "for i in 1 2 3; do\n  echo \"$i\"\ndone\n"
	for _, codec := range []compress.Tag{compress.None, compress.LZ4, compress.Zstd} {
		t.Run(codec.String(), func(t *testing.T) {
			t.Parallel()

			e := newEngine(t, WithCompression(codec))
			first, err := e.CompileToBytecode(t.Context(), source)
			if err != nil {
				t.Fatalf("CompileToBytecode() error = %v", err)
			}
			second, err := e.CompileToBytecode(t.Context(), source)
			if err != nil {
				t.Fatalf("CompileToBytecode() error = %v", err)
			}
			if !bytes.Equal(first, second) {
				t.Error("CompileToBytecode() is not deterministic")
			}

			var stdout bytes.Buffer
			if _, err := e.ExecuteBytecode(t.Context(), first, engine.IO{Stdout: &stdout}); err != nil {
				t.Fatalf("ExecuteBytecode() error = %v", err)
			}
			if got := stdout.String(); got != "1\n2\n3\n" {
				t.Errorf("stdout = %q", got)
			}
		})
	}
}

func TestLargeScriptCompresses(t *testing.T) {
	t.Parallel()

	source := strings.Repeat("echo line\n", 200)
	plain := newEngine(t, WithCompression(compress.None))
	packed := newEngine(t, WithCompression(compress.Zstd))

	a, err := plain.CompileToBytecode(t.Context(), source)
	if err != nil {
		t.Fatal(err)
	}
	b, err := packed.CompileToBytecode(t.Context(), source)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) >= len(a) {
		t.Errorf("zstd payload %d bytes, uncompressed payload %d bytes", len(b), len(a))
	}
	if plain.VersionTag() != packed.VersionTag() {
		t.Error("compression setting changed the version tag")
	}
}

func TestVersionTagByDialect(t *testing.T) {
	t.Parallel()

	bash := newEngine(t, WithDialect("bash"))
	posix := newEngine(t, WithDialect("posix"))
	sh := newEngine(t, WithDialect("sh"))

	if bash.VersionTag() == posix.VersionTag() {
		t.Error("bash and posix engines share a version tag")
	}
	if posix.VersionTag() != sh.VersionTag() {
		t.Error("sh alias produced a different tag from posix")
	}
	if bash.VersionTag() != newEngine(t).VersionTag() {
		t.Error("default engine tag differs from explicit bash")
	}
	if !strings.Contains(Identity("bash"), "mvdan.cc/sh/v3@") {
		t.Errorf("Identity() = %q", Identity("bash"))
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(WithDialect("zsh")); err == nil {
		t.Error("New(WithDialect(zsh)) error = nil")
	}
	if _, err := New(WithDialect("auto")); err == nil {
		t.Error("New(WithDialect(auto)) error = nil")
	}
	if _, err := New(WithCompression(compress.Tag(7))); !errors.Is(err, compress.ErrUnknownTag) {
		t.Errorf("New(WithCompression(7)) error = %v, want ErrUnknownTag", err)
	}
}

func TestExecuteInvalidPayload(t *testing.T) {
	t.Parallel()

	bash := newEngine(t)
	posix := newEngine(t, WithDialect("posix"))

	posixPayload, err := posix.CompileToBytecode(t.Context(), "echo hi")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "garbage", payload: []byte("bc:echo hi")},
		{name: "empty", payload: nil},
		{name: "other dialect", payload: posixPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := bash.ExecuteBytecode(t.Context(), tt.payload, engine.IO{})
			if !errors.Is(err, engine.ErrInvalidPayload) {
				t.Errorf("ExecuteBytecode() error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestExecuteCanceled(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	payload, err := e.CompileToBytecode(t.Context(), "echo never")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var stdout bytes.Buffer
	if _, err := e.ExecuteBytecode(ctx, payload, engine.IO{Stdout: &stdout}); !errors.Is(err, context.Canceled) {
		t.Errorf("ExecuteBytecode() error = %v, want context.Canceled", err)
	}
}

func TestClosed(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	payload, err := e.CompileToBytecode(t.Context(), "true")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := e.CompileToBytecode(t.Context(), "true"); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("CompileToBytecode() error = %v, want ErrClosed", err)
	}
	if _, err := e.ExecuteBytecode(t.Context(), payload, engine.IO{}); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("ExecuteBytecode() error = %v, want ErrClosed", err)
	}
}

func TestWorkingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := newEngine(t)
	_, out := run(t, e, "pwd", engine.IO{Dir: dir})
	if strings.TrimSpace(out) != dir {
		t.Errorf("pwd = %q, want %q", strings.TrimSpace(out), dir)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	e := newEngine(t, WithDialect("mksh"), WithCompression(compress.None), WithName("tool.sh"))
	payload, err := e.CompileToBytecode(t.Context(), "echo hi")
	if err != nil {
		t.Fatalf("CompileToBytecode() error = %v", err)
	}

	info, err := Describe(payload)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if info.Dialect != "mksh" || info.Name != "tool.sh" || info.Compression != compress.None {
		t.Errorf("Describe() = %+v", info)
	}
	if info.TreeSize == 0 || uint64(info.StoredSize) != info.TreeSize {
		t.Errorf("uncompressed sizes differ: %+v", info)
	}

	if _, err := Describe([]byte("bc:1+1")); !errors.Is(err, engine.ErrInvalidPayload) {
		t.Errorf("Describe(foreign) error = %v, want ErrInvalidPayload", err)
	}
}

func TestOpenEnvelopeRejectsForgedSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		codec compress.Tag
		size  uint64
		tree  []byte
	}{
		{name: "size beyond limit", codec: compress.LZ4, size: 1 << 40, tree: []byte{0}},
		{name: "size just above limit", codec: compress.Zstd, size: compress.MaxSize + 1, tree: []byte{0}},
		{name: "lz4 ratio", codec: compress.LZ4, size: compress.MaxSize, tree: []byte{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload, err := encMode.Marshal(envelope{
				Revision: envelopeRevision,
				Dialect:  "bash",
				Name:     DefaultName,
				Codec:    uint8(tt.codec),
				Size:     tt.size,
				Tree:     tt.tree,
			})
			if err != nil {
				t.Fatal(err)
			}

			_, err = Describe(payload)
			if !errors.Is(err, engine.ErrInvalidPayload) || !errors.Is(err, compress.ErrTooLarge) {
				t.Errorf("Describe() error = %v, want ErrInvalidPayload and ErrTooLarge", err)
			}

			e := newEngine(t)
			if _, err := e.ExecuteBytecode(t.Context(), payload, engine.IO{}); !errors.Is(err, engine.ErrInvalidPayload) {
				t.Errorf("ExecuteBytecode() error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}
