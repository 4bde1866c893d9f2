// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
	"mvdan.cc/sh/v3/syntax/typedjson"

	"github.com/invowk/scriptc/internal/compress"
	"github.com/invowk/scriptc/internal/engine"
	"github.com/invowk/scriptc/pkg/artifact"
	"github.com/invowk/scriptc/pkg/types"
)

const (
	// DefaultDialect is the shell language used when none is configured.
	DefaultDialect = "bash"
	// DefaultName is the source name used in diagnostics.
	DefaultName = "script"

	interpreterModule = "mvdan.cc/sh/v3"
)

var _ engine.Engine = (*Engine)(nil)

type (
	// Engine compiles and runs shell scripts. It is safe for concurrent use:
	// every call builds its own parser and interpreter.
	Engine struct {
		dialect syntax.LangVariant
		codec   compress.Tag
		name    string
		logger  *slog.Logger
		tag     artifact.VersionTag
		closed  atomic.Bool
	}

	// Option configures an Engine.
	Option func(*Engine) error
)

// WithDialect selects the shell language: bash, posix (or sh), mksh or bats.
func WithDialect(dialect string) Option {
	return func(e *Engine) error {
		var lang syntax.LangVariant
		if err := lang.Set(dialect); err != nil {
			return err
		}
		if lang == syntax.LangAuto {
			return fmt.Errorf("shell dialect %q is not supported", dialect)
		}
		e.dialect = lang
		return nil
	}
}

// WithCompression selects how the syntax tree is compressed inside payloads.
func WithCompression(tag compress.Tag) Option {
	return func(e *Engine) error {
		if !tag.IsValid() {
			return fmt.Errorf("%w: %d", compress.ErrUnknownTag, uint8(tag))
		}
		e.codec = tag
		return nil
	}
}

// WithName sets the source name reported in syntax errors.
func WithName(name string) Option {
	return func(e *Engine) error {
		if name != "" {
			e.name = name
		}
		return nil
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}

// New creates a shell engine. Without options it parses bash and stores
// zstd-compressed trees.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		dialect: syntax.LangBash,
		codec:   compress.Zstd,
		name:    DefaultName,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.tag = artifact.DeriveVersionTag(Identity(e.dialect.String()))
	return e, nil
}

// Identity returns the build identity string the version tag is derived
// from for the given dialect.
func Identity(dialect string) string {
	return fmt.Sprintf("%s@%s/envelope=%d/dialect=%s", interpreterModule, interpreterVersion(), envelopeRevision, dialect)
}

// Dialect returns the configured shell language name.
func (e *Engine) Dialect() string { return e.dialect.String() }

// VersionTag returns the tag binding payloads to this interpreter build and dialect.
func (e *Engine) VersionTag() artifact.VersionTag { return e.tag }

// Close marks the engine closed. It holds no other resources.
func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

// CompileToBytecode parses source and returns the encoded syntax tree.
func (e *Engine) CompileToBytecode(ctx context.Context, source string) ([]byte, error) {
	if e.closed.Load() {
		return nil, engine.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := syntax.NewParser(syntax.Variant(e.dialect)).Parse(strings.NewReader(source), e.name)
	if err != nil {
		return nil, e.syntaxError(err)
	}

	var tree bytes.Buffer
	if err := typedjson.Encode(&tree, file); err != nil {
		return nil, fmt.Errorf("encoding syntax tree: %w", err)
	}

	payload, err := sealTree(tree.Bytes(), e.dialect.String(), e.name, e.codec)
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "compiled shell script",
		"name", e.name,
		"dialect", e.dialect.String(),
		"statements", len(file.Stmts),
		"tree_bytes", tree.Len(),
		"payload_bytes", len(payload))
	return payload, nil
}

// ExecuteBytecode decodes the stored syntax tree and interprets it.
// A non-zero exit status is a completed run; parse, setup and interpreter
// failures, including a context canceled mid-run, are returned as errors.
func (e *Engine) ExecuteBytecode(ctx context.Context, payload []byte, ioc engine.IO) (*engine.Result, error) {
	if e.closed.Load() {
		return nil, engine.ErrClosed
	}

	file, err := e.loadTree(payload)
	if err != nil {
		return nil, err
	}

	opts := []interp.RunnerOption{
		interp.Dir(ioc.Dir),
		interp.Env(expand.ListEnviron(ioc.Env...)),
		interp.StdIO(ioc.Stdin, ioc.Stdout, ioc.Stderr),
	}
	// A leading "--" keeps arguments such as "-e" from being read as shell options.
	if len(ioc.Args) > 0 {
		opts = append(opts, interp.Params(append([]string{"--"}, ioc.Args...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating interpreter: %w", err)
	}

	runErr := runner.Run(ctx, file)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("script interrupted: %w", ctxErr)
	}
	if runErr != nil {
		var status interp.ExitStatus
		if errors.As(runErr, &status) {
			return &engine.Result{ExitCode: types.ExitCode(status)}, nil
		}
		return nil, fmt.Errorf("script execution failed: %w", runErr)
	}
	return &engine.Result{}, nil
}

func (e *Engine) loadTree(payload []byte) (*syntax.File, error) {
	env, err := openEnvelope(payload)
	if err != nil {
		return nil, err
	}
	if env.Dialect != e.dialect.String() {
		return nil, fmt.Errorf("%w: payload dialect %q, engine dialect %q",
			engine.ErrInvalidPayload, env.Dialect, e.dialect.String())
	}

	node, err := typedjson.Decode(bytes.NewReader(env.Tree))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding syntax tree: %w", engine.ErrInvalidPayload, err)
	}
	file, ok := node.(*syntax.File)
	if !ok {
		return nil, fmt.Errorf("%w: syntax tree root is %T, want *syntax.File", engine.ErrInvalidPayload, node)
	}
	return file, nil
}

func (e *Engine) syntaxError(err error) error {
	var parseErr syntax.ParseError
	if errors.As(err, &parseErr) {
		return &engine.SyntaxError{
			Name:       e.name,
			Line:       parseErr.Pos.Line(),
			Col:        parseErr.Pos.Col(),
			Message:    parseErr.Text,
			Incomplete: parseErr.Incomplete,
		}
	}
	var langErr syntax.LangError
	if errors.As(err, &langErr) {
		return &engine.SyntaxError{
			Name:    e.name,
			Line:    langErr.Pos.Line(),
			Col:     langErr.Pos.Col(),
			Message: fmt.Sprintf("%s is not supported in %s", langErr.Feature, langErr.LangUsed),
		}
	}
	return &engine.SyntaxError{Name: e.name, Message: err.Error()}
}

// interpreterVersion reports the linked mvdan.cc/sh module version, or
// "(devel)" when build information is unavailable.
func interpreterVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}
	for _, dep := range info.Deps {
		if dep.Path != interpreterModule {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		if dep.Version != "" {
			return dep.Version
		}
	}
	return "(devel)"
}
