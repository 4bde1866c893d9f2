// SPDX-License-Identifier: MPL-2.0

package compile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/invowk/scriptc/internal/engine"
	"github.com/invowk/scriptc/pkg/artifact"
)

// ErrCompile is the sentinel wrapped by CompileError.
var ErrCompile = errors.New("compilation failed")

type (
	// CompileError reports that the engine rejected the source. Reason is a
	// short human-readable explanation; Err is the engine error.
	//
	//nolint:revive // compile.CompileError reads better at call sites than compile.Error
	CompileError struct {
		Reason string
		Err    error
	}

	// Service compiles sources on a single engine. It holds no mutable state.
	Service struct {
		engine   engine.Engine
		logger   *slog.Logger
		noDigest bool
	}

	// Option configures a Service.
	Option func(*Service)
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Reason == "" {
		return ErrCompile.Error()
	}
	return ErrCompile.Error() + ": " + e.Reason
}

// Unwrap exposes ErrCompile and the engine error.
func (e *CompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCompile}
	}
	return []error{ErrCompile, e.Err}
}

// WithLogger sets the logger for compile events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithoutDigest omits the source digest from produced artifacts.
func WithoutDigest() Option {
	return func(s *Service) { s.noDigest = true }
}

// New creates a compile service bound to eng.
func New(eng engine.Engine, opts ...Option) *Service {
	s := &Service{
		engine: eng,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile returns the artifact bytes for source. On failure it returns a
// *CompileError and no bytes.
func (s *Service) Compile(ctx context.Context, source string) ([]byte, error) {
	payload, err := s.engine.CompileToBytecode(ctx, source)
	if err != nil {
		s.logger.DebugContext(ctx, "engine rejected source", "error", err)
		return nil, &CompileError{Reason: err.Error(), Err: err}
	}

	var digest []byte
	if !s.noDigest {
		digest = artifact.DigestSource(source).Bytes()
	}

	tag := s.engine.VersionTag()
	data, err := artifact.Encode(payload, tag, digest)
	if err != nil {
		return nil, &CompileError{Reason: "encoding artifact", Err: err}
	}

	s.logger.DebugContext(ctx, "compiled artifact",
		"engine_tag", tag.String(),
		"payload_bytes", len(payload),
		"artifact_bytes", len(data))
	return data, nil
}
