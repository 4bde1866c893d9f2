// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invowk/scriptc/internal/engine"
	"github.com/invowk/scriptc/pkg/artifact"
)

type (
	// Service executes artifacts on a single engine. It holds no mutable
	// state and is safe for concurrent use when the engine is.
	Service struct {
		engine engine.Engine
		logger *slog.Logger
	}

	// Option configures a Service.
	Option func(*Service)
)

// WithLogger sets the logger for pipeline events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an execution service bound to eng.
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

// Run decodes data, checks the engine version tag and executes the payload.
//
// The engine is invoked at most once, and only after the artifact decoded
// cleanly and its tag matches the engine's. A script that exits non-zero
// is a completed run: the status is in Result.ExitCode and err is nil.
func (s *Service) Run(ctx context.Context, data []byte, ioc engine.IO) (*engine.Result, error) {
	art, err := artifact.Decode(data)
	if err != nil {
		return nil, s.reject(ctx, decodeFailure(err))
	}

	want := s.engine.VersionTag()
	if got := art.EngineVersionTag(); got != want {
		return nil, s.reject(ctx, &RunError{
			Kind:   KindIncompatibleEngine,
			Stage:  StageVersionCheck,
			Detail: fmt.Sprintf("artifact engine tag %s, running engine tag %s", got, want),
		})
	}

	s.logger.DebugContext(ctx, "executing artifact",
		"format_version", art.FormatVersion(),
		"engine_tag", want.String(),
		"payload_bytes", art.PayloadLength())

	result, err := s.engine.ExecuteBytecode(ctx, art.Payload(), ioc)
	if err != nil {
		return nil, s.reject(ctx, &RunError{Kind: KindExecutionFailed, Stage: StageExecute, Err: err})
	}
	if result == nil {
		return nil, s.reject(ctx, &RunError{
			Kind:   KindExecutionFailed,
			Stage:  StageExecute,
			Detail: "engine returned no result",
		})
	}

	s.logger.DebugContext(ctx, "artifact completed", "exit_code", int(result.ExitCode))
	return result, nil
}

func (s *Service) reject(ctx context.Context, err *RunError) *RunError {
	s.logger.DebugContext(ctx, "artifact rejected",
		"kind", err.Kind.String(),
		"stage", err.Stage.String(),
		"error", err)
	return err
}

// decodeFailure converts an artifact decode error into a RunError that keeps
// the decode error as its cause.
func decodeFailure(err error) *RunError {
	var decErr *artifact.DecodeError
	if errors.As(err, &decErr) {
		return &RunError{Kind: kindFromDecode(decErr.Kind), Stage: StageDecode, Err: decErr}
	}
	return &RunError{Kind: KindCorrupt, Stage: StageDecode, Err: err}
}
