// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"errors"
	"fmt"

	"github.com/invowk/scriptc/pkg/artifact"
)

// Run failure kinds. The first four mirror artifact decode failures.
const (
	KindNotAnArtifact Kind = iota + 1
	KindUnsupportedFormatVersion
	KindTruncated
	KindCorrupt
	// KindIncompatibleEngine means the artifact was produced by a different engine build.
	KindIncompatibleEngine
	// KindExecutionFailed means the engine faulted while running the payload.
	KindExecutionFailed
)

// Pipeline stages at which a run can end.
const (
	StageDecode Stage = iota + 1
	StageVersionCheck
	StageExecute
)

var (
	// ErrRun is wrapped by every RunError.
	ErrRun = errors.New("run failed")
	// ErrIncompatibleEngine is wrapped by RunErrors of KindIncompatibleEngine.
	ErrIncompatibleEngine = errors.New("artifact was compiled by an incompatible engine")
	// ErrExecutionFailed is wrapped by RunErrors of KindExecutionFailed.
	ErrExecutionFailed = errors.New("script execution failed")
)

type (
	// Kind classifies a run failure.
	Kind int

	// Stage identifies where in the pipeline a run stopped.
	Stage int

	// RunError reports why an artifact was not run to completion.
	// errors.Is matches ErrRun, the kind sentinel and, for decode kinds, the
	// artifact package sentinel. Err carries the underlying cause.
	RunError struct {
		Kind   Kind
		Stage  Stage
		Detail string
		Err    error
	}
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNotAnArtifact:
		return "not-an-artifact"
	case KindUnsupportedFormatVersion:
		return "unsupported-format-version"
	case KindTruncated:
		return "truncated"
	case KindCorrupt:
		return "corrupt"
	case KindIncompatibleEngine:
		return "incompatible-engine"
	case KindExecutionFailed:
		return "execution-failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageDecode:
		return "decode"
	case StageVersionCheck:
		return "version-check"
	case StageExecute:
		return "execute"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// kindFromDecode maps an artifact decode kind to the run kind of the same name.
func kindFromDecode(k artifact.Kind) Kind {
	switch k {
	case artifact.KindNotAnArtifact:
		return KindNotAnArtifact
	case artifact.KindUnsupportedFormatVersion:
		return KindUnsupportedFormatVersion
	case artifact.KindTruncated:
		return KindTruncated
	default:
		return KindCorrupt
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindIncompatibleEngine:
		return ErrIncompatibleEngine
	case KindExecutionFailed:
		return ErrExecutionFailed
	default:
		return nil
	}
}

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrRun, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrRun, the kind sentinel and the cause to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := []error{ErrRun}
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
