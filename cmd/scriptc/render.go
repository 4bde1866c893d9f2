// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/charmbracelet/fang"

	"github.com/invowk/scriptc/internal/app/compile"
	"github.com/invowk/scriptc/internal/app/execute"
	"github.com/invowk/scriptc/internal/config"
	"github.com/invowk/scriptc/internal/issue"
	"github.com/invowk/scriptc/pkg/artifact"
)

// handleError is the fang error handler. Silent exit errors print nothing,
// actionable errors print their suggestions, and in verbose mode the
// matching issue page is rendered below.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}

	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+ae.Format(a.verbose()))
	if !a.verbose() || ae.Issue == 0 {
		return
	}
	if iss := issue.Get(ae.Issue); iss != nil {
		scheme := config.ColorSchemeAuto
		if a.session != nil {
			scheme = a.session.cfg.UI.ColorScheme
		}
		if rendered, renderErr := iss.Render(glamourStyle(scheme)); renderErr == nil {
			fmt.Fprint(w, rendered)
		}
	}
}

// formatErrorForDisplay formats an error for user display, using
// ActionableError.Format when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// withIssue wraps err in an ActionableError.
func withIssue(err error, operation, resource string, id issue.Id, suggestions ...string) error {
	return issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithIssue(id).
		WithSuggestions(suggestions...).
		Wrap(err).
		BuildError()
}

// fileFailure classifies an error from reading or writing path.
func fileFailure(err error, operation, path string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return withIssue(err, operation, path, issue.FileNotFoundId,
			"Check the path for typos")
	case errors.Is(err, fs.ErrPermission):
		return withIssue(err, operation, path, issue.PermissionDeniedId,
			"Check the file permissions")
	default:
		return withIssue(err, operation, path, 0)
	}
}

// compileFailure wraps a compile.Service error.
func compileFailure(err error, path string, dialect config.Dialect) error {
	if errors.Is(err, compile.ErrCompile) {
		return withIssue(err, "compile script", path, issue.CompileFailedId,
			"Fix the syntax error at the reported line and column",
			fmt.Sprintf("Check that the script is valid %s, or pass --dialect", dialect))
	}
	return withIssue(err, "compile script", path, 0)
}

// runFailure wraps an execute.Service error according to its kind.
func runFailure(err error, path string) error {
	var runErr *execute.RunError
	if !errors.As(err, &runErr) {
		return withIssue(err, "run artifact", path, issue.ExecutionFailedId)
	}

	switch runErr.Kind {
	case execute.KindIncompatibleEngine:
		return withIssue(err, "run artifact", path, issue.IncompatibleEngineId,
			"Recompile the script with this scriptc and dialect",
			"Compare engine tags with 'scriptc inspect "+path+"'")
	case execute.KindExecutionFailed:
		return withIssue(err, "run artifact", path, issue.ExecutionFailedId)
	default:
		return decodeFailure(err, "run artifact", path)
	}
}

// decodeFailure wraps an artifact decode error.
func decodeFailure(err error, operation, path string) error {
	switch {
	case errors.Is(err, artifact.ErrNotAnArtifact):
		return withIssue(err, operation, path, issue.NotAnArtifactId,
			"Compile the script first with 'scriptc compile'",
			"Or compile and run in one step with 'scriptc exec'")
	case errors.Is(err, artifact.ErrUnsupportedFormatVersion):
		return withIssue(err, operation, path, issue.UnsupportedFormatVersionId,
			"Recompile the original script with this scriptc")
	case errors.Is(err, artifact.ErrTruncated):
		return withIssue(err, operation, path, issue.TruncatedArtifactId,
			"Copy the artifact again or recompile the original script")
	case errors.Is(err, artifact.ErrCorrupt):
		return withIssue(err, operation, path, issue.CorruptArtifactId,
			"Recompile the original script")
	default:
		return withIssue(err, operation, path, 0)
	}
}
