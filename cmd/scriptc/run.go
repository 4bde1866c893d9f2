// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptc/internal/app/execute"
	"github.com/invowk/scriptc/internal/engine"
)

func newRunCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <artifact> [-- args...]",
		Short: "Run a compiled artifact",
		Long: `Run a compiled artifact.

The header, format version and engine tag are checked before the script
starts. Arguments after the artifact become the positional parameters $1,
$2, and so on. scriptc exits with the script's exit status.`,
		Example: `  scriptc run build.scbc
  scriptc run build.scbc -- --target linux`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runArtifact(cmd.Context(), args[0], scriptArgs(args[1:]))
		},
	}
	// Everything after the artifact belongs to the script.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (a *App) runArtifact(ctx context.Context, path string, args []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileFailure(err, "read artifact", path)
	}

	settings, err := a.engineSettings(path)
	if err != nil {
		return err
	}
	eng, err := a.newEngine(settings)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	return a.execute(ctx, eng, data, path, args)
}

// execute runs an artifact through the execution service and converts the
// outcome into the CLI exit status.
func (a *App) execute(ctx context.Context, eng engine.Engine, data []byte, path string, args []string) error {
	result, err := execute.New(eng, execute.WithLogger(a.logger())).Run(ctx, data, a.scriptIO(args))
	if err != nil {
		return runFailure(err, path)
	}
	if !result.Success() {
		return &ExitError{Code: result.ExitCode}
	}
	return nil
}

func (a *App) scriptIO(args []string) engine.IO {
	return engine.IO{
		Stdin:  a.stdin,
		Stdout: a.stdout,
		Stderr: a.stderr,
		Args:   args,
		Env:    os.Environ(),
	}
}

// scriptArgs drops the "--" separator that non-interspersed flag parsing
// leaves in place.
func scriptArgs(args []string) []string {
	if len(args) > 0 && args[0] == "--" {
		return args[1:]
	}
	return args
}
