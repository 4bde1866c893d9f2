// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptc/internal/app/compile"
	"github.com/invowk/scriptc/internal/config"
	"github.com/invowk/scriptc/internal/engine/shell"
)

const (
	// ArtifactExt is the file extension of compiled artifacts.
	ArtifactExt = ".scbc"
	// stdioPath selects standard input or output.
	stdioPath = "-"
)

type compileRequest struct {
	In          string
	Out         string
	Compression string
	NoDigest    bool
}

func newCompileCommand(app *App) *cobra.Command {
	var req compileRequest

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a shell script into an artifact",
		Long: `Compile a shell script into an artifact.

The script is parsed with the configured dialect. Nothing is written when
parsing fails. The artifact goes to <file> with its extension replaced by
` + ArtifactExt + ` unless --out is given. Use '-' to read the script from
standard input or to write the artifact to standard output.`,
		Example: `  scriptc compile build.sh
  scriptc compile -i build.sh -o dist/build.scbc
  cat build.sh | scriptc compile - > build.scbc`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if req.In != "" && req.In != args[0] {
					return fmt.Errorf("input given twice: %q and --in %q", args[0], req.In)
				}
				req.In = args[0]
			}
			if req.In == "" {
				return fmt.Errorf("no input script: pass a file, --in <file> or '-' for standard input")
			}
			return app.compile(cmd.Context(), req)
		},
	}

	cmd.Flags().StringVarP(&req.In, "in", "i", "", "script to compile ('-' for standard input)")
	cmd.Flags().StringVarP(&req.Out, "out", "o", "", "artifact to write ('-' for standard output)")
	cmd.Flags().StringVar(&req.Compression, "compression", "", "syntax tree compression: none, lz4 or zstd")
	cmd.Flags().BoolVar(&req.NoDigest, "no-digest", false, "omit the source digest from the header")

	return cmd
}

func (a *App) compile(ctx context.Context, req compileRequest) error {
	source, name, err := a.readScript(req.In)
	if err != nil {
		return err
	}

	out := req.Out
	if out == "" {
		out = defaultArtifactPath(req.In)
	}
	if out != stdioPath && req.In != stdioPath && filepath.Clean(out) == filepath.Clean(req.In) {
		return fmt.Errorf("output %q would overwrite the input script", out)
	}

	settings, err := a.engineSettings(name)
	if err != nil {
		return err
	}
	if req.Compression != "" {
		c := config.Compression(req.Compression)
		if ok, errs := c.IsValid(); !ok {
			return withIssue(errs[0], "apply --compression", req.Compression, 0,
				"Use one of: none, lz4, zstd")
		}
		if settings.Compression, err = c.Tag(); err != nil {
			return err
		}
	}

	eng, err := a.newEngine(settings)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	opts := []compile.Option{compile.WithLogger(a.logger())}
	if req.NoDigest {
		opts = append(opts, compile.WithoutDigest())
	}
	data, err := compile.New(eng, opts...).Compile(ctx, string(source))
	if err != nil {
		return compileFailure(err, req.In, settings.Dialect)
	}

	if out == stdioPath {
		if _, err := a.stdout.Write(data); err != nil {
			return fmt.Errorf("writing artifact: %w", err)
		}
		return nil
	}
	if err := writeArtifact(out, data); err != nil {
		return fileFailure(err, "write artifact", out)
	}
	fmt.Fprintf(a.stdout, "%s Compiled %s → %s (%d bytes)\n", SuccessStyle.Render("✓"), req.In, out, len(data))
	return nil
}

// readScript returns the script at path, or standard input for "-", with
// the name used in diagnostics.
func (a *App) readScript(path string) (source []byte, name string, err error) {
	if path == stdioPath {
		source, err = io.ReadAll(a.stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading standard input: %w", err)
		}
		return source, shell.DefaultName, nil
	}
	source, err = os.ReadFile(path)
	if err != nil {
		return nil, "", fileFailure(err, "read script", path)
	}
	return source, filepath.Base(path), nil
}

// defaultArtifactPath replaces the extension of in with ArtifactExt.
// Standard input compiles to standard output.
func defaultArtifactPath(in string) string {
	if in == stdioPath {
		return stdioPath
	}
	return strings.TrimSuffix(in, filepath.Ext(in)) + ArtifactExt
}

// writeArtifact writes data next to path and renames it into place so a
// failed write never leaves a truncated artifact behind.
func writeArtifact(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".scriptc-*"+ArtifactExt)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
