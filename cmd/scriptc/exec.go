// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptc/internal/app/compile"
	"github.com/invowk/scriptc/internal/app/execute"
	"github.com/invowk/scriptc/internal/cache"
	"github.com/invowk/scriptc/pkg/artifact"
)

func newExecCommand(app *App) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "exec <script> [-- args...]",
		Short: "Compile a script through the artifact cache and run it",
		Long: `Compile a script through the artifact cache and run it.

Artifacts are cached under the source digest and the engine tag, so an
unchanged script is parsed once per scriptc build and dialect. Cached
artifacts are validated like any other artifact before they run.`,
		Example: `  scriptc exec build.sh
  scriptc exec --no-cache build.sh -- --target linux`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.execScript(cmd.Context(), args[0], scriptArgs(args[1:]), noCache)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "compile in memory without reading or writing the cache")
	return cmd
}

func (a *App) execScript(ctx context.Context, path string, args []string, noCache bool) error {
	raw, name, err := a.readScript(path)
	if err != nil {
		return err
	}
	source := string(raw)

	settings, err := a.engineSettings(name)
	if err != nil {
		return err
	}
	eng, err := a.newEngine(settings)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	compiler := compile.New(eng, compile.WithLogger(a.logger()))
	compileSource := func(ctx context.Context) ([]byte, error) {
		data, err := compiler.Compile(ctx, source)
		if err != nil {
			return nil, compileFailure(err, path, settings.Dialect)
		}
		return data, nil
	}

	c := a.openCache(noCache)
	if c == nil {
		data, err := compileSource(ctx)
		if err != nil {
			return err
		}
		return a.execute(ctx, eng, data, path, args)
	}

	key := cache.Key(artifact.DigestSource(source), eng.VersionTag())
	data, hit, err := c.GetOrCompile(ctx, key, compileSource)
	if err != nil {
		return err
	}
	a.logger().Debug("artifact cache", "key", key, "hit", hit)

	err = a.execute(ctx, eng, data, path, args)
	if hit && isDecodeFailure(err) {
		// A damaged cache entry is dropped and the script compiled afresh.
		a.logger().Warn("discarding unreadable cached artifact", "key", key, "error", err)
		if rmErr := c.Remove(key); rmErr != nil {
			a.logger().Warn("removing cached artifact", "key", key, "error", rmErr)
		}
		if data, _, err = c.GetOrCompile(ctx, key, compileSource); err != nil {
			return err
		}
		return a.execute(ctx, eng, data, path, args)
	}
	return err
}

// openCache returns the configured artifact cache, or nil when caching is
// disabled or the directory is unusable.
func (a *App) openCache(disabled bool) *cache.Cache {
	if disabled || !a.session.cfg.Cache.Enabled {
		return nil
	}
	dir, err := a.cacheDir()
	if err == nil {
		var c *cache.Cache
		if c, err = cache.Open(dir); err == nil {
			return c
		}
	}
	a.logger().Warn("artifact cache unavailable, compiling in memory", "error", err)
	return nil
}

func (a *App) cacheDir() (string, error) {
	if dir := a.session.cfg.Cache.Dir.String(); dir != "" {
		return dir, nil
	}
	return cache.DefaultDir()
}

func isDecodeFailure(err error) bool {
	var runErr *execute.RunError
	return errors.As(err, &runErr) && runErr.Stage == execute.StageDecode
}
