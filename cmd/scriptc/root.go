// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/invowk/scriptc/internal/config"
	"github.com/invowk/scriptc/pkg/types"
)

// skipConfigAnnotation marks commands that load configuration themselves.
const skipConfigAnnotation = "scriptc/skip-config"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the scriptc command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scriptc",
		Short: "Compile shell scripts into validated artifacts and run them",
		Long: TitleStyle.Render("scriptc") + SubtitleStyle.Render(" - compile shell scripts into validated artifacts") + `

scriptc parses a shell script once and stores the parsed program in a
self-describing artifact. Running an artifact checks its header, format
version and engine tag before anything executes, so a truncated, foreign or
stale file is rejected instead of half-run.

` + SubtitleStyle.Render("Examples:") + `
  scriptc compile build.sh            Write build.scbc
  scriptc run build.scbc -- --fast    Run an artifact with arguments
  scriptc inspect build.scbc          Show the artifact header
  scriptc exec build.sh               Compile through the cache and run`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
	}

	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output and debug logging")
	pf.StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/scriptc/config.cue)")
	pf.StringVar(&app.flags.dialect, "dialect", "", "shell dialect: bash, posix, sh, mksh or bats")
	pf.StringVar(&app.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newCompileCommand(app),
		newRunCommand(app),
		newExecCommand(app),
		newInspectCommand(app),
		newCacheCommand(app),
		newConfigCommand(app),
		newCompletionCommand(),
	)

	return rootCmd
}

// Execute runs scriptc with the process arguments and exits with the
// resulting status. It is called by main.main.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(types.ExitFailure.Int())
	}
	os.Exit(app.Run(context.Background(), os.Args[1:]).Int())
}

// Run executes the command tree with args and returns the exit status.
// Script failures surface as their own exit status; every other failure
// is reported on stderr and yields ExitFailure.
func (a *App) Run(ctx context.Context, args []string) types.ExitCode {
	rootCmd := NewRootCommand(a)
	rootCmd.SetArgs(args)

	err := fang.Execute(ctx, rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(a.handleError),
	)
	if err == nil {
		return types.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return types.ExitFailure
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// prepare resolves configuration, flag overrides and logging for the
// invoked command. A broken implicit config file degrades to defaults with
// a warning; an explicit --config that fails to load is fatal.
func (a *App) prepare(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	var cfgPath string

	if cmd.Annotations[skipConfigAnnotation] == "" {
		loaded, err := a.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: a.flags.configPath})
		switch {
		case err == nil:
			cfg, cfgPath = loaded.Config, loaded.Path
		case a.flags.configPath != "":
			return err
		default:
			fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, a.flags.verbose))
		}
	}

	if err := applyFlagOverrides(cfg, a.flags); err != nil {
		return err
	}

	verbose := a.flags.verbose || cfg.UI.Verbose
	a.session = &session{
		cfg:     cfg,
		cfgPath: cfgPath,
		verbose: verbose,
		logger:  newLogger(a.stderr, cfg.Log.Level, verbose),
	}
	applyColorScheme(cfg.UI.ColorScheme)

	a.session.logger.Debug("configuration resolved",
		"path", cfgPath, "dialect", cfg.Engine.Dialect, "compression", cfg.Engine.Compression)
	return nil
}

func applyFlagOverrides(cfg *config.Config, flags globalFlags) error {
	if flags.dialect != "" {
		d := config.Dialect(flags.dialect)
		if ok, errs := d.IsValid(); !ok {
			return withIssue(errs[0], "apply --dialect", flags.dialect, 0,
				"Use one of: bash, posix, sh, mksh, bats")
		}
		cfg.Engine.Dialect = d
	}
	if flags.logLevel != "" {
		l := config.LogLevel(flags.logLevel)
		if ok, errs := l.IsValid(); !ok {
			return withIssue(errs[0], "apply --log-level", flags.logLevel, 0,
				"Use one of: debug, info, warn, error")
		}
		cfg.Log.Level = l
	}
	return nil
}

// newLogger returns a slog logger backed by charmbracelet/log. Verbose mode
// forces debug level.
func newLogger(w io.Writer, level config.LogLevel, verbose bool) *slog.Logger {
	lvl, err := log.ParseLevel(level.String())
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return slog.New(log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  lvl,
	}))
}

func applyColorScheme(scheme config.ColorScheme) {
	switch scheme {
	case config.ColorSchemeDark:
		lipgloss.SetHasDarkBackground(true)
	case config.ColorSchemeLight:
		lipgloss.SetHasDarkBackground(false)
	case config.ColorSchemeAuto:
	}
}

// glamourStyle maps the color scheme to a glamour style name.
func glamourStyle(scheme config.ColorScheme) string {
	switch scheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}
