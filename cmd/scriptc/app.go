// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/invowk/scriptc/internal/compress"
	"github.com/invowk/scriptc/internal/config"
	"github.com/invowk/scriptc/internal/engine"
	"github.com/invowk/scriptc/internal/engine/shell"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reaches configuration and engines through it.
	App struct {
		Config  config.Provider
		Engines EngineFactory
		stdin   io.Reader
		stdout  io.Writer
		stderr  io.Writer

		flags   globalFlags
		session *session
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  config.Provider
		Engines EngineFactory
		Stdin   io.Reader
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// EngineSettings selects how an engine compiles and runs scripts.
	EngineSettings struct {
		Dialect     config.Dialect
		Compression compress.Tag
		// Name is the script name used in diagnostics.
		Name   string
		Logger *slog.Logger
	}

	// EngineFactory builds an engine for one command invocation. The caller
	// closes it.
	EngineFactory func(EngineSettings) (engine.Engine, error)

	globalFlags struct {
		verbose    bool
		configPath string
		dialect    string
		logLevel   string
	}

	// session is the per-invocation state resolved from flags and config.
	session struct {
		cfg     *config.Config
		cfgPath string
		verbose bool
		logger  *slog.Logger
	}
)

// NewApp creates the CLI composition root.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Engines == nil {
		deps.Engines = newShellEngine
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	return &App{
		Config:  deps.Config,
		Engines: deps.Engines,
		stdin:   deps.Stdin,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}, nil
}

func newShellEngine(s EngineSettings) (engine.Engine, error) {
	return shell.New(
		shell.WithDialect(s.Dialect.String()),
		shell.WithCompression(s.Compression),
		shell.WithName(s.Name),
		shell.WithLogger(s.Logger),
	)
}

// engineSettings returns the configured engine settings for a script name.
func (a *App) engineSettings(name string) (EngineSettings, error) {
	tag, err := a.session.cfg.Engine.Compression.Tag()
	if err != nil {
		return EngineSettings{}, err
	}
	return EngineSettings{
		Dialect:     a.session.cfg.Engine.Dialect,
		Compression: tag,
		Name:        name,
		Logger:      a.session.logger,
	}, nil
}

func (a *App) newEngine(s EngineSettings) (engine.Engine, error) {
	eng, err := a.Engines(s)
	if err != nil {
		return nil, withIssue(err, "create shell engine", s.Dialect.String(), 0,
			"Check engine.dialect and engine.compression with 'scriptc config show'")
	}
	return eng, nil
}

func (a *App) verbose() bool {
	if a.session != nil {
		return a.session.verbose
	}
	return a.flags.verbose
}

func (a *App) logger() *slog.Logger {
	if a.session != nil {
		return a.session.logger
	}
	return slog.New(slog.DiscardHandler)
}
