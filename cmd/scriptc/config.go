// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptc/internal/config"
	"github.com/invowk/scriptc/internal/issue"
)

// newConfigCommand creates the `scriptc config` command tree. Its
// subcommands load configuration themselves so a broken file can be shown.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage scriptc configuration",
		Long: `Manage scriptc configuration.

Configuration is stored in:
  - Linux: $XDG_CONFIG_HOME/scriptc/config.cue (default ~/.config/scriptc)
  - macOS: ~/Library/Application Support/scriptc/config.cue
  - Windows: %APPDATA%\scriptc\config.cue

Environment variables such as SCRIPTC_ENGINE_DIALECT override the file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	skip := map[string]string{skipConfigAnnotation: "true"}

	var showFormat string
	showCmd := &cobra.Command{
		Use:         "show",
		Short:       "Show the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: skip,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.showConfig(cmd.Context(), showFormat)
		},
	}
	showCmd.Flags().StringVar(&showFormat, "format", "cue", "output format: cue or toml")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Create a configuration file holding the defaults",
		Args:        cobra.NoArgs,
		Annotations: skip,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.initConfig()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file path",
		Args:        cobra.NoArgs,
		Annotations: skip,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := app.configFilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "schema",
		Short:       "Print the CUE schema configuration files are checked against",
		Args:        cobra.NoArgs,
		Annotations: skip,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprint(app.stdout, config.Schema())
			return nil
		},
	})

	return cfgCmd
}

func (a *App) showConfig(ctx context.Context, format string) error {
	if format != "cue" && format != "toml" {
		return fmt.Errorf("unknown format %q (want cue or toml)", format)
	}
	loaded, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		var ae *issue.ActionableError
		if errors.As(err, &ae) && ae.Issue == 0 {
			ae.Issue = issue.ConfigLoadFailedId
		}
		return err
	}
	cfg := loaded.Config
	if err := applyFlagOverrides(cfg, a.flags); err != nil {
		return err
	}

	if format == "toml" {
		out, err := config.GenerateTOML(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(a.stdout, out)
		return nil
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(a.stdout)
	if loaded.Path != "" {
		fmt.Fprintf(a.stdout, "%s: %s\n", KeyStyle.Render("Config file"), loaded.Path)
	} else {
		fmt.Fprintf(a.stdout, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(a.stdout)
	fmt.Fprint(a.stdout, config.GenerateCUE(cfg))
	return nil
}

func (a *App) initConfig() error {
	path, err := a.configFilePath()
	if err != nil {
		return err
	}
	path, err = config.CreateDefaultConfig(path)
	if errors.Is(err, config.ErrConfigExists) {
		return withIssue(err, "create configuration", path, 0,
			"Edit the existing file, or remove it and run 'scriptc config init' again")
	}
	if err != nil {
		return fileFailure(err, "create configuration", path)
	}
	fmt.Fprintf(a.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

// configFilePath returns --config when set, else the default location.
func (a *App) configFilePath() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}
	return config.DefaultConfigPath("")
}
