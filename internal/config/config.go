// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/invowk/scriptc/internal/issue"
	"github.com/invowk/scriptc/pkg/cueutil"
)

const (
	// AppName is the application name used for directories and env vars.
	AppName = "scriptc"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variable overrides.
	EnvPrefix = "SCRIPTC"
)

//go:embed config_schema.cue
var configSchema []byte

// ErrConfigExists is returned by CreateDefaultConfig when the file exists.
var ErrConfigExists = errors.New("config file already exists")

// Schema returns the embedded CUE schema.
func Schema() string { return string(configSchema) }

// ConfigDir returns the scriptc configuration directory: %APPDATA%\scriptc on
// Windows, ~/Library/Application Support/scriptc on macOS and
// $XDG_CONFIG_HOME/scriptc (default ~/.config/scriptc) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// DefaultConfigPath returns the path of config.cue inside dir, or inside
// ConfigDir when dir is empty.
func DefaultConfigPath(dir string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions builds a fresh Viper instance, layers defaults, the CUE
// file and environment overrides, and returns the decoded, validated config
// together with the file it came from ("" when only defaults applied).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, explicit := opts.ConfigFilePath, opts.ConfigFilePath != ""
	if !explicit {
		var err error
		if path, err = DefaultConfigPath(opts.ConfigDirPath); err != nil {
			return nil, "", err
		}
	}

	resolvedPath := ""
	switch exists := fileExists(path); {
	case exists:
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Compare the file with 'scriptc config schema'").
				WithSuggestion("Run 'scriptc config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
		resolvedPath = path
	case explicit:
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Create a starter file with 'scriptc config init'").
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides bypass the CUE schema, so validate the merged result.
	if ok, errs := cfg.IsValid(); !ok {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for typos").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("engine.dialect", defaults.Engine.Dialect.String())
	v.SetDefault("engine.compression", defaults.Engine.Compression.String())
	v.SetDefault("cache.dir", defaults.Cache.Dir.String())
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("log.level", defaults.Log.Level.String())
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme.String())
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// Fields are optional, so validation does not require concrete values.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	values, err := cueutil.Decode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a config file holding the defaults to path, or
// to the default location when path is empty, and returns the path written.
// An existing file is left untouched and reported with ErrConfigExists.
func CreateDefaultConfig(path string) (string, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(""); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.WriteString(GenerateCUE(DefaultConfig())); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a CUE document accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// scriptc configuration\n")
	sb.WriteString("// Environment variables such as SCRIPTC_ENGINE_DIALECT override these values.\n\n")

	sb.WriteString("engine: {\n")
	fmt.Fprintf(&sb, "\tdialect:     %q\n", cfg.Engine.Dialect)
	fmt.Fprintf(&sb, "\tcompression: %q\n", cfg.Engine.Compression)
	sb.WriteString("}\n\n")

	sb.WriteString("cache: {\n")
	if cfg.Cache.Dir != "" {
		fmt.Fprintf(&sb, "\tdir:     %q\n", cfg.Cache.Dir)
	}
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Cache.Enabled)
	sb.WriteString("}\n\n")

	sb.WriteString("log: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n\n")

	sb.WriteString("ui: {\n")
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	return sb.String()
}

// GenerateTOML renders cfg as TOML, for tools that do not read CUE.
func GenerateTOML(cfg *Config) (string, error) {
	var sb strings.Builder
	enc := toml.NewEncoder(&sb).SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("encode configuration as TOML: %w", err)
	}
	return sb.String(), nil
}
