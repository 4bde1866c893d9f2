// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invowk/scriptc/internal/compress"
)

const (
	// DialectBash parses scripts as bash.
	DialectBash Dialect = "bash"
	// DialectPOSIX parses scripts as POSIX sh.
	DialectPOSIX Dialect = "posix"
	// DialectSh is an alias of DialectPOSIX.
	DialectSh Dialect = "sh"
	// DialectMksh parses scripts as MirBSD Korn shell.
	DialectMksh Dialect = "mksh"
	// DialectBats parses scripts as Bats test files.
	DialectBats Dialect = "bats"

	// LogLevelDebug enables debug logging.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default log level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"

	// ColorSchemeAuto detects the terminal background.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces the dark palette.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces the light palette.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidDialect is returned when a Dialect value is not recognized.
	ErrInvalidDialect = errors.New("invalid shell dialect")
	// ErrInvalidCompression is returned when a Compression value is not recognized.
	ErrInvalidCompression = errors.New("invalid compression")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidCacheDirPath is returned when a CacheDirPath value is whitespace-only.
	ErrInvalidCacheDirPath = errors.New("invalid cache dir path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Dialect names the shell language scripts are parsed as.
	Dialect string

	// Compression names the payload compression algorithm.
	Compression string

	// LogLevel is the minimum level of emitted log records.
	LogLevel string

	// ColorScheme is the terminal palette preference.
	ColorScheme string

	// CacheDirPath is the artifact cache directory. The zero value means the
	// per-user cache directory.
	CacheDirPath string

	// InvalidValueError reports a field holding an unrecognized value.
	// It wraps the sentinel of the field's type.
	InvalidValueError struct {
		Field string
		Value string
		Valid []string
		kind  error
	}

	// InvalidConfigError collects every field error found by Config.IsValid.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the complete scriptc configuration.
	Config struct {
		Engine EngineConfig `json:"engine" mapstructure:"engine" toml:"engine"`
		Cache  CacheConfig  `json:"cache" mapstructure:"cache" toml:"cache"`
		Log    LogConfig    `json:"log" mapstructure:"log" toml:"log"`
		UI     UIConfig     `json:"ui" mapstructure:"ui" toml:"ui"`
	}

	// EngineConfig configures the shell engine.
	EngineConfig struct {
		Dialect     Dialect     `json:"dialect" mapstructure:"dialect" toml:"dialect"`
		Compression Compression `json:"compression" mapstructure:"compression" toml:"compression"`
	}

	// CacheConfig configures the artifact cache used by "scriptc exec".
	CacheConfig struct {
		Dir     CacheDirPath `json:"dir" mapstructure:"dir" toml:"dir,omitempty"`
		Enabled bool         `json:"enabled" mapstructure:"enabled" toml:"enabled"`
	}

	// LogConfig configures diagnostic logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level" toml:"level"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose" toml:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme" toml:"color_scheme"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Dialect:     DialectBash,
			Compression: Compression(compress.Zstd.String()),
		},
		Cache: CacheConfig{Enabled: true},
		Log:   LogConfig{Level: LogLevelInfo},
		UI:    UIConfig{ColorScheme: ColorSchemeAuto},
	}
}

// IsValid checks every field and returns an *InvalidConfigError listing the
// problems found.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, check := range []func() (bool, []error){
		c.Engine.Dialect.IsValid,
		c.Engine.Compression.IsValid,
		c.Cache.Dir.IsValid,
		c.Log.Level.IsValid,
		c.UI.ColorScheme.IsValid,
	} {
		if ok, fieldErrs := check(); !ok {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Error implements the error interface.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %q (valid: %s)", e.Field, e.Value, strings.Join(e.Valid, ", "))
}

// Unwrap returns the sentinel for the field's type.
func (e *InvalidValueError) Unwrap() error { return e.kind }

func (d Dialect) String() string { return string(d) }

// IsValid reports whether d names a supported dialect.
func (d Dialect) IsValid() (bool, []error) {
	switch d {
	case DialectBash, DialectPOSIX, DialectSh, DialectMksh, DialectBats:
		return true, nil
	default:
		return false, []error{&InvalidValueError{
			Field: "engine.dialect", Value: string(d), kind: ErrInvalidDialect,
			Valid: []string{"bash", "posix", "sh", "mksh", "bats"},
		}}
	}
}

func (c Compression) String() string { return string(c) }

// Tag returns the compression tag named by c.
func (c Compression) Tag() (compress.Tag, error) {
	tag, err := compress.ParseTag(string(c))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCompression, err)
	}
	return tag, nil
}

// IsValid reports whether c names a supported compression algorithm.
func (c Compression) IsValid() (bool, []error) {
	if _, err := c.Tag(); err != nil || c == "" {
		return false, []error{&InvalidValueError{
			Field: "engine.compression", Value: string(c), kind: ErrInvalidCompression,
			Valid: compress.Names(),
		}}
	}
	return true, nil
}

func (l LogLevel) String() string { return string(l) }

// IsValid reports whether l names a supported log level.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidValueError{
			Field: "log.level", Value: string(l), kind: ErrInvalidLogLevel,
			Valid: []string{"debug", "info", "warn", "error"},
		}}
	}
}

func (s ColorScheme) String() string { return string(s) }

// IsValid reports whether s names a supported color scheme.
func (s ColorScheme) IsValid() (bool, []error) {
	switch s {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidValueError{
			Field: "ui.color_scheme", Value: string(s), kind: ErrInvalidColorScheme,
			Valid: []string{"auto", "dark", "light"},
		}}
	}
}

func (p CacheDirPath) String() string { return string(p) }

// IsValid accepts the empty path and rejects whitespace-only paths.
func (p CacheDirPath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidValueError{
			Field: "cache.dir", Value: string(p), kind: ErrInvalidCacheDirPath,
			Valid: []string{"an empty string", "a directory path"},
		}}
	}
	return true, nil
}
