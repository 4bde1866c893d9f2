// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"

	"github.com/invowk/scriptc/internal/compress"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()

	if ok, errs := DefaultConfig().IsValid(); !ok {
		t.Fatalf("DefaultConfig().IsValid() = false: %v", errs)
	}
}

func TestConfig_IsValidCollectsAllFields(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Engine: EngineConfig{Dialect: "zsh", Compression: "gzip"},
		Cache:  CacheConfig{Dir: "   "},
		Log:    LogConfig{Level: "trace"},
		UI:     UIConfig{ColorScheme: "neon"},
	}

	ok, errs := cfg.IsValid()
	if ok || len(errs) != 1 {
		t.Fatalf("IsValid() = %v, %v", ok, errs)
	}

	var ice *InvalidConfigError
	if !errors.As(errs[0], &ice) {
		t.Fatalf("error type = %T, want *InvalidConfigError", errs[0])
	}
	if len(ice.FieldErrors) != 5 {
		t.Errorf("len(FieldErrors) = %d, want 5: %v", len(ice.FieldErrors), ice.FieldErrors)
	}
	if !errors.Is(errs[0], ErrInvalidConfig) {
		t.Error("errors.Is(err, ErrInvalidConfig) = false")
	}

	for i, want := range []error{
		ErrInvalidDialect, ErrInvalidCompression, ErrInvalidCacheDirPath,
		ErrInvalidLogLevel, ErrInvalidColorScheme,
	} {
		if !errors.Is(ice.FieldErrors[i], want) {
			t.Errorf("FieldErrors[%d] = %v, want %v", i, ice.FieldErrors[i], want)
		}
	}
}

func TestDialect_IsValid(t *testing.T) {
	t.Parallel()

	for _, d := range []Dialect{DialectBash, DialectPOSIX, DialectSh, DialectMksh, DialectBats} {
		if ok, _ := d.IsValid(); !ok {
			t.Errorf("%q should be valid", d)
		}
	}
	for _, d := range []Dialect{"", "zsh", "BASH"} {
		ok, errs := d.IsValid()
		if ok {
			t.Errorf("%q should be invalid", d)
			continue
		}
		var ive *InvalidValueError
		if !errors.As(errs[0], &ive) || ive.Field != "engine.dialect" {
			t.Errorf("unexpected error for %q: %v", d, errs[0])
		}
	}
}

func TestCompression_Tag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value Compression
		want  compress.Tag
	}{
		{"none", compress.None},
		{"lz4", compress.LZ4},
		{"zstd", compress.Zstd},
	}
	for _, tt := range tests {
		got, err := tt.value.Tag()
		if err != nil || got != tt.want {
			t.Errorf("%q.Tag() = %v, %v; want %v", tt.value, got, err, tt.want)
		}
		if ok, _ := tt.value.IsValid(); !ok {
			t.Errorf("%q should be valid", tt.value)
		}
	}

	if _, err := Compression("brotli").Tag(); !errors.Is(err, ErrInvalidCompression) {
		t.Errorf("Tag() error = %v, want ErrInvalidCompression", err)
	}
	if ok, _ := Compression("").IsValid(); ok {
		t.Error("empty compression should be invalid in configuration")
	}
}

func TestCacheDirPath_IsValid(t *testing.T) {
	t.Parallel()

	for _, p := range []CacheDirPath{"", "/tmp/cache", "relative/dir"} {
		if ok, _ := p.IsValid(); !ok {
			t.Errorf("%q should be valid", p)
		}
	}
	if ok, _ := CacheDirPath(" \t").IsValid(); ok {
		t.Error("whitespace-only path should be invalid")
	}
}

func TestInvalidValueError_Message(t *testing.T) {
	t.Parallel()

	_, errs := LogLevel("trace").IsValid()
	want := `log.level: invalid value "trace" (valid: debug, info, warn, error)`
	if got := errs[0].Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
