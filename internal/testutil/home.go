// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// SetUserDirs points the home, config and cache directory variables of the
// current platform below dir and returns the config and cache roots that
// os.UserConfigDir and os.UserCacheDir will report. It uses t.Setenv, so the
// calling test cannot be parallel.
func SetUserDirs(t *testing.T, dir string) (configDir, cacheDir string) {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		configDir = filepath.Join(dir, "AppData", "Roaming")
		cacheDir = filepath.Join(dir, "AppData", "Local")
		t.Setenv("USERPROFILE", dir)
		t.Setenv("APPDATA", configDir)
		t.Setenv("LOCALAPPDATA", cacheDir)
	case "darwin":
		configDir = filepath.Join(dir, "Library", "Application Support")
		cacheDir = filepath.Join(dir, "Library", "Caches")
		t.Setenv("HOME", dir)
	default:
		configDir = filepath.Join(dir, ".config")
		cacheDir = filepath.Join(dir, ".cache")
		t.Setenv("HOME", dir)
		t.Setenv("XDG_CONFIG_HOME", configDir)
		t.Setenv("XDG_CACHE_HOME", cacheDir)
	}
	return configDir, cacheDir
}
