// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: mutates package-level Version/Commit/BuildDate vars.
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	Version, Commit, BuildDate = "v1.2.3", "abc1234", "2026-01-02T03:04:05Z"
	if got, want := getVersionString(), "v1.2.3 (commit: abc1234, built: 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}

	Version = "dev"
	// Test binaries report Main.Version "(devel)" or nothing.
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q, want dev fallback", got)
	}
}

func TestGlamourStyle(t *testing.T) {
	t.Parallel()

	if glamourStyle("dark") != "dark" || glamourStyle("light") != "light" || glamourStyle("auto") != "auto" {
		t.Error("glamourStyle mapping is wrong")
	}
}

// TestBuiltinCommandTxtarCoverage checks that every visible leaf command is
// exercised by at least one testscript in testdata.
func TestBuiltinCommandTxtarCoverage(t *testing.T) {
	t.Parallel()

	app, err := NewApp(Dependencies{})
	if err != nil {
		t.Fatalf("NewApp() failed: %v", err)
	}
	leaves := collectLeafCommands(NewRootCommand(app))

	files, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no testscripts found: %v", err)
	}

	execLine := regexp.MustCompile(`^!?\s*exec scriptc (.*)$`)
	var invocations []string
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			t.Fatal(err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if m := execLine.FindStringSubmatch(strings.TrimSpace(scanner.Text())); m != nil {
				invocations = append(invocations, commandWords(m[1]))
			}
		}
		_ = f.Close()
	}

	for _, leaf := range leaves {
		covered := slices.ContainsFunc(invocations, func(inv string) bool {
			return inv == leaf || strings.HasPrefix(inv, leaf+" ")
		})
		if !covered {
			t.Errorf("command %q has no testscript coverage", leaf)
		}
	}
}

// collectLeafCommands returns the paths ("cache prune") of visible runnable
// commands without visible children.
func collectLeafCommands(root *cobra.Command) []string {
	var out []string
	var walk func(cmd *cobra.Command, prefix string)
	walk = func(cmd *cobra.Command, prefix string) {
		children := 0
		for _, child := range cmd.Commands() {
			if child.Hidden || child.Name() == "help" {
				continue
			}
			children++
			walk(child, strings.TrimSpace(prefix+" "+child.Name()))
		}
		if children == 0 && cmd.Runnable() && prefix != "" {
			out = append(out, prefix)
		}
	}
	walk(root, "")
	return out
}

// commandWords drops flags and their values from a testscript command line,
// keeping the leading words that name the command.
func commandWords(line string) string {
	var words []string
	skipValue := false
	for _, field := range strings.Fields(line) {
		switch {
		case skipValue:
			skipValue = false
		case field == "--config" || field == "--dialect" || field == "--log-level":
			skipValue = true
		case strings.HasPrefix(field, "-"):
		default:
			words = append(words, field)
		}
	}
	return strings.Join(words, " ")
}
