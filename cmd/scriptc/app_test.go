// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/invowk/scriptc/internal/app/compile"
	"github.com/invowk/scriptc/internal/cache"
	"github.com/invowk/scriptc/internal/config"
	"github.com/invowk/scriptc/internal/engine"
	"github.com/invowk/scriptc/internal/engine/enginetest"
	"github.com/invowk/scriptc/internal/testutil"
	"github.com/invowk/scriptc/pkg/artifact"
	"github.com/invowk/scriptc/pkg/types"
)

type (
	staticConfig struct {
		cfg *config.Config
		err error
	}

	// fakeEngines hands out enginetest fakes and remembers them.
	fakeEngines struct {
		mu    sync.Mutex
		tag   artifact.VersionTag
		fakes []*enginetest.Fake
	}

	testRun struct {
		code   types.ExitCode
		stdout string
		stderr string
	}
)

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Loaded, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := *s.cfg
	return &config.Loaded{Config: &cfg}, nil
}

func (f *fakeEngines) factory(EngineSettings) (engine.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fake := enginetest.New()
	if !f.tag.IsZero() {
		fake.SetVersionTag(f.tag)
	}
	f.fakes = append(f.fakes, fake)
	return fake, nil
}

func (f *fakeEngines) compiles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fake := range f.fakes {
		n += len(fake.Compiles())
	}
	return n
}

func (f *fakeEngines) executions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fake := range f.fakes {
		n += fake.ExecuteCount()
	}
	return n
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = config.CacheDirPath(filepath.Join(t.TempDir(), "cache"))
	return cfg
}

func runApp(t *testing.T, cfg *config.Config, engines EngineFactory, args ...string) testRun {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		Config:  staticConfig{cfg: cfg},
		Engines: engines,
		Stdin:   strings.NewReader(""),
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	code := app.Run(t.Context(), args)
	return testRun{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestAppCompileAndRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "count.sh")
	testutil.MustWriteFile(t, script, []byte("echo \"$#:$1\"\nexit 3\n"))
	cfg := testConfig(t)

	res := runApp(t, cfg, nil, "compile", script)
	if res.code != types.ExitSuccess {
		t.Fatalf("compile exit = %d, stderr:\n%s", res.code, res.stderr)
	}
	art := filepath.Join(dir, "count.scbc")
	if _, err := artifact.Decode(testutil.MustReadFile(t, art)); err != nil {
		t.Fatalf("compiled artifact does not decode: %v", err)
	}

	res = runApp(t, cfg, nil, "run", art, "--", "a", "b")
	if res.code != 3 {
		t.Errorf("run exit = %d, want 3", res.code)
	}
	if res.stdout != "2:a\n" {
		t.Errorf("stdout = %q, want %q", res.stdout, "2:a\n")
	}
	if res.stderr != "" {
		t.Errorf("stderr = %q, want empty", res.stderr)
	}
}

func TestAppRunRejectsOtherEngine(t *testing.T) {
	t.Parallel()

	producer := enginetest.New()
	data, err := compile.New(producer).Compile(t.Context(), "1+1")
	if err != nil {
		t.Fatal(err)
	}
	art := filepath.Join(t.TempDir(), "calc.scbc")
	testutil.MustWriteFile(t, art, data)

	consumers := &fakeEngines{tag: artifact.DeriveVersionTag("enginetest/other")}
	res := runApp(t, testConfig(t), consumers.factory, "run", art)

	if res.code != types.ExitFailure {
		t.Errorf("exit = %d, want %d", res.code, types.ExitFailure)
	}
	if !strings.Contains(res.stderr, "incompatible-engine") {
		t.Errorf("stderr should name the failure kind:\n%s", res.stderr)
	}
	if n := consumers.executions(); n != 0 {
		t.Errorf("engine executed %d times, want 0", n)
	}
}

func TestAppExecCachesArtifacts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	script := filepath.Join(t.TempDir(), "job.sh")
	testutil.MustWriteFile(t, script, []byte("echo (job)"))
	engines := &fakeEngines{}

	for i := range 2 {
		if res := runApp(t, cfg, engines.factory, "exec", script); res.code != types.ExitSuccess {
			t.Fatalf("exec #%d exit = %d, stderr:\n%s", i, res.code, res.stderr)
		}
	}
	if n := engines.compiles(); n != 1 {
		t.Errorf("compiled %d times across two runs, want 1", n)
	}
	if n := engines.executions(); n != 2 {
		t.Errorf("executed %d times, want 2", n)
	}

	entries, err := filepath.Glob(filepath.Join(cfg.Cache.Dir.String(), "*.scbc"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("cache entries = %v (%v), want 1", entries, err)
	}
	wantKey := cache.Key(artifact.DigestSource("echo (job)"), enginetest.New().VersionTag())
	if got := filepath.Base(entries[0]); got != wantKey+".scbc" {
		t.Errorf("cache entry = %s, want key of the script source %s", got, wantKey)
	}

	// A damaged entry is discarded and recompiled.
	if err := os.WriteFile(entries[0], []byte("SCBC"), 0o644); err != nil {
		t.Fatal(err)
	}
	if res := runApp(t, cfg, engines.factory, "exec", script); res.code != types.ExitSuccess {
		t.Fatalf("exec after damage exit = %d, stderr:\n%s", res.code, res.stderr)
	}
	if n := engines.compiles(); n != 2 {
		t.Errorf("compiled %d times, want 2 after damaged entry", n)
	}
	if _, err := artifact.Decode(testutil.MustReadFile(t, entries[0])); err != nil {
		t.Errorf("cache entry not repaired: %v", err)
	}
}

func TestAppExecWithoutCache(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Cache.Enabled = false
	script := filepath.Join(t.TempDir(), "job.sh")
	testutil.MustWriteFile(t, script, []byte("echo job"))
	engines := &fakeEngines{}

	for range 2 {
		runApp(t, cfg, engines.factory, "exec", script)
	}
	if n := engines.compiles(); n != 2 {
		t.Errorf("compiled %d times, want 2 with the cache disabled", n)
	}
	if _, err := os.Stat(cfg.Cache.Dir.String()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cache directory should not be created, stat error = %v", err)
	}
}

func TestAppCompileSyntaxError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "broken.sh")
	testutil.MustWriteFile(t, script, []byte("function("))

	res := runApp(t, testConfig(t), nil, "compile", script)
	if res.code != types.ExitFailure {
		t.Errorf("exit = %d, want 1", res.code)
	}
	if !strings.Contains(res.stderr, "failed to compile script") {
		t.Errorf("stderr:\n%s", res.stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken.scbc")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no artifact should be written, stat error = %v", err)
	}
}

func TestAppInspectJSON(t *testing.T) {
	t.Parallel()

	art := filepath.Join(t.TempDir(), "x.scbc")
	testutil.MustWriteFile(t, art, testutil.CompileArtifact(t, "echo x"))

	res := runApp(t, testConfig(t), nil, "inspect", "--format", "json", art)
	if res.code != types.ExitSuccess {
		t.Fatalf("exit = %d, stderr:\n%s", res.code, res.stderr)
	}

	var report inspectReport
	if err := json.Unmarshal([]byte(res.stdout), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, res.stdout)
	}
	if report.FormatVersion != artifact.FormatVersion || !report.Compatible {
		t.Errorf("report = %+v", report)
	}
	if report.Payload == nil || report.Payload.Dialect != "bash" {
		t.Errorf("payload = %+v, want bash", report.Payload)
	}
	if len(report.SourceDigest) != 2*artifact.DigestSize {
		t.Errorf("digest = %q", report.SourceDigest)
	}
	if report.HeaderSize+report.PayloadLength != uint64(report.Size) {
		t.Errorf("header %d + payload %d != size %d", report.HeaderSize, report.PayloadLength, report.Size)
	}

	// The header is validated before anything else is reported.
	data := testutil.MustReadFile(t, art)
	testutil.MustWriteFile(t, art, data[:len(data)-1])
	res = runApp(t, testConfig(t), nil, "inspect", art)
	if res.code != types.ExitFailure || !strings.Contains(res.stderr, "truncated") {
		t.Errorf("inspect of truncated artifact: exit %d, stderr:\n%s", res.code, res.stderr)
	}
}

func TestAppExplicitConfigFailure(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		Config: staticConfig{err: errors.New("boom")},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatal(err)
	}

	if code := app.Run(t.Context(), []string{"--config", "x.cue", "completion", "bash"}); code != types.ExitFailure {
		t.Errorf("explicit config failure exit = %d, want 1", code)
	}

	stdout.Reset()
	stderr.Reset()
	app.flags = globalFlags{}
	if code := app.Run(t.Context(), []string{"completion", "bash"}); code != types.ExitSuccess {
		t.Errorf("implicit config failure exit = %d, want 0; stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "Warning") {
		t.Errorf("implicit config failure should warn, stderr:\n%s", stderr.String())
	}
}

func TestDefaultArtifactPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"build.sh":       "build.scbc",
		"dir/tool.bash":  "dir/tool.scbc",
		"noext":          "noext.scbc",
		"-":              "-",
		"archive.tar.sh": "archive.tar.scbc",
	}
	for in, want := range tests {
		if got := defaultArtifactPath(in); got != want {
			t.Errorf("defaultArtifactPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScriptArgs(t *testing.T) {
	t.Parallel()

	if got := scriptArgs([]string{"--", "a"}); len(got) != 1 || got[0] != "a" {
		t.Errorf("scriptArgs strips leading --: %q", got)
	}
	if got := scriptArgs([]string{"a", "--"}); len(got) != 2 {
		t.Errorf("scriptArgs keeps later --: %q", got)
	}
	if got := scriptArgs(nil); len(got) != 0 {
		t.Errorf("scriptArgs(nil) = %q", got)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	silent := &ExitError{Code: 4}
	if silent.Error() != "exit status 4" || silent.Unwrap() != nil {
		t.Errorf("silent ExitError = %q", silent.Error())
	}
	cause := errors.New("cause")
	loud := &ExitError{Code: 1, Err: cause}
	if !errors.Is(loud, cause) || loud.Error() != "cause" {
		t.Errorf("ExitError does not wrap its cause")
	}
}
