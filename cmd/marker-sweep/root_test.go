package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marker-sweep/internal/database"
	"marker-sweep/internal/exitcodes"
	"marker-sweep/internal/runner"
	"marker-sweep/internal/safety"
	"marker-sweep/internal/sweep"
)

// execute runs the CLI in-process with logging disabled.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level=disabled"))

	code := exitCode(cmd.ExecuteContext(context.Background()), &errOut)
	if code != exitcodes.Success {
		t.Logf("stderr: %s", errOut.String())
	}
	return out.String(), code
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
}

func TestRootCmdSetup(t *testing.T) {
	var root *cobra.Command = newRootCmd()
	assert.Equal(t, "marker-sweep", root.Use)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"glob", "list", "history", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "dry-run", "policy", "marker", "log-level", "db", "json"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing persistent flag %s", flag)
	}
}

func TestGlobCommandScenario(t *testing.T) {
	libs := filepath.Join(t.TempDir(), "libs")
	a := filepath.Join(libs, "a", ".npmignore")
	c := filepath.Join(libs, "b", "c", ".npmignore")
	touch(t, a, c)

	out, code := execute(t, "glob", libs)
	assert.Equal(t, exitcodes.Success, code)
	assert.Equal(t, "Removed: "+a+"\nRemoved: "+c+"\nTotal files removed: 2\n", out)

	out, code = execute(t, "glob", "--root", libs)
	assert.Equal(t, exitcodes.Success, code)
	assert.Equal(t, "Total files removed: 0\n", out)
}

func TestGlobCommandDryRun(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "pkg", ".npmignore")
	touch(t, a)

	out, code := execute(t, "glob", "--dry-run", root)
	assert.Equal(t, exitcodes.Success, code)
	assert.Equal(t, "Would remove: "+a+"\nTotal files removed: 1 (dry run)\n", out)
	assert.FileExists(t, a)
}

func TestGlobCommandCustomMarker(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "pkg", ".npmignore")
	gone := filepath.Join(root, "pkg", ".eslintcache")
	touch(t, keep, gone)

	_, code := execute(t, "glob", "--marker", ".eslintcache", root)
	assert.Equal(t, exitcodes.Success, code)
	assert.FileExists(t, keep)
	assert.NoFileExists(t, gone)
}

func TestListCommandScenario(t *testing.T) {
	base := t.TempDir()
	existing := filepath.Join(base, "libs", "a", ".npmignore")
	missing := filepath.Join(base, "libs", "b", ".npmignore")
	touch(t, existing)

	out, code := execute(t, "list", "--base-dir", base, "libs/a/.npmignore", "libs/b/.npmignore")
	assert.Equal(t, exitcodes.Success, code)
	assert.Equal(t, "Removed: "+existing+"\nFile not found: "+missing+"\nRemoved 1 out of 2 files.\n", out)
}

func TestListCommandFromConfig(t *testing.T) {
	base := t.TempDir()
	existing := filepath.Join(base, "tools", ".npmignore")
	touch(t, existing)

	cfgPath := filepath.Join(base, "marker-sweep.yaml")
	cfg := fmt.Sprintf("list:\n  base_dir: %s\n  paths:\n    - tools/.npmignore\n", base)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, code := execute(t, "list", "--config", cfgPath)
	assert.Equal(t, exitcodes.Success, code)
	assert.Contains(t, out, "Removed 1 out of 1 files.")
	assert.NoFileExists(t, existing)
}

// A blocked path under the continue policy is reported but the run succeeds.
func TestListCommandContinuePolicy(t *testing.T) {
	base := t.TempDir()
	existing := filepath.Join(base, ".npmignore")
	touch(t, existing)

	out, code := execute(t, "list", "/etc/.npmignore", existing)
	assert.Equal(t, exitcodes.Success, code)
	assert.Contains(t, out, "Error removing /etc/.npmignore: protected path\n")
	assert.Contains(t, out, "Removed 1 out of 2 files.\n")
}

func TestListCommandFailFastSafetyViolation(t *testing.T) {
	base := t.TempDir()
	later := filepath.Join(base, ".npmignore")
	touch(t, later)

	out, code := execute(t, "list", "--policy", "fail-fast", "/etc/.npmignore", later)
	assert.Equal(t, exitcodes.SafetyViolation, code)
	assert.Equal(t, "Error removing /etc/.npmignore: protected path\nRemoved 0 out of 2 files. (aborted)\n", out)
	assert.FileExists(t, later, "paths after the abort are not visited")
}

func TestListCommandJSON(t *testing.T) {
	base := t.TempDir()
	existing := filepath.Join(base, ".npmignore")
	touch(t, existing)

	out, code := execute(t, "list", "--json", existing)
	require.Equal(t, exitcodes.Success, code)

	var res sweep.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, sweep.ModeList, res.Mode)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, sweep.StatusRemoved, res.Outcomes[0].Status)
}

func TestUsageAndConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"bad policy", []string{"glob", "--policy", "sometimes", "."}, exitcodes.InvalidConfig},
		{"bad marker", []string{"glob", "--marker", "a/b", "."}, exitcodes.InvalidConfig},
		{"unknown flag", []string{"glob", "--bogus"}, exitcodes.InvalidConfig},
		{"too many roots", []string{"glob", "a", "b"}, exitcodes.InvalidConfig},
		{"glob without root", []string{"glob"}, exitcodes.InvalidConfig},
		{"list without paths", []string{"list"}, exitcodes.InvalidConfig},
		{"missing config file", []string{"list", "--config", "/nonexistent/marker-sweep.yaml", "x"}, exitcodes.InvalidConfig},
		{"history without db", []string{"history", "--runs", "1"}, exitcodes.InvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, code := execute(t, tt.args...)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestGlobMissingRootIsRuntimeError(t *testing.T) {
	_, code := execute(t, "glob", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, exitcodes.RuntimeError, code)
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")
	a := filepath.Join(dir, "repo", ".npmignore")
	touch(t, a)

	_, code := execute(t, "list", "--db", dbPath, a, filepath.Join(dir, "repo", "gone", ".npmignore"))
	require.Equal(t, exitcodes.Success, code)

	out, code := execute(t, "history", "--db", dbPath, "--runs", "5", "--json")
	require.Equal(t, exitcodes.Success, code)

	var runs []database.RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "list", runs[0].Mode)
	assert.Equal(t, 1, runs[0].Removed)
	assert.Equal(t, 1, runs[0].NotFound)

	out, code = execute(t, "history", "--db", dbPath, "--status", "not_found")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, out, "Outcomes with status: not_found")
	assert.Contains(t, out, filepath.Join(dir, "repo", "gone", ".npmignore"))

	out, code = execute(t, "history", "--db", dbPath, "--stats")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, out, "Runs:       1")

	_, code = execute(t, "history", "--db", dbPath)
	assert.Equal(t, exitcodes.InvalidConfig, code)

	out, code = execute(t, "history", "--db", dbPath, "--prune", "30")
	require.Equal(t, exitcodes.Success, code)
	assert.Equal(t, "Deleted 0 runs older than 30 days\n", out)
}

func TestVersionCommand(t *testing.T) {
	out, code := execute(t, "version")
	assert.Equal(t, exitcodes.Success, code)
	assert.Contains(t, out, "marker-sweep version dev")
}

func TestExitCodeMapping(t *testing.T) {
	var sink bytes.Buffer
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, exitcodes.Success},
		{"runner config", fmt.Errorf("%w: glob root is required", runner.ErrConfig), exitcodes.InvalidConfig},
		{"safety abort", fmt.Errorf("%w at /etc/x: %w", sweep.ErrAborted, safety.ErrProtectedPath), exitcodes.SafetyViolation},
		{"os abort", fmt.Errorf("%w at /x: %w", sweep.ErrAborted, os.ErrPermission), exitcodes.RuntimeError},
		{"cancelled", context.Canceled, exitcodes.RuntimeError},
		{"other", errors.New("boom"), exitcodes.RuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, exitCode(tt.err, &sink))
		})
	}
}
