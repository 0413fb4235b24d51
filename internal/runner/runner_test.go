package runner

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marker-sweep/internal/config"
	"marker-sweep/internal/database"
	"marker-sweep/internal/fsops"
	"marker-sweep/internal/sweep"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func deps() Deps {
	return Deps{Logger: zerolog.Nop()}
}

func TestRunGlobScenario(t *testing.T) {
	libs := filepath.Join(t.TempDir(), "libs")
	a := filepath.Join(libs, "a", ".npmignore")
	c := filepath.Join(libs, "b", "c", ".npmignore")
	other := filepath.Join(libs, "a", "index.js")
	touch(t, a, c, other)

	cfg := config.Default()
	cfg.Glob.Root = libs

	res, err := RunGlob(context.Background(), cfg, deps())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, []string{a, c}, []string{res.Outcomes[0].Path, res.Outcomes[1].Path})

	assert.NoFileExists(t, a)
	assert.NoFileExists(t, c)
	assert.FileExists(t, other)

	// A second run finds nothing left.
	res, err = RunGlob(context.Background(), cfg, deps())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0, res.Removed)
}

func TestRunGlobSymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "checkout", "libs")
	a := filepath.Join(target, "a", ".npmignore")
	c := filepath.Join(target, "b", "c", ".npmignore")
	touch(t, a, c)
	libs := filepath.Join(dir, "libs")
	require.NoError(t, os.Symlink(target, libs))

	cfg := config.Default()
	cfg.Glob.Root = libs

	res, err := RunGlob(context.Background(), cfg, deps())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, []string{
		filepath.Join(libs, "a", ".npmignore"),
		filepath.Join(libs, "b", "c", ".npmignore"),
	}, []string{res.Outcomes[0].Path, res.Outcomes[1].Path})

	assert.NoFileExists(t, a)
	assert.NoFileExists(t, c)
	assert.DirExists(t, libs)
}

func TestRunGlobDryRun(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "pkg", ".npmignore")
	touch(t, a)

	cfg := config.Default()
	cfg.Glob.Root = root
	cfg.DryRun = true

	res, err := RunGlob(context.Background(), cfg, deps())
	require.NoError(t, err)
	assert.Equal(t, 1, res.WouldRemove)
	assert.FileExists(t, a)
}

func TestRunGlobRootErrors(t *testing.T) {
	cfg := config.Default()
	_, err := RunGlob(context.Background(), cfg, deps())
	assert.ErrorIs(t, err, ErrConfig)

	cfg.Glob.Root = filepath.Join(t.TempDir(), "missing")
	_, err = RunGlob(context.Background(), cfg, deps())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfig, "a missing root is a runtime failure")
}

func TestRunListScenario(t *testing.T) {
	base := t.TempDir()
	existing := filepath.Join(base, "libs", "a", ".npmignore")
	touch(t, existing)

	cfg := config.Default()
	cfg.List.BaseDir = base
	cfg.List.Paths = []string{"libs/a/.npmignore", "libs/missing/.npmignore"}

	res, err := RunList(context.Background(), cfg, deps())
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, sweep.StatusRemoved, res.Outcomes[0].Status)
	assert.Equal(t, existing, res.Outcomes[0].Path)
	assert.Equal(t, sweep.StatusNotFound, res.Outcomes[1].Status)
	assert.NoFileExists(t, existing)
}

func TestRunListRequiresPaths(t *testing.T) {
	_, err := RunList(context.Background(), config.Default(), deps())
	assert.ErrorIs(t, err, ErrConfig)

	_, err = RunList(context.Background(), nil, deps())
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRunListAllowedRoots(t *testing.T) {
	base := t.TempDir()
	inside := filepath.Join(base, "repo", ".npmignore")
	outside := filepath.Join(base, "elsewhere", ".npmignore")
	touch(t, inside, outside)

	cfg := config.Default()
	cfg.List.Paths = []string{outside, inside}
	cfg.Safety.AllowedRoots = []string{filepath.Join(base, "repo")}

	res, err := RunList(context.Background(), cfg, deps())
	require.NoError(t, err)

	assert.Equal(t, sweep.StatusBlocked, res.Outcomes[0].Status)
	assert.Equal(t, sweep.StatusRemoved, res.Outcomes[1].Status)
	assert.FileExists(t, outside)
}

func TestRunListFailFast(t *testing.T) {
	paths := []string{"/repo/a/.npmignore", "/repo/b/.npmignore", "/repo/c/.npmignore"}

	cfg := config.Default()
	cfg.Policy = config.PolicyFailFast
	cfg.List.Paths = paths

	d := deps()
	d.Deleter = fsops.NewFakeDeleter(paths...).FailOn(paths[0], syscall.EACCES)

	res, err := RunList(context.Background(), cfg, d)
	assert.ErrorIs(t, err, sweep.ErrAborted)
	require.NotNil(t, res)
	assert.True(t, res.Aborted)
	assert.Len(t, res.Outcomes, 1)
	assert.Equal(t, 3, res.Total)
}

func TestRunRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	db, err := database.NewHistoryDB(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer db.Close()

	a := filepath.Join(dir, "repo", ".npmignore")
	touch(t, a)

	cfg := config.Default()
	cfg.List.Paths = []string{a, filepath.Join(dir, "repo", "gone", ".npmignore")}

	d := deps()
	d.History = db

	_, err = RunList(context.Background(), cfg, d)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)

	runs, err := db.GetRecentRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "list", runs[0].Mode)
	assert.Equal(t, wd, runs[0].Root, "an unset base dir records the working directory")
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1, runs[0].Removed)
	assert.Equal(t, 1, runs[0].NotFound)
	assert.NotNil(t, runs[0].FinishedAt)

	outcomes, err := db.GetOutcomesForRun(runs[0].ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "removed", outcomes[0].Status)
	assert.Equal(t, "not_found", outcomes[1].Status)
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "repo", ".npmignore"))

	cfg := config.Default()
	cfg.Glob.Root = filepath.Join(dir, "repo")
	cfg.Metrics.TextfilePath = filepath.Join(dir, "textfile", "marker_sweep.prom")

	_, err := RunGlob(context.Background(), cfg, deps())
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Metrics.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "markersweep_files_discovered_total")
	assert.Contains(t, string(data), `markersweep_last_run_timestamp{mode="glob"}`)
}
