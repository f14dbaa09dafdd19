package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/corelog"
)

func writeFixtureProject(t *testing.T, dir string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.yaml"), []byte("name: fixture\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "actions"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "actions", "app.yaml"), []byte(`
actions:
  - kind: run
    name: hello
    config:
      type: shell
      command: echo hi
`), 0o644))
}

func testLogger(t *testing.T) *corelog.Logger {
	t.Helper()
	log, err := corelog.New(corelog.Options{Writer: os.Stderr, Level: "error"})
	require.NoError(t, err)
	return log
}

func TestAppSubmitRunsRegisteredAction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixtureProject(t, dir)

	a, err := New(Options{ProjectDir: dir, Log: testLogger(t)})
	require.NoError(t, err)

	executed, err := a.Submit(context.Background(), action.NewKey(action.KindRun, "hello"), false, false)
	require.NoError(t, err)
	require.Equal(t, action.StateReady, executed.State)
}

func TestAppSubmitUnknownActionErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixtureProject(t, dir)

	a, err := New(Options{ProjectDir: dir, Log: testLogger(t)})
	require.NoError(t, err)

	_, err = a.Submit(context.Background(), action.NewKey(action.KindRun, "missing"), false, false)
	require.Error(t, err)
}
