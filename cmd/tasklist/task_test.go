package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fentz26/tasklist/internal/config"
	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/tui"
)

func newTestLocal(t *testing.T, path string) *localAPI {
	t.Helper()
	c := config.DefaultConfig()
	c.Storage.Driver = persist.DriverFile
	c.Storage.Path = path

	ctx := context.Background()
	app, err := openLocal(ctx, c, zap.NewNop())
	require.NoError(t, err)
	return &localAPI{ctx: ctx, app: app}
}

func TestLocalAPI_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")

	api := newTestLocal(t, path)
	task, err := api.AddTask("write report")
	require.NoError(t, err)
	_, err = api.ToggleTask(task.ID)
	require.NoError(t, err)
	require.NoError(t, api.app.saveAndClose(context.Background()))

	api = newTestLocal(t, path)
	defer api.app.saveAndClose(context.Background())

	tasks, err := api.ListTasks(models.FilterCompleted)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "write report", tasks[0].Text)
}

func TestLocalAPI_Save(t *testing.T) {
	api := newTestLocal(t, filepath.Join(t.TempDir(), "tasks.json"))
	defer api.app.saveAndClose(context.Background())

	_, err := api.AddTask("one")
	require.NoError(t, err)

	st, err := api.Save()
	require.NoError(t, err)
	assert.Equal(t, persist.DriverFile, st.Backend)
	assert.False(t, st.Pending)
}

func TestResolveID(t *testing.T) {
	api := newTestLocal(t, filepath.Join(t.TempDir(), "tasks.json"))
	defer api.app.saveAndClose(context.Background())

	a, err := api.AddTask("a")
	require.NoError(t, err)
	b, err := api.AddTask("b")
	require.NoError(t, err)

	id, err := resolveID(api, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	// the unique tail of b's id is long enough to pick it out
	id, err = resolveID(api, b.ID[:len(b.ID)-1])
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)

	_, err = resolveID(api, "")
	assert.ErrorContains(t, err, "ambiguous")

	id, err = resolveID(api, "nope")
	require.NoError(t, err)
	assert.Equal(t, "nope", id, "unknown ids pass through")
}

func TestUnsaved(t *testing.T) {
	applied := &tui.APIError{Status: 503, Kind: "io_failure", Message: "disk full", Applied: true}
	err := unsaved(applied)
	assert.ErrorContains(t, err, "do not repeat")
	assert.True(t, tui.IsUnsaved(err))

	missing := &tui.APIError{Status: 404, Kind: "not_found", Message: "task not found"}
	assert.Equal(t, error(missing), unsaved(missing))
	assert.NoError(t, unsaved(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
}
