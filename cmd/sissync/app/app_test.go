package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/sissync/internal/fakeapi"
	"github.com/agentstation/sissync/pkg/logging"
	"github.com/agentstation/sissync/pkg/remote"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	isolate(t)
	t.Setenv("SISSYNC_LOG_OUTPUT", "discard")
	logging.DisableLoggingForTest(t)

	var out bytes.Buffer
	app, err := New("1.0.0", "abc123", "2025-01-01", "test", WithOutput(&out))
	require.NoError(t, err)
	return app, &out
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app, _ := newTestApp(t)

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2025-01-01" {
		t.Errorf("Date() = %s, want 2025-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
}

func TestExecuteVersion(t *testing.T) {
	app, out := newTestApp(t)
	require.NoError(t, app.Execute(context.Background(), []string{"version"}))
	assert.Equal(t, "sissync 1.0.0 (commit abc123, built 2025-01-01 by test)\n", out.String())
}

func TestExecuteEntities(t *testing.T) {
	app, out := newTestApp(t)
	err := app.Execute(context.Background(), []string{"entities", "--api-root", "http://localhost/api/", "-o", "json"})
	require.NoError(t, err)

	var defs []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &defs))
	require.NotEmpty(t, defs)
	assert.Equal(t, true, defs[0]["reference"], "reference entities are listed first")
}

func TestExecuteEntitiesTable(t *testing.T) {
	app, out := newTestApp(t)
	err := app.Execute(context.Background(), []string{"entities", "--api-root", "http://localhost/api/", "-o", "table"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ksPERMRECS.xml.json")
	assert.Contains(t, out.String(), "reference")
}

func TestExecuteRejectsUnknownFormat(t *testing.T) {
	app, _ := newTestApp(t)
	err := app.Execute(context.Background(), []string{"entities", "--api-root", "http://localhost/api/", "-o", "xml"})
	assert.Error(t, err)
}

func TestExecuteSyncRequiresAPIRoot(t *testing.T) {
	app, _ := newTestApp(t)
	err := app.Execute(context.Background(), []string{"sync"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_root")
}

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"entities.yaml": `
entities:
  - name: grades
    reference: true
    key: [grade]
  - name: students
    file: students.json
    key: [student_id]
    fields:
      - { target: student_id, source: IDSTUDENT }
      - { target: grade, source: GradeLevel, ref: grades }
`,
		"students.json": `{"records": [{"IDSTUDENT": "S1", "GradeLevel": "9"}, {"IDSTUDENT": "S2", "GradeLevel": "9"}]}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func syncArgs(api *fakeapi.Server, dir string, extra ...string) []string {
	args := []string{
		"--api-root", api.Root(),
		"--username", "sync",
		"--password", "secret",
		"--data-dir", dir,
		"--entities", filepath.Join(dir, "entities.yaml"),
	}
	return append(extra, args...)
}

func TestExecuteSync(t *testing.T) {
	app, out := newTestApp(t)
	remote.ResetDirectoryCache()
	t.Cleanup(remote.ResetDirectoryCache)

	api := fakeapi.New(t, "grades", "students")
	api.RequireAuth("sync", "secret")
	dir := writeFixture(t)

	require.NoError(t, app.Execute(context.Background(), syncArgs(api, dir, "sync", "-o", "json")))

	var report syncReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.NotEmpty(t, report.CorrelationID)
	assert.False(t, report.DryRun)
	assert.Equal(t, 3, report.Created)
	require.Len(t, report.Entities, 2)
	assert.Equal(t, "grades", report.Entities[0].Entity)

	assert.Len(t, api.Records("grades"), 1)
	assert.Len(t, api.Records("students"), 2)
}

func TestExecutePlan(t *testing.T) {
	app, out := newTestApp(t)
	remote.ResetDirectoryCache()
	t.Cleanup(remote.ResetDirectoryCache)

	api := fakeapi.New(t, "grades", "students")
	dir := writeFixture(t)

	require.NoError(t, app.Execute(context.Background(), syncArgs(api, dir, "plan", "students", "-o", "table")))

	assert.Contains(t, out.String(), "students")
	assert.Contains(t, strings.ToLower(out.String()), "dry run")
	assert.Empty(t, api.Records("students"))
	assert.Empty(t, api.Records("grades"))
}
