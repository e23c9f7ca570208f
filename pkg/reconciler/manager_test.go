package reconciler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/sissync/internal/fakeapi"
	"github.com/agentstation/sissync/internal/transport"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/local"
	"github.com/agentstation/sissync/pkg/logging"
	"github.com/agentstation/sissync/pkg/parsers"
	"github.com/agentstation/sissync/pkg/reconciler"
	"github.com/agentstation/sissync/pkg/records"
	"github.com/agentstation/sissync/pkg/remote"
	"github.com/agentstation/sissync/pkg/translate"
)

type env struct {
	api    *fakeapi.Server
	dir    *remote.Directory
	client *transport.Client
}

func newEnv(t *testing.T, names ...string) *env {
	t.Helper()
	remote.ResetDirectoryCache()
	t.Cleanup(remote.ResetDirectoryCache)

	api := fakeapi.New(t, names...)
	client := transport.New(nil)
	return &env{api: api, dir: remote.NewDirectory(client, api.Root()), client: client}
}

func (e *env) collection(name string) *remote.Collection {
	return remote.NewCollection(e.dir, e.client, name)
}

func studentTranslator() *translate.Translator {
	return &translate.Translator{
		FieldMap: []translate.FieldMapping{
			{Target: "student_id", Source: "student_id"},
			{Target: "name", Source: "name"},
			{Target: "email", Source: "email", Optional: true},
		},
		KeyFields: []string{"student_id"},
	}
}

func (e *env) students(t *testing.T, src local.Static, opts ...reconciler.Option) *reconciler.Manager {
	t.Helper()
	key := records.FieldKey("student_id")
	opts = append([]reconciler.Option{
		reconciler.WithKey(key),
		reconciler.WithLoader(&local.Loader{Source: src, Translator: studentTranslator(), Key: key}),
	}, opts...)
	m, err := reconciler.New("students", e.collection("students"), opts...)
	require.NoError(t, err)
	return m
}

func TestNewValidation(t *testing.T) {
	e := newEnv(t, "students")

	_, err := reconciler.New("", e.collection("students"))
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New("students", nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New("students", e.collection("students"), reconciler.WithKey(records.FieldKey("student_id")))
	assert.True(t, errors.IsValidationError(err), "full entities need a loader")

	_, err = reconciler.New("grades", e.collection("grades"), reconciler.WithReference(""))
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New("grades", e.collection("grades"), reconciler.WithReference("grade"))
	assert.NoError(t, err)
}

func TestSyncCreatesMissingRecords(t *testing.T) {
	e := newEnv(t, "students")
	m := e.students(t, local.Static{{"student_id": "S1", "name": "Ann"}})

	result, err := m.Sync(context.Background())
	require.NoError(t, err)

	posts := e.api.Requests(http.MethodPost)
	require.Len(t, posts, 1)
	assert.Equal(t, records.Record{"student_id": "S1", "name": "Ann"}, posts[0].Body)

	current, err := m.LoadRemote(context.Background())
	require.NoError(t, err)
	assert.Contains(t, current, records.Key("S1"))
	assert.NotEmpty(t, current["S1"].URL())

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Planned.Summary().Create)
	assert.Empty(t, e.api.Requests(http.MethodPut), "fresh records are not updated again")
}

func TestSyncDeletesAndUpdates(t *testing.T) {
	e := newEnv(t, "students")
	s1 := e.api.Seed("students", records.Record{"student_id": "S1", "name": "Anne"})
	s2 := e.api.Seed("students", records.Record{"student_id": "S2", "name": "Bo"})
	m := e.students(t, local.Static{{"student_id": "S1", "name": "Ann"}})

	result, err := m.Sync(context.Background())
	require.NoError(t, err)

	deletes := e.api.Requests(http.MethodDelete)
	require.Len(t, deletes, 1)
	assert.Contains(t, s2, deletes[0].Path)

	puts := e.api.Requests(http.MethodPut)
	require.Len(t, puts, 1)
	assert.Contains(t, s1, puts[0].Path)
	assert.Equal(t, "Ann", puts[0].Body["name"])

	assert.Empty(t, e.api.Requests(http.MethodPost))
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, "students: 0 created, 1 updated, 1 deleted", result.Summary())
}

func TestSyncMatchesLargeNumericKeys(t *testing.T) {
	tests := []struct {
		name    string
		local   any
		updated int
	}{
		{"numeric export value", json.Number("12345678901234567"), 0},
		{"string export value", "12345678901234567", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, "students")
			e.api.Seed("students", records.Record{"student_id": int64(12345678901234567), "name": "Ann"})
			m := e.students(t, local.Static{{"student_id": tt.local, "name": "Ann"}})

			result, err := m.Sync(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, result.Created)
			assert.Equal(t, 0, result.Deleted)
			assert.Equal(t, tt.updated, result.Updated)
			assert.Empty(t, e.api.Requests(http.MethodDelete))
			assert.Empty(t, e.api.Requests(http.MethodPost))
		})
	}
}

func TestSyncLeavesMatchingRecordsAlone(t *testing.T) {
	e := newEnv(t, "students")
	e.api.Seed("students", records.Record{"student_id": "S1", "name": "Ann", "grade": 9})
	m := e.students(t, local.Static{{"student_id": "S1", "name": "Ann"}})

	result, err := m.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, result.HasChanges())
	assert.Empty(t, e.api.Requests(http.MethodPut))
}

func TestCreateRejectionIsLoggedAndSkipped(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	e := newEnv(t, "students")
	e.api.Seed("students", records.Record{"student_id": "S0", "name": "Old"})
	e.api.Reject("students", func(rec records.Record) (int, map[string]any) {
		if rec["email"] == "not-an-email" {
			return http.StatusBadRequest, map[string]any{"email": []any{"invalid"}}
		}
		return 0, nil
	})

	m := e.students(t, local.Static{
		{"student_id": "S0", "name": "New"},
		{"student_id": "S1", "name": "Ann", "email": "not-an-email"},
		{"student_id": "S2", "name": "Bo"},
	})

	result, err := m.Sync(ctx)
	require.NoError(t, err)

	current, _ := m.LoadRemote(ctx)
	assert.NotContains(t, current, records.Key("S1"))
	assert.Contains(t, current, records.Key("S2"))
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated, "the pass continues to the update phase")
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, records.Key("S1"), result.Rejected[0].Key)

	tl.AssertContains(t, "Remote rejected field")
	tl.AssertContains(t, `"field":"email"`)
	tl.AssertContains(t, `"value":"not-an-email"`)
	tl.AssertContains(t, `"message":"invalid"`)
}

func TestFatalErrorsAbort(t *testing.T) {
	for _, method := range []string{http.MethodDelete, http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			e := newEnv(t, "students")
			e.api.Seed("students", records.Record{"student_id": "S1", "name": "Anne"})
			e.api.Seed("students", records.Record{"student_id": "S2", "name": "Bo"})
			e.api.FailWith(method, "students", http.StatusInternalServerError)

			m := e.students(t, local.Static{
				{"student_id": "S1", "name": "Ann"},
				{"student_id": "S3", "name": "Cy"},
			})
			_, err := m.Sync(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrRemoteFatal)

			var syncErr *errors.SyncError
			require.ErrorAs(t, err, &syncErr)
			assert.Equal(t, "students", syncErr.Entity)
		})
	}
}

func TestPhasesRunOnce(t *testing.T) {
	e := newEnv(t, "students")
	m := e.students(t, local.Static{{"student_id": "S1", "name": "Ann"}})
	ctx := context.Background()

	require.NoError(t, m.Create(ctx))
	require.NoError(t, m.Create(ctx))
	_, err := m.Sync(ctx)
	require.NoError(t, err)

	assert.Len(t, e.api.Requests(http.MethodPost), 1)
	assert.Len(t, e.api.Requests(http.MethodGet), 1, "remote is listed once per pass")
}

func TestDryRunSendsNoMutations(t *testing.T) {
	e := newEnv(t, "students")
	e.api.Seed("students", records.Record{"student_id": "S1", "name": "Anne"})
	e.api.Seed("students", records.Record{"student_id": "S2", "name": "Bo"})
	m := e.students(t, local.Static{
		{"student_id": "S1", "name": "Ann"},
		{"student_id": "S3", "name": "Cy"},
	}, reconciler.WithDryRun(true))

	result, err := m.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Deleted)
	assert.Len(t, e.api.Requests(""), 1, "only the list request reaches the server")
	assert.Contains(t, result.Summary(), "dry run")
}

func TestInvalidLocalRecordsAreCounted(t *testing.T) {
	e := newEnv(t, "students")
	tr := studentTranslator()
	tr.Transforms = map[string]translate.TransformFunc{"email": parsers.Email.Func()}
	key := records.FieldKey("student_id")
	m, err := reconciler.New("students", e.collection("students"),
		reconciler.WithKey(key),
		reconciler.WithLoader(&local.Loader{Source: local.Static{
			{"student_id": "S1", "name": "Ann", "email": "bad"},
			{"student_id": "S2", "name": "Bo"},
		}, Translator: tr, Key: key}))
	require.NoError(t, err)

	result, err := m.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Local.Skipped)
	assert.Equal(t, 1, result.Created)
}

type urlless struct {
	current records.Mapping
	calls   []string
}

func (a *urlless) Name() string { return "students" }

func (a *urlless) LoadAll(context.Context, records.KeyFunc) (records.Mapping, error) {
	return a.current, nil
}

func (a *urlless) Create(_ context.Context, rec records.Record) (records.Record, error) {
	a.calls = append(a.calls, "create")
	return rec, nil
}

func (a *urlless) Update(_ context.Context, url string, rec records.Record) (records.Record, error) {
	a.calls = append(a.calls, "update "+url)
	return rec, nil
}

func (a *urlless) Delete(_ context.Context, url string) error {
	a.calls = append(a.calls, "delete "+url)
	return nil
}

func TestRecordsWithoutURLAreNotMutated(t *testing.T) {
	tests := []struct {
		name  string
		local local.Static
		phase string
	}{
		{"update", local.Static{{"student_id": "S1", "name": "Ann"}}, reconciler.PhaseUpdate},
		{"delete", local.Static{}, reconciler.PhaseDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &urlless{current: records.Mapping{"S1": {"student_id": "S1", "name": "Anne"}}}
			key := records.FieldKey("student_id")
			m, err := reconciler.New("students", acc,
				reconciler.WithKey(key),
				reconciler.WithLoader(&local.Loader{Source: tt.local, Translator: studentTranslator(), Key: key}))
			require.NoError(t, err)

			_, err = m.Sync(context.Background())
			require.Error(t, err)

			var syncErr *errors.SyncError
			require.True(t, errors.As(err, &syncErr))
			assert.Equal(t, tt.phase, syncErr.Phase)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
			assert.Empty(t, acc.calls)
		})
	}
}
