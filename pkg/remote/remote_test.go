package remote_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/sissync/internal/fakeapi"
	"github.com/agentstation/sissync/internal/transport"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/records"
	"github.com/agentstation/sissync/pkg/remote"
)

func setup(t *testing.T, names ...string) (*fakeapi.Server, *remote.Directory, *transport.Client) {
	t.Helper()
	remote.ResetDirectoryCache()
	t.Cleanup(remote.ResetDirectoryCache)

	api := fakeapi.New(t, names...)
	api.RequireAuth("sync", "secret")
	client := transport.New(&transport.BasicAuth{Username: "sync", Password: "secret"})
	return api, remote.NewDirectory(client, api.Root(), remote.WithRetry(2, 0)), client
}

func TestDirectoryResolve(t *testing.T) {
	api, dir, _ := setup(t, "students", "teachers")

	url, err := dir.Resolve(context.Background(), "students")
	require.NoError(t, err)
	assert.Equal(t, api.Root()+"students/", url)

	_, err = dir.Resolve(context.Background(), "lockers")
	assert.True(t, errors.IsNotFound(err))
}

func TestDirectoryCachesPerProcess(t *testing.T) {
	api, _, client := setup(t, "students")

	var calls int32
	counting := transport.New(&transport.BasicAuth{Username: "sync", Password: "secret"},
		transport.WithHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return http.DefaultTransport.RoundTrip(r)
		})}))

	first := remote.NewDirectory(counting, api.Root())
	second := remote.NewDirectory(client, api.Root())

	_, err := first.Resolve(context.Background(), "students")
	require.NoError(t, err)
	_, err = first.Resolve(context.Background(), "students")
	require.NoError(t, err)
	_, err = second.Resolve(context.Background(), "students")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	remote.ResetDirectoryCache()
	_, err = first.Resolve(context.Background(), "students")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDirectoryRetriesConnectionFailures(t *testing.T) {
	api, _, _ := setup(t, "students")

	var calls int32
	flaky := transport.New(nil, transport.WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, assert.AnError
			}
			r.SetBasicAuth("sync", "secret")
			return http.DefaultTransport.RoundTrip(r)
		}),
	}))

	dir := remote.NewDirectory(flaky, api.Root(), remote.WithRetry(3, time.Millisecond))
	_, err := dir.Resolve(context.Background(), "students")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDirectoryGivesUpAfterAttempts(t *testing.T) {
	remote.ResetDirectoryCache()
	t.Cleanup(remote.ResetDirectoryCache)

	var calls int32
	down := transport.New(nil, transport.WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return nil, assert.AnError
		}),
	}))

	dir := remote.NewDirectory(down, "http://apps.invalid/api/", remote.WithRetry(4, 0))
	_, err := dir.Resolve(context.Background(), "students")

	var connErr *errors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 4, connErr.Attempts)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestDirectoryDoesNotRetryHTTPErrors(t *testing.T) {
	remote.ResetDirectoryCache()
	t.Cleanup(remote.ResetDirectoryCache)

	api := fakeapi.New(t, "students")
	api.RequireAuth("sync", "secret")

	dir := remote.NewDirectory(transport.New(nil), api.Root(), remote.WithRetry(5, time.Hour))
	_, err := dir.Resolve(context.Background(), "students")
	assert.ErrorIs(t, err, errors.ErrRemoteFatal)
	assert.Len(t, api.Requests(""), 0)
}

func TestCollectionLoadAllPaginates(t *testing.T) {
	api, dir, client := setup(t, "students")
	for _, id := range []string{"S1", "S2", "S3", "S4", "S5"} {
		api.Seed("students", records.Record{"student_id": id})
	}
	api.Seed("students", records.Record{"student_id": ""})

	coll := remote.NewCollection(dir, client, "students", remote.WithPageSize(2))
	mapping, err := coll.LoadAll(context.Background(), records.FieldKey("student_id"))
	require.NoError(t, err)

	assert.Equal(t, []records.Key{"S1", "S2", "S3", "S4", "S5"}, mapping.Keys())
	assert.NotEmpty(t, mapping["S3"].URL())

	lists := api.Requests(http.MethodGet)
	require.Len(t, lists, 3)
	assert.Contains(t, lists[0].Path, "page_size=2")
}

func TestCollectionLoadAllFatalStatus(t *testing.T) {
	api, dir, client := setup(t, "students")
	api.FailWith(http.MethodGet, "students", http.StatusInternalServerError)

	_, err := remote.NewCollection(dir, client, "students").LoadAll(context.Background(), records.FieldKey("student_id"))
	assert.ErrorIs(t, err, errors.ErrRemoteFatal)
}

func TestCollectionCreate(t *testing.T) {
	api, dir, client := setup(t, "students")
	coll := remote.NewCollection(dir, client, "students")

	created, err := coll.Create(context.Background(), records.Record{"student_id": "S1", "name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "S1", created["student_id"])
	assert.NotEmpty(t, created.URL())
	assert.Len(t, api.Records("students"), 1)
}

func TestCollectionCreateClientError(t *testing.T) {
	api, dir, client := setup(t, "students")
	api.Reject("students", func(rec records.Record) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{
			"email":  []any{"Enter a valid email address."},
			"detail": "Bad request",
		}
	})

	_, err := remote.NewCollection(dir, client, "students").Create(context.Background(), records.Record{"email": "x"})
	var clientErr *errors.RemoteClientError
	require.ErrorAs(t, err, &clientErr)
	assert.True(t, errors.IsRemoteClient(err))
	assert.Equal(t, http.StatusBadRequest, clientErr.StatusCode)
	assert.Equal(t, "Bad request", clientErr.Detail)
	assert.Equal(t, []string{"Enter a valid email address."}, clientErr.FieldErrors["email"])
}

func TestCollectionCreateServerErrorIsFatal(t *testing.T) {
	api, dir, client := setup(t, "students")
	api.FailWith(http.MethodPost, "students", http.StatusBadGateway)

	_, err := remote.NewCollection(dir, client, "students").Create(context.Background(), records.Record{"student_id": "S1"})
	assert.ErrorIs(t, err, errors.ErrRemoteFatal)
	assert.False(t, errors.IsRemoteClient(err))
}

func TestCollectionUpdateAndDelete(t *testing.T) {
	api, dir, client := setup(t, "students")
	url := api.Seed("students", records.Record{"student_id": "S1", "name": "Ann"})
	coll := remote.NewCollection(dir, client, "students")

	updated, err := coll.Update(context.Background(), url, records.Record{"student_id": "S1", "name": "Anne"})
	require.NoError(t, err)
	assert.Equal(t, "Anne", updated["name"])
	assert.Equal(t, url, updated.URL())
	assert.Equal(t, "Anne", api.Records("students")[0]["name"])

	require.NoError(t, coll.Delete(context.Background(), url))
	assert.Empty(t, api.Records("students"))

	err = coll.Delete(context.Background(), url)
	assert.ErrorIs(t, err, errors.ErrRemoteFatal)

	_, err = coll.Update(context.Background(), url, records.Record{})
	assert.ErrorIs(t, err, errors.ErrRemoteFatal)
}

func TestDryRun(t *testing.T) {
	api, dir, client := setup(t, "students")
	url := api.Seed("students", records.Record{"student_id": "S1"})

	dry := remote.DryRun(remote.NewCollection(dir, client, "students"), records.FieldKey("student_id"))
	ctx := context.Background()

	mapping, err := dry.LoadAll(ctx, records.FieldKey("student_id"))
	require.NoError(t, err)
	assert.Len(t, mapping, 1)

	created, err := dry.Create(ctx, records.Record{"student_id": "S2"})
	require.NoError(t, err)
	assert.Equal(t, "dry-run://students/S2", created.URL())
	assert.True(t, remote.IsDryRunURL(created.URL()))

	_, err = dry.Update(ctx, url, records.Record{"student_id": "S1", "name": "x"})
	require.NoError(t, err)
	require.NoError(t, dry.Delete(ctx, url))

	assert.Empty(t, api.Requests(http.MethodPost))
	assert.Empty(t, api.Requests(http.MethodPut))
	assert.Empty(t, api.Requests(http.MethodDelete))
	assert.Len(t, api.Records("students"), 1)
}
