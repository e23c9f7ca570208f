package remote

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/agentstation/sissync/internal/transport"
	"github.com/agentstation/sissync/pkg/constants"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/logging"
	"github.com/agentstation/sissync/pkg/records"
)

// Accessor reads and mutates one remote collection.
type Accessor interface {
	// Name is the collection name in the discovery document.
	Name() string
	// LoadAll lists every record of the collection by key.
	LoadAll(ctx context.Context, keyFn records.KeyFunc) (records.Mapping, error)
	// Create posts a new record and returns it as stored.
	Create(ctx context.Context, rec records.Record) (records.Record, error)
	// Update replaces the record at url.
	Update(ctx context.Context, url string, rec records.Record) (records.Record, error)
	// Delete removes the record at url.
	Delete(ctx context.Context, url string) error
}

// Collection is the HTTP implementation of Accessor.
type Collection struct {
	name     string
	dir      *Directory
	client   *transport.Client
	pageSize int
}

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// WithPageSize sets the page size hint sent when listing.
func WithPageSize(n int) CollectionOption {
	return func(c *Collection) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewCollection creates an accessor for the named collection.
func NewCollection(dir *Directory, client *transport.Client, name string, opts ...CollectionOption) *Collection {
	c := &Collection{
		name:     name,
		dir:      dir,
		client:   client,
		pageSize: constants.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Accessor.
func (c *Collection) Name() string {
	return c.name
}

type page struct {
	Results []records.Record `json:"results"`
	Next    *string          `json:"next"`
}

// LoadAll implements Accessor. It follows "next" links until exhausted.
// Remote records without a usable key are logged and skipped.
func (c *Collection) LoadAll(ctx context.Context, keyFn records.KeyFunc) (records.Mapping, error) {
	endpoint, err := c.dir.Resolve(ctx, c.name)
	if err != nil {
		return nil, err
	}
	next, err := withQuery(endpoint, constants.PageSizeParam, strconv.Itoa(c.pageSize))
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	mapping := make(records.Mapping)
	seen := make(map[string]bool)

	for next != "" && !seen[next] {
		seen[next] = true

		resp, err := c.client.Get(ctx, next)
		if err != nil {
			return nil, err
		}
		if !resp.IsSuccess() {
			return nil, errors.NewRemoteFatalError("GET", next, resp.StatusCode, resp.Snippet())
		}

		var p page
		if bytes.HasPrefix(bytes.TrimSpace(resp.Body), []byte("[")) {
			err = resp.Decode(&p.Results)
		} else {
			err = resp.Decode(&p)
		}
		if err != nil {
			return nil, err
		}

		for _, rec := range p.Results {
			key, err := keyFn(rec)
			if err != nil {
				if errors.IsInvalidRecord(err) {
					logger.Warn().Err(err).Str("url", rec.URL()).Msg("Skipping remote record without key")
					continue
				}
				return nil, err
			}
			mapping[key] = rec
		}

		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}

	return mapping, nil
}

// Create implements Accessor. A 4xx answer is returned as
// *errors.RemoteClientError; any other failure status is fatal.
func (c *Collection) Create(ctx context.Context, rec records.Record) (records.Record, error) {
	endpoint, err := c.dir.Resolve(ctx, c.name)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Send(ctx, http.MethodPost, endpoint, rec)
	if err != nil {
		return nil, err
	}
	if resp.IsClientError() {
		return nil, clientError(http.MethodPost, endpoint, resp)
	}
	if !resp.IsSuccess() {
		return nil, errors.NewRemoteFatalError(http.MethodPost, endpoint, resp.StatusCode, resp.Snippet())
	}

	var created records.Record
	if err := resp.Decode(&created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update implements Accessor. Any failure status is fatal.
func (c *Collection) Update(ctx context.Context, url string, rec records.Record) (records.Record, error) {
	resp, err := c.client.Send(ctx, http.MethodPut, url, rec)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, errors.NewRemoteFatalError(http.MethodPut, url, resp.StatusCode, resp.Snippet())
	}

	updated := rec.Clone()
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := resp.Decode(&updated); err != nil {
			return nil, err
		}
	}
	if updated.URL() == "" {
		updated[records.URLField] = url
	}
	return updated, nil
}

// Delete implements Accessor. Any failure status is fatal.
func (c *Collection) Delete(ctx context.Context, url string) error {
	resp, err := c.client.Send(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return errors.NewRemoteFatalError(http.MethodDelete, url, resp.StatusCode, resp.Snippet())
	}
	return nil
}

// clientError extracts field errors and the non-field detail from a 4xx body.
// Bodies that are not JSON objects become the detail.
func clientError(method, endpoint string, resp *transport.Response) *errors.RemoteClientError {
	e := &errors.RemoteClientError{
		Method:      method,
		URL:         endpoint,
		StatusCode:  resp.StatusCode,
		FieldErrors: make(map[string][]string),
	}

	var body map[string]any
	if err := resp.Decode(&body); err != nil {
		e.Detail = resp.Snippet()
		return e
	}

	for field, v := range body {
		if field == "detail" {
			e.Detail = records.Stringify(v)
			continue
		}
		e.FieldErrors[field] = messages(v)
	}
	return e
}

func messages(v any) []string {
	switch m := v.(type) {
	case []any:
		out := make([]string, 0, len(m))
		for _, item := range m {
			out = append(out, records.Stringify(item))
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(m))
		for _, k := range keys {
			for _, msg := range messages(m[k]) {
				out = append(out, k+": "+msg)
			}
		}
		return out
	default:
		return []string{records.Stringify(v)}
	}
}

func withQuery(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.WrapParse("url", raw, err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
