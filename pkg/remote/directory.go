// Package remote reads and writes the collections of the remote REST API.
//
// A Directory maps collection names to endpoint URLs using the discovery
// document served at the API root. A Collection lists, creates, updates and
// deletes the records of one endpoint.
package remote

import (
	"context"
	"sync"
	"time"

	"github.com/agentstation/sissync/internal/transport"
	"github.com/agentstation/sissync/pkg/constants"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/logging"
)

// discovered caches discovery documents per root URL for the life of the
// process. It is read-only once filled.
var discovered = struct {
	sync.Mutex
	urls map[string]map[string]string
}{urls: make(map[string]map[string]string)}

// ResetDirectoryCache forgets every fetched discovery document.
func ResetDirectoryCache() {
	discovered.Lock()
	defer discovered.Unlock()
	discovered.urls = make(map[string]map[string]string)
}

// Directory resolves collection names to endpoint URLs.
type Directory struct {
	root     string
	client   *transport.Client
	attempts int
	delay    time.Duration
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithRetry sets how many times a connection failure is retried and the
// fixed delay between attempts.
func WithRetry(attempts int, delay time.Duration) DirectoryOption {
	return func(d *Directory) {
		if attempts > 0 {
			d.attempts = attempts
		}
		if delay >= 0 {
			d.delay = delay
		}
	}
}

// NewDirectory creates a directory for the API root URL.
func NewDirectory(client *transport.Client, root string, opts ...DirectoryOption) *Directory {
	d := &Directory{
		root:     root,
		client:   client,
		attempts: constants.DiscoveryAttempts,
		delay:    constants.DiscoveryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the API root URL.
func (d *Directory) Root() string {
	return d.root
}

// Resolve returns the endpoint URL of a named collection.
func (d *Directory) Resolve(ctx context.Context, name string) (string, error) {
	urls, err := d.URLs(ctx)
	if err != nil {
		return "", err
	}
	url, ok := urls[name]
	if !ok {
		return "", errors.NewNotFoundError("collection", name)
	}
	return url, nil
}

// URLs returns the full discovery document, fetching it on first use.
func (d *Directory) URLs(ctx context.Context) (map[string]string, error) {
	discovered.Lock()
	defer discovered.Unlock()

	if urls, ok := discovered.urls[d.root]; ok {
		return urls, nil
	}

	urls, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}
	discovered.urls[d.root] = urls
	return urls, nil
}

// fetch retries connection failures only; any HTTP answer other than 2xx is final.
func (d *Directory) fetch(ctx context.Context) (map[string]string, error) {
	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		resp, err := d.client.Get(ctx, d.root)
		if err == nil {
			if !resp.IsSuccess() {
				return nil, errors.NewRemoteFatalError("GET", d.root, resp.StatusCode, resp.Snippet())
			}
			var doc map[string]any
			if err := resp.Decode(&doc); err != nil {
				return nil, err
			}
			urls := make(map[string]string, len(doc))
			for name, v := range doc {
				if s, ok := v.(string); ok {
					urls[name] = s
				}
			}
			logger.Debug().Str("root", d.root).Int("collections", len(urls)).Msg("Fetched API discovery document")
			return urls, nil
		}

		if !errors.IsConnection(err) {
			return nil, err
		}
		lastErr = err

		if attempt < d.attempts {
			logger.Warn().Err(err).
				Int("attempt", attempt).
				Int("max_attempts", d.attempts).
				Dur("delay", d.delay).
				Msg("Unable to reach API root, retrying")
			if err := sleep(ctx, d.delay); err != nil {
				return nil, err
			}
		}
	}

	var connErr *errors.ConnectionError
	if errors.As(lastErr, &connErr) {
		return nil, &errors.ConnectionError{URL: d.root, Attempts: d.attempts, Err: connErr.Err}
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
