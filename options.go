package sissync

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/sissync/pkg/constants"
	"github.com/agentstation/sissync/pkg/errors"
)

// Option is a function that configures a Client
type Option func(*config) error

// config holds the Client configuration
type config struct {
	apiRoot           string
	username          string
	password          string
	token             string
	dataDir           string
	entitiesFile      string
	files             map[string]string
	httpClient        *http.Client
	httpTimeout       time.Duration
	pageSize          int
	rateLimit         float64
	discoveryAttempts int
	discoveryDelay    time.Duration
	logger            *zerolog.Logger
}

func newConfig(opts ...Option) (*config, error) {
	c := &config{
		files:             make(map[string]string),
		httpTimeout:       constants.DefaultHTTPTimeout,
		pageSize:          constants.DefaultPageSize,
		rateLimit:         constants.DefaultRateLimit,
		discoveryAttempts: constants.DiscoveryAttempts,
		discoveryDelay:    constants.DiscoveryDelay,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.apiRoot == "" {
		return nil, errors.NewConfigError("api_root", "is required", nil)
	}
	return c, nil
}

// WithAPIRoot sets the URL of the discovery document.
func WithAPIRoot(root string) Option {
	return func(c *config) error {
		u, err := url.Parse(root)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &errors.ValidationError{Field: "api_root", Value: root, Message: "must be an absolute URL"}
		}
		if !strings.HasSuffix(root, "/") {
			root += "/"
		}
		c.apiRoot = root
		return nil
	}
}

// WithCredentials sets the basic auth credentials sent with every request.
func WithCredentials(username, password string) Option {
	return func(c *config) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken authenticates with an API token instead of basic auth.
func WithToken(token string) Option {
	return func(c *config) error {
		c.token = token
		return nil
	}
}

// WithDataDir sets the directory relative export paths are resolved against.
func WithDataDir(dir string) Option {
	return func(c *config) error {
		c.dataDir = dir
		return nil
	}
}

// WithEntitiesFile replaces the built-in entity definitions.
func WithEntitiesFile(path string) Option {
	return func(c *config) error {
		c.entitiesFile = path
		return nil
	}
}

// WithFiles overrides export file paths by entity name.
func WithFiles(files map[string]string) Option {
	return func(c *config) error {
		for name, path := range files {
			c.files[name] = path
		}
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for all requests. Its own
// timeout applies instead of WithHTTPTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) error {
		c.httpClient = hc
		return nil
	}
}

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d < 0 {
			return &errors.ValidationError{Field: "http_timeout", Value: d, Message: "cannot be negative"}
		}
		c.httpTimeout = d
		return nil
	}
}

// WithPageSize sets the page size requested when listing collections.
func WithPageSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return &errors.ValidationError{Field: "page_size", Value: n, Message: "must be positive"}
		}
		c.pageSize = n
		return nil
	}
}

// WithRateLimit caps requests per second. Zero means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(c *config) error {
		if perSecond < 0 {
			return &errors.ValidationError{Field: "rate_limit", Value: perSecond, Message: "cannot be negative"}
		}
		c.rateLimit = perSecond
		return nil
	}
}

// WithDiscoveryRetry sets how often and how far apart the discovery
// document is retried on connection failures.
func WithDiscoveryRetry(attempts int, delay time.Duration) Option {
	return func(c *config) error {
		if attempts < 1 {
			return &errors.ValidationError{Field: "discovery_attempts", Value: attempts, Message: "must be at least 1"}
		}
		c.discoveryAttempts = attempts
		c.discoveryDelay = delay
		return nil
	}
}

// WithLogger sets the logger sync passes log to. Without it the logger in
// the sync context, or the default logger, is used.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
