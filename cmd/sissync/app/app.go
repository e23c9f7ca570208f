// Package app provides the application context and dependency management
// for the sissync CLI. It centralizes configuration, logging and the
// sync client behind the cobra commands.
package app

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/sissync"
	"github.com/agentstation/sissync/pkg/errors"
)

// App represents the sissync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Command output
	out io.Writer

	// Client instance (lazy-initialized, singleton)
	mu     sync.Mutex
	client sissync.Client
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		out:     os.Stdout,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Client returns the sync client, creating it on first use from the
// current configuration.
func (a *App) Client() (sissync.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	c, err := sissync.New(a.clientOptions()...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", a.config.APIRoot, err)
	}
	a.client = c
	return c, nil
}

// clientOptions constructs client options from the app configuration.
func (a *App) clientOptions() []sissync.Option {
	c := a.config
	opts := []sissync.Option{
		sissync.WithLogger(a.logger),
		sissync.WithDataDir(c.DataDir),
		sissync.WithFiles(c.Files),
	}
	if c.APIRoot != "" {
		opts = append(opts, sissync.WithAPIRoot(c.APIRoot))
	}
	if c.Token != "" {
		opts = append(opts, sissync.WithToken(c.Token))
	} else {
		opts = append(opts, sissync.WithCredentials(c.Username, c.Password))
	}
	if c.EntitiesFile != "" {
		opts = append(opts, sissync.WithEntitiesFile(c.EntitiesFile))
	}
	if c.PageSize > 0 {
		opts = append(opts, sissync.WithPageSize(c.PageSize))
	}
	if c.RateLimit > 0 {
		opts = append(opts, sissync.WithRateLimit(c.RateLimit))
	}
	if c.HTTPTimeout > 0 {
		opts = append(opts, sissync.WithHTTPTimeout(c.HTTPTimeout))
	}
	if c.DiscoveryAttempts > 0 {
		opts = append(opts, sissync.WithDiscoveryRetry(c.DiscoveryAttempts, c.DiscoveryDelay))
	}
	return opts
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput sets where command results are written.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}

// WithClient sets a custom client instance (useful for testing).
func WithClient(c sissync.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}
