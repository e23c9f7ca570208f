// Package sissync synchronizes a Keystone SIS export with the apps API.
//
// A Client loads the entity definitions, builds one reconciler per entity and
// syncs them in dependency order:
//
//	c, err := sissync.New(
//		sissync.WithAPIRoot("https://apps.example.org/api/"),
//		sissync.WithCredentials("sync", "secret"),
//		sissync.WithDataDir("/srv/keystone"),
//	)
//	result, err := c.Sync(ctx, sissync.WithEntities("students"))
package sissync

import (
	"context"
	"path/filepath"

	"github.com/agentstation/sissync/internal/transport"
	"github.com/agentstation/sissync/pkg/entities"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/local"
	"github.com/agentstation/sissync/pkg/reconciler"
	"github.com/agentstation/sissync/pkg/remote"
)

// Client runs sync passes against one remote API.
type Client interface {
	// Sync runs one pass over the selected entities.
	Sync(ctx context.Context, opts ...SyncOption) (*Result, error)

	// Plan runs a dry-run pass and reports what Sync would change.
	Plan(ctx context.Context, opts ...SyncOption) (*Result, error)

	// Entities returns the entity definitions in sync order.
	Entities() []entities.Definition
}

// client is the internal implementation of the Client interface
type client struct {
	config    *config
	registry  *entities.Registry
	transport *transport.Client
}

// New creates a Client with the given options.
func New(opts ...Option) (Client, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	registry, err := cfg.loadRegistry()
	if err != nil {
		return nil, err
	}

	topts := []transport.Option{transport.WithTimeout(cfg.httpTimeout)}
	if cfg.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(cfg.httpClient))
	}
	if cfg.rateLimit > 0 {
		topts = append(topts, transport.WithRateLimit(cfg.rateLimit))
	}

	return &client{
		config:    cfg,
		registry:  registry,
		transport: transport.New(transport.NewAuthenticator(cfg.username, cfg.password, cfg.token), topts...),
	}, nil
}

// Entities returns the entity definitions in sync order.
func (c *client) Entities() []entities.Definition {
	order := c.registry.Order()
	defs := make([]entities.Definition, 0, len(order))
	for _, name := range order {
		def, _ := c.registry.Get(name)
		defs = append(defs, def)
	}
	return defs
}

// managers builds a fresh set of managers for one pass.
func (c *client) managers(dryRun bool) (map[string]*reconciler.Manager, error) {
	dir := remote.NewDirectory(c.transport, c.config.apiRoot,
		remote.WithRetry(c.config.discoveryAttempts, c.config.discoveryDelay))

	return c.registry.Build(entities.Builder{
		Accessor: func(collection string) remote.Accessor {
			return remote.NewCollection(dir, c.transport, collection, remote.WithPageSize(c.config.pageSize))
		},
		Source: func(def entities.Definition) local.Source {
			return local.File{Path: c.config.exportPath(def)}
		},
		Options: []reconciler.Option{reconciler.WithDryRun(dryRun)},
	})
}

// exportPath returns where the export of def is read from.
func (c *config) exportPath(def entities.Definition) string {
	path, ok := c.files[def.Name]
	if !ok {
		path = def.FileName()
	}
	if filepath.IsAbs(path) || c.dataDir == "" {
		return path
	}
	return filepath.Join(c.dataDir, path)
}

func (c *config) loadRegistry() (*entities.Registry, error) {
	if c.entitiesFile == "" {
		return entities.Default()
	}
	registry, err := entities.LoadFile(c.entitiesFile)
	if err != nil {
		return nil, errors.WrapResource("load", "entities", c.entitiesFile, err)
	}
	return registry, nil
}
