package di

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/goliatone/go-hms-cache/cache"
	"github.com/goliatone/go-hms-cache/internal/cacheinfra"
	"github.com/goliatone/go-hms-cache/search"
)

// Container wires the cache store, search orchestrator, invalidation
// coordinator and write decorator from a single configuration. Every
// component it hands out shares the same store handle.
type Container struct {
	config   cache.Config
	schema   *search.Schema
	rules    search.Rules
	store    cache.Store
	degraded bool
	keys     cache.KeyDeriver
	codec    cache.Codec
	metrics  *search.Metrics
	logger   *zap.Logger

	registerer prometheus.Registerer
	source     search.DataSource
	writer     search.Writer

	orchestrator *search.Orchestrator
	coordinator  *search.Coordinator
	records      *search.Records
}

// Option customizes a Container.
type Option func(*Container)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegisterer registers the search metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Container) { c.registerer = reg }
}

// WithStore replaces the store built from the configuration.
func WithStore(store cache.Store) Option {
	return func(c *Container) { c.store = store }
}

// WithDataSource sets the system of record searches are served from. When it
// also implements search.Writer it is used for writes unless WithWriter is given.
func WithDataSource(source search.DataSource) Option {
	return func(c *Container) { c.source = source }
}

// WithWriter sets the writer mutations are committed through.
func WithWriter(writer search.Writer) Option {
	return func(c *Container) { c.writer = writer }
}

// WithSchema replaces the hospital schema.
func WithSchema(schema *search.Schema) Option {
	return func(c *Container) {
		if schema != nil {
			c.schema = schema
		}
	}
}

// WithRules replaces the default invalidation rules.
func WithRules(rules search.Rules) Option {
	return func(c *Container) {
		if rules != nil {
			c.rules = rules
		}
	}
}

// NewContainer validates config and builds the components. When the shared
// backend cannot be reached the container logs a warning and serves every
// request from the data source instead of failing.
func NewContainer(ctx context.Context, config cache.Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config: config,
		schema: search.HospitalSchema(),
		rules:  search.DefaultRules(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.rules.Validate(c.schema); err != nil {
		return nil, err
	}
	if c.writer == nil {
		if writer, ok := c.source.(search.Writer); ok {
			c.writer = writer
		}
	}

	if c.store == nil {
		store, err := c.connectStore(ctx)
		if err != nil {
			return nil, err
		}
		c.store = store
	}

	c.keys = cache.NewKeyDeriver(config.NamespaceOrDefault())
	c.codec = cache.NewCodec()
	if c.registerer != nil {
		c.metrics = search.NewMetrics(c.registerer)
	}

	shared := []search.Option{
		search.WithLogger(c.logger),
		search.WithMetrics(c.metrics),
		search.WithKeyDeriver(c.keys),
		search.WithCodec(c.codec),
	}

	c.coordinator = search.NewCoordinator(c.store, config, c.rules, shared...)
	if c.source != nil {
		c.orchestrator = search.NewOrchestrator(c.schema, c.store, c.source, config, shared...)
	}
	if c.writer != nil {
		c.records = search.NewRecords(c.schema, c.writer, c.coordinator, c.logger)
	}

	return c, nil
}

// NewContainerWithDefaults builds a container from the process environment.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	config, err := cache.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, config, opts...)
}

func (c *Container) connectStore(ctx context.Context) (cache.Store, error) {
	if !c.config.Enabled {
		c.logger.Info("cache disabled by configuration, serving from the data source only")
		return cacheinfra.NewNopStore(), nil
	}

	store, err := cache.NewStore(c.config)
	if err != nil {
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		c.logger.Warn("cache backend unreachable, operating without cache",
			zap.String("namespace", c.config.NamespaceOrDefault()),
			zap.Error(err),
		)
		_ = store.Close()
		c.degraded = true
		return cacheinfra.NewNopStore(), nil
	}

	c.logger.Info("cache backend connected", zap.String("namespace", c.config.NamespaceOrDefault()))
	return store, nil
}

// Orchestrator serves searches. It is nil when no data source was provided.
func (c *Container) Orchestrator() *search.Orchestrator {
	return c.orchestrator
}

// Coordinator purges cached searches.
func (c *Container) Coordinator() *search.Coordinator {
	return c.coordinator
}

// Records commits writes and purges affected searches. It is nil when no
// writer was provided.
func (c *Container) Records() *search.Records {
	return c.records
}

// Store returns the shared store.
func (c *Container) Store() cache.Store {
	return c.store
}

// Degraded reports whether the backend was unreachable at startup.
func (c *Container) Degraded() bool {
	return c.degraded
}

func (c *Container) Schema() *search.Schema {
	return c.schema
}

func (c *Container) KeyDeriver() cache.KeyDeriver {
	return c.keys
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Close releases the store connection.
func (c *Container) Close() error {
	return c.store.Close()
}
