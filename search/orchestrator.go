package search

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-hms-cache/cache"
)

// DataSource runs queries against the system of record.
type DataSource interface {
	// Query returns one page of records and the total number of matches.
	Query(ctx context.Context, q Query) ([]cache.Record, int64, error)
	// CountBy returns the number of rows per distinct value of field and the
	// overall total. An empty field returns the total only.
	CountBy(ctx context.Context, entity Entity, field string) (map[string]int64, int64, error)
}

// ResultPage is one page of search results.
type ResultPage struct {
	Records    []cache.Record `json:"records"`
	TotalCount int64          `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// NewResultPage builds a page and derives the number of pages from total.
func NewResultPage(records []cache.Record, total int64, page, pageSize int) ResultPage {
	if records == nil {
		records = []cache.Record{}
	}
	return ResultPage{
		Records:    records,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}
}

func totalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	size := int64(pageSize)
	return int((total + size - 1) / size)
}

// Stats are aggregate counts for one entity type.
type Stats struct {
	Entity  string           `json:"entity" msgpack:"entity"`
	GroupBy string           `json:"group_by,omitempty" msgpack:"group_by"`
	Total   int64            `json:"total" msgpack:"total"`
	Groups  map[string]int64 `json:"groups,omitempty" msgpack:"groups"`
}

// Orchestrator serves searches cache-aside: a hit is returned as stored, a
// miss is queried, stored and returned. Cache failures degrade to a miss and
// never fail the request.
type Orchestrator struct {
	schema  *Schema
	store   cache.Store
	source  DataSource
	keys    cache.KeyDeriver
	codec   cache.Codec
	config  cache.Config
	limits  Limits
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures an Orchestrator or a Coordinator.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *Metrics
	keys    cache.KeyDeriver
	codec   cache.Codec
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithKeyDeriver replaces the key deriver built from the configured namespace.
func WithKeyDeriver(keys cache.KeyDeriver) Option {
	return func(o *options) {
		if keys != nil {
			o.keys = keys
		}
	}
}

// WithCodec replaces the default codec.
func WithCodec(codec cache.Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

func buildOptions(cfg cache.Config, opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.keys == nil {
		o.keys = cache.NewKeyDeriver(cfg.NamespaceOrDefault())
	}
	if o.codec == nil {
		o.codec = cache.NewCodec()
	}
	return o
}

// NewOrchestrator wires the search flow.
func NewOrchestrator(schema *Schema, store cache.Store, source DataSource, cfg cache.Config, opts ...Option) *Orchestrator {
	o := buildOptions(cfg, opts)
	return &Orchestrator{
		schema:  schema,
		store:   store,
		source:  source,
		keys:    o.keys,
		codec:   o.codec,
		config:  cfg,
		limits:  LimitsFromConfig(cfg),
		logger:  o.logger.Named("search"),
		metrics: o.metrics,
	}
}

// Search returns the page described by d and whether it came from the cache.
// A cached page is returned as stored, including its total count, until it
// expires or is invalidated.
func (o *Orchestrator) Search(ctx context.Context, d QueryDescriptor) (ResultPage, bool, error) {
	q, err := d.Normalize(o.schema, o.limits)
	if err != nil {
		return ResultPage{}, false, err
	}

	entity := q.Entity.Name
	key := o.keys.Derive(cache.CategorySearch, entity, q.KeyParams())
	logger := o.logger.With(zap.String("entity", entity), zap.String("key", key))

	if !bypassFromContext(ctx) {
		if page, ok := o.lookupPage(ctx, logger, key); ok {
			o.metrics.hit(cache.CategorySearch, entity)
			logger.Debug("search cache hit")
			return NewResultPage(page.Records, page.TotalCount, page.Page, page.PageSize), true, nil
		}
	}
	o.metrics.miss(cache.CategorySearch, entity)

	started := time.Now()
	records, total, err := o.source.Query(ctx, q)
	o.metrics.observeQuery(entity, started)
	if err != nil {
		return ResultPage{}, false, cache.QueryFailed(err, "search query failed for "+entity)
	}

	normalized, err := cache.Normalize(records, q.IncludeRelations)
	if err != nil {
		o.reportCacheError(logger, "encode", err)
		return NewResultPage(records, total, q.Page, q.PageSize), false, nil
	}

	o.fill(ctx, logger, key, cache.Page{
		Records:    normalized,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})

	return NewResultPage(normalized, total, q.Page, q.PageSize), false, nil
}

// Stats returns aggregate counts for entity, cached in the stats tier.
func (o *Orchestrator) Stats(ctx context.Context, entityName string) (Stats, bool, error) {
	entity, ok := o.schema.Entity(entityName)
	if !ok {
		return Stats{}, false, cache.InvalidDescriptor("unknown entity type",
			goerrors.FieldError{Field: "entity", Message: "not registered", Value: entityName})
	}

	key := o.keys.Derive(cache.CategoryStats, entity.Name, map[string]any{"group_by": entity.StatusField})
	logger := o.logger.With(zap.String("entity", entity.Name), zap.String("key", key))

	if !bypassFromContext(ctx) {
		if payload, found := o.get(ctx, logger, key); found {
			var stats Stats
			if err := o.codec.DecodeValue(payload, &stats); err != nil {
				o.reportCacheError(logger, "decode", err)
			} else {
				o.metrics.hit(cache.CategoryStats, entity.Name)
				logger.Debug("stats cache hit")
				return stats, true, nil
			}
		}
	}
	o.metrics.miss(cache.CategoryStats, entity.Name)

	started := time.Now()
	groups, total, err := o.source.CountBy(ctx, entity, entity.StatusField)
	o.metrics.observeQuery(entity.Name, started)
	if err != nil {
		return Stats{}, false, cache.QueryFailed(err, "stats query failed for "+entity.Name)
	}

	stats := Stats{Entity: entity.Name, GroupBy: entity.StatusField, Total: total, Groups: groups}
	payload, err := o.codec.EncodeValue(stats)
	if err != nil {
		o.reportCacheError(logger, "encode", err)
		return stats, false, nil
	}
	o.set(ctx, logger, key, payload, o.config.TTL(cache.CategoryStats))

	return stats, false, nil
}

func (o *Orchestrator) lookupPage(ctx context.Context, logger *zap.Logger, key string) (cache.Page, bool) {
	payload, found := o.get(ctx, logger, key)
	if !found {
		return cache.Page{}, false
	}

	page, err := o.codec.DecodePage(payload)
	if err != nil {
		o.reportCacheError(logger, "decode", err)
		return cache.Page{}, false
	}
	return page, true
}

func (o *Orchestrator) get(ctx context.Context, logger *zap.Logger, key string) ([]byte, bool) {
	payload, found, err := o.store.Get(ctx, key)
	if err != nil {
		o.reportCacheError(logger, "get", err)
		return nil, false
	}
	return payload, found
}

func (o *Orchestrator) fill(ctx context.Context, logger *zap.Logger, key string, page cache.Page) {
	payload, err := o.codec.EncodePage(page)
	if err != nil {
		o.reportCacheError(logger, "encode", err)
		return
	}
	o.set(ctx, logger, key, payload, o.config.TTL(cache.CategorySearch))
}

func (o *Orchestrator) set(ctx context.Context, logger *zap.Logger, key string, payload []byte, ttl time.Duration) {
	if err := o.store.Set(ctx, key, payload, ttl); err != nil {
		o.reportCacheError(logger, "set", err)
		return
	}
	logger.Debug("cache filled", zap.Duration("ttl", ttl), zap.Int("bytes", len(payload)))
}

// reportCacheError logs a degraded cache operation. Unavailability is
// expected during outages and logged as a warning, anything else as an error.
func (o *Orchestrator) reportCacheError(logger *zap.Logger, operation string, err error) {
	o.metrics.cacheError(operation, err)
	logCacheError(logger, operation, err)
}

func logCacheError(logger *zap.Logger, operation string, err error) {
	kind := cache.KindOf(err)
	fields := []zap.Field{zap.String("operation", operation), zap.String("kind", kind.String()), zap.Error(err)}
	switch kind {
	case cache.KindUnavailable:
		logger.Warn("cache unavailable, continuing without it", fields...)
	default:
		logger.Error("cache entry could not be used", fields...)
	}
}
