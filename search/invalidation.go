package search

import (
	"context"
	"fmt"
	"slices"

	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-hms-cache/cache"
)

// Rules maps an entity type to the entity types whose cached searches embed
// it and must be purged when it changes.
type Rules map[string][]string

// DefaultRules are the dependencies of the hospital schema. Patient data is
// embedded in every clinical listing through the patient relation, and those
// listings feed patient views in turn.
func DefaultRules() Rules {
	return Rules{
		Patients:       {MedicalRecords, Prescriptions, LabTests, Appointments, Bills},
		MedicalRecords: {Patients},
		Prescriptions:  {Patients},
		LabTests:       {Patients},
		Appointments:   {Patients},
		Bills:          {Patients},
	}
}

// Validate checks that every entity type named by the rules is registered.
func (r Rules) Validate(schema *Schema) error {
	var fields []goerrors.FieldError
	for entity, dependents := range r {
		if _, ok := schema.Entity(entity); !ok {
			fields = append(fields, goerrors.FieldError{Field: "rules", Message: "unknown entity", Value: entity})
		}
		for _, dep := range dependents {
			if _, ok := schema.Entity(dep); !ok {
				fields = append(fields, goerrors.FieldError{Field: "rules." + entity, Message: "unknown dependent", Value: dep})
			}
		}
	}
	if len(fields) > 0 {
		return goerrors.NewValidation("invalid invalidation rules", fields...)
	}
	return nil
}

// Coordinator purges cached searches after a committed mutation.
type Coordinator struct {
	store           cache.Store
	keys            cache.KeyDeriver
	rules           Rules
	invalidateStats bool
	logger          *zap.Logger
	metrics         *Metrics
}

// NewCoordinator builds a coordinator. The rules are copied and not
// modified afterwards.
func NewCoordinator(store cache.Store, cfg cache.Config, rules Rules, opts ...Option) *Coordinator {
	o := buildOptions(cfg, opts)

	copied := make(Rules, len(rules))
	for entity, dependents := range rules {
		copied[entity] = slices.Clone(dependents)
	}

	return &Coordinator{
		store:           store,
		keys:            o.keys,
		rules:           copied,
		invalidateStats: cfg.InvalidateStats,
		logger:          o.logger.Named("invalidation"),
		metrics:         o.metrics,
	}
}

// Targets lists the entity types whose searches a change to entity purges:
// entity itself followed by its direct dependents. Dependents of dependents
// are not followed.
func (c *Coordinator) Targets(entity string) []string {
	return dedupeStrings(append([]string{entity}, c.rules[entity]...))
}

// Invalidate purges the search category of entity and its dependents, and the
// stats category of entity when enabled. Every prefix is attempted; failures
// are logged and the first one is returned. Callers treat a failure as
// non-fatal since entries still expire on their TTL.
func (c *Coordinator) Invalidate(ctx context.Context, entity string) error {
	return c.invalidate(ctx, c.Targets(entity), entity)
}

// InvalidateAll purges the targets of every entity in entities once.
func (c *Coordinator) InvalidateAll(ctx context.Context, entities ...string) error {
	var targets []string
	for _, entity := range entities {
		targets = append(targets, c.Targets(entity)...)
	}
	return c.invalidate(ctx, dedupeStrings(targets), dedupeStrings(entities)...)
}

func (c *Coordinator) invalidate(ctx context.Context, searchTargets []string, statsTargets ...string) error {
	var first error
	purge := func(category cache.Category, entity string) {
		pattern := c.keys.Pattern(category, entity)
		if err := c.store.DeleteMatching(ctx, pattern); err != nil {
			c.metrics.cacheError("invalidate", err)
			logCacheError(c.logger.With(zap.String("pattern", pattern)), "invalidate", err)
			if first == nil {
				first = fmt.Errorf("invalidate %s: %w", pattern, err)
			}
			return
		}
		c.metrics.invalidated(category, entity)
		c.logger.Debug("cache prefix purged", zap.String("pattern", pattern))
	}

	for _, entity := range searchTargets {
		purge(cache.CategorySearch, entity)
	}
	if c.invalidateStats {
		for _, entity := range statsTargets {
			purge(cache.CategoryStats, entity)
		}
	}
	return first
}
