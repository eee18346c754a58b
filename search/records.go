package search

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-hms-cache/cache"
)

// Writer commits mutations to the system of record.
type Writer interface {
	Create(ctx context.Context, entity Entity, values cache.Record) (cache.Record, error)
	Update(ctx context.Context, entity Entity, id any, values cache.Record) (cache.Record, error)
	Delete(ctx context.Context, entity Entity, id any) error
}

// Records decorates a Writer so that every committed mutation purges the
// cached searches it affects before the call returns. A failed mutation
// purges too unless the writer rejected it before touching the store, since
// the write may have committed before the failure was reported.
type Records struct {
	schema      *Schema
	writer      Writer
	coordinator *Coordinator
	logger      *zap.Logger
}

// NewRecords wraps writer.
func NewRecords(schema *Schema, writer Writer, coordinator *Coordinator, logger *zap.Logger) *Records {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Records{
		schema:      schema,
		writer:      writer,
		coordinator: coordinator,
		logger:      logger.Named("records"),
	}
}

// Create inserts a record of entity type entityName.
func (r *Records) Create(ctx context.Context, entityName string, values cache.Record) (cache.Record, error) {
	entity, err := r.entity(entityName)
	if err != nil {
		return nil, err
	}

	result, err := r.writer.Create(ctx, entity, values)
	if mayHaveCommitted(err) {
		r.invalidateAfterWrite(ctx, entity.Name, "create")
	}
	return result, err
}

// Update changes the record identified by id.
func (r *Records) Update(ctx context.Context, entityName string, id any, values cache.Record) (cache.Record, error) {
	entity, err := r.entity(entityName)
	if err != nil {
		return nil, err
	}

	result, err := r.writer.Update(ctx, entity, id, values)
	if mayHaveCommitted(err) {
		r.invalidateAfterWrite(ctx, entity.Name, "update")
	}
	return result, err
}

// Delete removes the record identified by id.
func (r *Records) Delete(ctx context.Context, entityName string, id any) error {
	entity, err := r.entity(entityName)
	if err != nil {
		return err
	}

	err = r.writer.Delete(ctx, entity, id)
	if mayHaveCommitted(err) {
		r.invalidateAfterWrite(ctx, entity.Name, "delete")
	}
	return err
}

func (r *Records) entity(name string) (Entity, error) {
	entity, ok := r.schema.Entity(name)
	if !ok {
		return Entity{}, cache.InvalidDescriptor("unknown entity type",
			goerrors.FieldError{Field: "entity", Message: "not registered", Value: name})
	}
	return entity, nil
}

// mayHaveCommitted reports whether a write that returned err could have
// changed the store. Only rejections raised before the statement ran rule
// that out.
func mayHaveCommitted(err error) bool {
	if err == nil {
		return true
	}
	return !goerrors.IsCategory(err, goerrors.CategoryValidation) &&
		!goerrors.IsCategory(err, goerrors.CategoryBadInput) &&
		!goerrors.IsCategory(err, goerrors.CategoryNotFound)
}

// invalidateAfterWrite purges the written entity together with any entity
// types attached to ctx. The mutation is already committed, so a purge failure
// is logged and the entries are left to expire.
func (r *Records) invalidateAfterWrite(ctx context.Context, entity, operation string) {
	entities := append([]string{entity}, invalidationsFromContext(ctx)...)
	if err := r.coordinator.InvalidateAll(ctx, entities...); err != nil {
		r.logger.Warn("cache invalidation incomplete after write",
			zap.String("entity", entity),
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}
