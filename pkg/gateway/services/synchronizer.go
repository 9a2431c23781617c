package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/facilityhub/facility/pkg/repository"
	"github.com/facilityhub/facility/pkg/types"
)

// SearchMirror is the non-authoritative search copy of one record kind
type SearchMirror[T types.Entity[T]] interface {
	Save(ctx context.Context, record T) error
	DeleteByID(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, pageable types.Pageable) (*types.Page[T], error)
}

// EntitySynchronizer applies mutations to the record store and then mirrors
// the stored result into the search index. A failed mirror write does not
// undo the store write; the error is returned to the caller.
type EntitySynchronizer[T types.Entity[T]] struct {
	kind    types.Kind
	store   repository.RecordStore[T]
	mirror  SearchMirror[T]
	metrics *Metrics
}

func NewEntitySynchronizer[T types.Entity[T]](kind types.Kind, store repository.RecordStore[T], mirror SearchMirror[T], metrics *Metrics) *EntitySynchronizer[T] {
	return &EntitySynchronizer[T]{
		kind:    kind,
		store:   store,
		mirror:  mirror,
		metrics: metrics,
	}
}

// Create stores a new record and mirrors it. The input must not carry an id.
func (s *EntitySynchronizer[T]) Create(ctx context.Context, input T) (T, error) {
	var zero T

	if input.GetID() != nil {
		return zero, types.NewValidationError(s.kind, types.ErrKeyIDExists, fmt.Sprintf("a new %s cannot already have an id", s.kind))
	}

	if err := types.ValidateRecord(input); err != nil {
		return zero, err
	}

	stored, err := s.save(ctx, "create", input)
	if err != nil {
		return zero, err
	}

	log.Debug().Str("kind", string(s.kind)).Int64("id", *stored.GetID()).Msg("created record")
	return stored, s.mirrorSave(ctx, stored)
}

// Replace overwrites every field of an existing record
func (s *EntitySynchronizer[T]) Replace(ctx context.Context, id int64, input T) (T, error) {
	var zero T

	if err := s.checkID(id, input); err != nil {
		return zero, err
	}

	exists, err := s.store.ExistsByID(ctx, id)
	s.metrics.observeStore(s.kind, "exists", err)
	if err != nil {
		return zero, err
	}
	if !exists {
		return zero, &types.ErrRecordNotFound{Kind: s.kind, ID: id}
	}

	if err := types.ValidateRecord(input); err != nil {
		return zero, err
	}

	stored, err := s.save(ctx, "replace", input)
	if err != nil {
		return zero, err
	}

	log.Debug().Str("kind", string(s.kind)).Int64("id", id).Msg("replaced record")
	return stored, s.mirrorSave(ctx, stored)
}

// MergePatch overwrites only the fields that are set in partial. A parent
// reference in partial is taken by its id alone.
func (s *EntitySynchronizer[T]) MergePatch(ctx context.Context, id int64, partial T) (T, error) {
	var zero T

	if err := s.checkID(id, partial); err != nil {
		return zero, err
	}

	existing, err := s.store.FindByID(ctx, id)
	s.metrics.observeStore(s.kind, "find", err)
	if err != nil {
		return zero, err
	}

	existing.MergeFrom(partial)

	if err := types.ValidateRecord(existing); err != nil {
		return zero, err
	}

	stored, err := s.save(ctx, "patch", existing)
	if err != nil {
		return zero, err
	}

	log.Debug().Str("kind", string(s.kind)).Int64("id", id).Msg("patched record")
	return stored, s.mirrorSave(ctx, stored)
}

// Delete removes the record from the store and then from the mirror. Missing
// records are not an error.
func (s *EntitySynchronizer[T]) Delete(ctx context.Context, id int64) error {
	err := s.store.DeleteByID(ctx, id)
	s.metrics.observeStore(s.kind, "delete", err)
	if err != nil {
		return err
	}

	log.Debug().Str("kind", string(s.kind)).Int64("id", id).Msg("deleted record")

	err = s.mirror.DeleteByID(ctx, id)
	s.metrics.observeMirror(s.kind, "delete", err)
	if err != nil {
		log.Error().Err(err).Str("kind", string(s.kind)).Int64("id", id).Msg("failed to delete record from search mirror")
		return fmt.Errorf("failed to delete %s %d from search mirror: %w", s.kind, id, err)
	}

	return nil
}

func (s *EntitySynchronizer[T]) checkID(id int64, input T) error {
	inputID := input.GetID()
	if inputID == nil {
		return types.NewValidationError(s.kind, types.ErrKeyIDNull, "invalid id")
	}
	if *inputID != id {
		return types.NewValidationError(s.kind, types.ErrKeyIDInvalid, fmt.Sprintf("id %d does not match path id %d", *inputID, id))
	}
	return nil
}

func (s *EntitySynchronizer[T]) save(ctx context.Context, op string, record T) (T, error) {
	stored, err := s.store.Save(ctx, record)
	s.metrics.observeStore(s.kind, op, err)
	return stored, err
}

func (s *EntitySynchronizer[T]) mirrorSave(ctx context.Context, stored T) error {
	err := s.mirror.Save(ctx, stored)
	s.metrics.observeMirror(s.kind, "save", err)
	if err != nil {
		id := *stored.GetID()
		log.Error().Err(err).Str("kind", string(s.kind)).Int64("id", id).Msg("failed to write record to search mirror")
		return fmt.Errorf("failed to write %s %d to search mirror: %w", s.kind, id, err)
	}
	return nil
}
