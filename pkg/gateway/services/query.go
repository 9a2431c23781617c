package services

import (
	"context"

	"github.com/facilityhub/facility/pkg/repository"
	"github.com/facilityhub/facility/pkg/types"
)

// QueryGateway serves reads. Lookups go to the record store, free-text
// search goes to the mirror only.
type QueryGateway[T types.Entity[T]] struct {
	kind    types.Kind
	store   repository.RecordStore[T]
	mirror  SearchMirror[T]
	metrics *Metrics
}

func NewQueryGateway[T types.Entity[T]](kind types.Kind, store repository.RecordStore[T], mirror SearchMirror[T], metrics *Metrics) *QueryGateway[T] {
	return &QueryGateway[T]{
		kind:    kind,
		store:   store,
		mirror:  mirror,
		metrics: metrics,
	}
}

// List returns one page of records. With eager set each record embeds its
// parent, otherwise the parent is a bare id reference.
func (q *QueryGateway[T]) List(ctx context.Context, pageable types.Pageable, eager bool) (*types.Page[T], error) {
	pageable, err := q.pageable(pageable)
	if err != nil {
		return nil, err
	}

	var page *types.Page[T]
	if eager {
		page, err = q.store.FindAllWithParent(ctx, pageable)
	} else {
		page, err = q.store.FindAll(ctx, pageable)
	}
	q.metrics.observeStore(q.kind, "list", err)
	return page, err
}

func (q *QueryGateway[T]) Get(ctx context.Context, id int64) (T, error) {
	record, err := q.store.FindOneWithParent(ctx, id)
	q.metrics.observeStore(q.kind, "get", err)
	return record, err
}

// ListByParent pages through the children of parentID. An unknown parent
// gives an empty page.
func (q *QueryGateway[T]) ListByParent(ctx context.Context, parentID int64, pageable types.Pageable) (*types.Page[T], error) {
	pageable, err := q.pageable(pageable)
	if err != nil {
		return nil, err
	}

	page, err := q.store.FindByParentID(ctx, parentID, pageable)
	q.metrics.observeStore(q.kind, "list_by_parent", err)
	return page, err
}

// Search runs a free-text query against the mirror. No match gives an empty
// page.
func (q *QueryGateway[T]) Search(ctx context.Context, query string, pageable types.Pageable) (*types.Page[T], error) {
	pageable, err := q.pageable(pageable)
	if err != nil {
		return nil, err
	}

	page, err := q.mirror.Search(ctx, query, pageable)
	q.metrics.observeMirror(q.kind, "search", err)
	return page, err
}

func (q *QueryGateway[T]) pageable(pageable types.Pageable) (types.Pageable, error) {
	pageable = pageable.Normalize()
	if err := pageable.Validate(q.kind); err != nil {
		return pageable, err
	}
	return pageable, nil
}
