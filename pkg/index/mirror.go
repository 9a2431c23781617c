package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/facilityhub/facility/pkg/types"
)

// Mirror adapts an IndexStore to one typed record kind
type Mirror[T types.Entity[T]] struct {
	store IndexStore
	kind  types.Kind
}

func NewMirror[T types.Entity[T]](store IndexStore, kind types.Kind) *Mirror[T] {
	return &Mirror[T]{store: store, kind: kind}
}

// Save writes the record under its id, replacing any previous copy
func (m *Mirror[T]) Save(ctx context.Context, record T) error {
	doc, err := NewDocument(record)
	if err != nil {
		return err
	}
	return m.store.Upsert(ctx, doc)
}

func (m *Mirror[T]) DeleteByID(ctx context.Context, id int64) error {
	return m.store.Delete(ctx, m.kind, id)
}

// Search decodes matching documents back into records
func (m *Mirror[T]) Search(ctx context.Context, query string, pageable types.Pageable) (*types.Page[T], error) {
	result, err := m.store.Search(ctx, m.kind, query, pageable)
	if err != nil {
		return nil, err
	}

	records := make([]T, 0, len(result.Documents))
	for _, doc := range result.Documents {
		var record T
		if err := json.Unmarshal(doc.Source, &record); err != nil {
			return nil, fmt.Errorf("failed to decode %s %d from index: %w", m.kind, doc.ID, err)
		}
		records = append(records, record)
	}

	return types.NewPage(records, result.Total, pageable), nil
}

// Mirrors bundles the typed mirrors of every kind over one store
type Mirrors struct {
	Facilities *Mirror[*types.Facility]
	Rooms      *Mirror[*types.Room]
	Residents  *Mirror[*types.Resident]
}

func NewMirrors(store IndexStore) Mirrors {
	return Mirrors{
		Facilities: NewMirror[*types.Facility](store, types.KindFacility),
		Rooms:      NewMirror[*types.Room](store, types.KindRoom),
		Residents:  NewMirror[*types.Resident](store, types.KindResident),
	}
}
