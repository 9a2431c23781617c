package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/facilityhub/facility/pkg/types"
)

type memoryTable struct {
	nextID int64
	rows   map[int64]types.Record
}

// MemoryBackend keeps every record kind in process memory. It enforces the
// same uniqueness, parent-existence and restrict-on-delete rules as the
// Postgres schema.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[types.Kind]*memoryTable
}

func NewMemoryBackend() *MemoryBackend {
	tables := make(map[types.Kind]*memoryTable, len(types.Kinds))
	for _, kind := range types.Kinds {
		tables[kind] = &memoryTable{rows: make(map[int64]types.Record)}
	}
	return &MemoryBackend{tables: tables}
}

func (b *MemoryBackend) Stores() Stores {
	return Stores{
		Facilities: NewFacilityMemoryRepository(b),
		Rooms:      NewRoomMemoryRepository(b),
		Residents:  NewResidentMemoryRepository(b),
	}
}

func (b *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// memorySchema describes the per-kind rules of a MemoryRecordStore
type memorySchema[T types.Entity[T]] struct {
	kind types.Kind

	// uniqueKey returns the value that must be unique across the kind, if any
	uniqueKey func(T) (any, bool)

	// resolve embeds the parent looked up from the backend; called under lock
	resolve func(b *MemoryBackend, record T) T

	// field returns the sortable value of a field
	field func(record T, name string) any
}

// MemoryRecordStore is a RecordStore for one kind on a MemoryBackend
type MemoryRecordStore[T types.Entity[T]] struct {
	backend *MemoryBackend
	schema  memorySchema[T]
}

func NewFacilityMemoryRepository(b *MemoryBackend) *MemoryRecordStore[*types.Facility] {
	return &MemoryRecordStore[*types.Facility]{backend: b, schema: memorySchema[*types.Facility]{
		kind: types.KindFacility,
		uniqueKey: func(f *types.Facility) (any, bool) {
			if f.Name == nil {
				return nil, false
			}
			return *f.Name, true
		},
		resolve: func(_ *MemoryBackend, f *types.Facility) *types.Facility {
			return f.BareParent()
		},
		field: func(f *types.Facility, name string) any {
			switch name {
			case "id":
				return deref(f.ID)
			case "name":
				return deref(f.Name)
			}
			return nil
		},
	}}
}

func NewRoomMemoryRepository(b *MemoryBackend) *MemoryRecordStore[*types.Room] {
	return &MemoryRecordStore[*types.Room]{backend: b, schema: memorySchema[*types.Room]{
		kind: types.KindRoom,
		resolve: func(b *MemoryBackend, r *types.Room) *types.Room {
			c := r.BareParent()
			if row, ok := b.row(types.KindFacility, r.ParentID()); ok {
				c.Facility = row.(*types.Facility).BareParent()
			}
			return c
		},
		field: func(r *types.Room, name string) any {
			switch name {
			case "id":
				return deref(r.ID)
			case "room_number":
				return int64(deref(r.RoomNumber))
			}
			return nil
		},
	}}
}

func NewResidentMemoryRepository(b *MemoryBackend) *MemoryRecordStore[*types.Resident] {
	return &MemoryRecordStore[*types.Resident]{backend: b, schema: memorySchema[*types.Resident]{
		kind: types.KindResident,
		uniqueKey: func(r *types.Resident) (any, bool) {
			if r.PhoneNumber == nil {
				return nil, false
			}
			return *r.PhoneNumber, true
		},
		resolve: func(b *MemoryBackend, r *types.Resident) *types.Resident {
			c := r.BareParent()
			if row, ok := b.row(types.KindRoom, r.ParentID()); ok {
				c.Room = row.(*types.Room).Embedded()
			}
			return c
		},
		field: func(r *types.Resident, name string) any {
			switch name {
			case "id":
				return deref(r.ID)
			case "name":
				return deref(r.Name)
			case "phone_number":
				return deref(r.PhoneNumber)
			case "email":
				return deref(r.Email)
			}
			return nil
		},
	}}
}

func (s *MemoryRecordStore[T]) Save(ctx context.Context, record T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	table := s.backend.tables[s.schema.kind]
	stored := record.BareParent()

	if parent := stored.ParentKind(); parent != "" {
		if _, ok := s.backend.row(parent, stored.ParentID()); !ok {
			return zero, &types.ConstraintError{
				Kind:       s.schema.kind,
				Constraint: fmt.Sprintf("fk_%s__%s_id", s.schema.kind, parent),
				Reason:     types.ConstraintParent,
			}
		}
	}

	var id int64
	if stored.GetID() != nil {
		id = *stored.GetID()
		if _, ok := table.rows[id]; !ok {
			return zero, &types.ErrRecordNotFound{Kind: s.schema.kind, ID: id}
		}
	}

	if s.schema.uniqueKey != nil {
		if key, ok := s.schema.uniqueKey(stored); ok {
			for otherID, row := range table.rows {
				other, _ := s.schema.uniqueKey(row.(T))
				if otherID != id && other == key {
					return zero, &types.ConstraintError{
						Kind:       s.schema.kind,
						Constraint: fmt.Sprintf("ux_%s", s.schema.kind),
						Reason:     types.ConstraintUnique,
					}
				}
			}
		}
	}

	if stored.GetID() == nil {
		table.nextID++
		id = table.nextID
		stored.SetID(id)
	}
	table.rows[id] = stored

	return s.schema.resolve(s.backend, stored), nil
}

func (s *MemoryRecordStore[T]) FindByID(ctx context.Context, id int64) (T, error) {
	return s.find(ctx, id, false)
}

func (s *MemoryRecordStore[T]) FindOneWithParent(ctx context.Context, id int64) (T, error) {
	return s.find(ctx, id, true)
}

func (s *MemoryRecordStore[T]) find(ctx context.Context, id int64, eager bool) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	row, ok := s.backend.row(s.schema.kind, &id)
	if !ok {
		return zero, &types.ErrRecordNotFound{Kind: s.schema.kind, ID: id}
	}
	if eager {
		return s.schema.resolve(s.backend, row.(T)), nil
	}
	return row.(T).BareParent(), nil
}

func (s *MemoryRecordStore[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	_, ok := s.backend.row(s.schema.kind, &id)
	return ok, nil
}

func (s *MemoryRecordStore[T]) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	for _, kind := range types.Kinds {
		for _, row := range s.backend.tables[kind].rows {
			if row.ParentKind() == s.schema.kind && row.ParentID() != nil && *row.ParentID() == id {
				return &types.ConstraintError{
					Kind:       s.schema.kind,
					Constraint: fmt.Sprintf("fk_%s__%s_id", kind, s.schema.kind),
					Reason:     types.ConstraintDependents,
				}
			}
		}
	}

	delete(s.backend.tables[s.schema.kind].rows, id)
	return nil
}

func (s *MemoryRecordStore[T]) FindAll(ctx context.Context, pageable types.Pageable) (*types.Page[T], error) {
	return s.list(ctx, pageable, false, nil)
}

func (s *MemoryRecordStore[T]) FindAllWithParent(ctx context.Context, pageable types.Pageable) (*types.Page[T], error) {
	return s.list(ctx, pageable, true, nil)
}

func (s *MemoryRecordStore[T]) FindByParentID(ctx context.Context, parentID int64, pageable types.Pageable) (*types.Page[T], error) {
	return s.list(ctx, pageable, true, func(record T) bool {
		pid := record.ParentID()
		return pid != nil && *pid == parentID
	})
}

func (s *MemoryRecordStore[T]) list(ctx context.Context, pageable types.Pageable, eager bool, filter func(T) bool) (*types.Page[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := pageable.Validate(s.schema.kind); err != nil {
		return nil, err
	}

	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	var matched []T
	for _, row := range s.backend.tables[s.schema.kind].rows {
		record := row.(T)
		if filter != nil && !filter(record) {
			continue
		}
		matched = append(matched, record)
	}

	sorts := append(slices.Clone(pageable.Sort), types.SortOrder{Field: "id", Direction: types.SortAsc})
	slices.SortFunc(matched, func(a, b T) int {
		for _, o := range sorts {
			c := compareValues(s.schema.field(a, o.Field), s.schema.field(b, o.Field))
			if o.Direction == types.SortDesc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	total := int64(len(matched))
	start := pageable.Offset()
	if start < 0 || start > len(matched) {
		start = len(matched)
	}
	end := min(start+pageable.Size, len(matched))

	content := make([]T, 0, end-start)
	for _, record := range matched[start:end] {
		if eager {
			content = append(content, s.schema.resolve(s.backend, record))
		} else {
			content = append(content, record.BareParent())
		}
	}

	return types.NewPage(content, total, pageable), nil
}

// row looks up a stored record; callers hold the lock
func (b *MemoryBackend) row(kind types.Kind, id *int64) (types.Record, bool) {
	if id == nil {
		return nil, false
	}
	table, ok := b.tables[kind]
	if !ok {
		return nil, false
	}
	row, ok := table.rows[*id]
	return row, ok
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv, _ := b.(int64)
		return cmp.Compare(av, bv)
	case string:
		bv, _ := b.(string)
		return cmp.Compare(av, bv)
	}
	return 0
}

func deref[V any](v *V) V {
	var zero V
	if v == nil {
		return zero
	}
	return *v
}
