package repository

import (
	"context"

	"github.com/facilityhub/facility/pkg/types"
)

// RecordStore is the authoritative persistence layer for one record kind.
// Records returned by Save and the *WithParent finders carry their parent
// resolved; the other finders carry a bare id reference.
type RecordStore[T types.Entity[T]] interface {
	// Save inserts when the record has no id and updates otherwise
	Save(ctx context.Context, record T) (T, error)
	FindByID(ctx context.Context, id int64) (T, error)
	FindOneWithParent(ctx context.Context, id int64) (T, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// DeleteByID does not report missing ids
	DeleteByID(ctx context.Context, id int64) error

	FindAll(ctx context.Context, pageable types.Pageable) (*types.Page[T], error)
	FindAllWithParent(ctx context.Context, pageable types.Pageable) (*types.Page[T], error)
	FindByParentID(ctx context.Context, parentID int64, pageable types.Pageable) (*types.Page[T], error)
}

// Stores bundles the record stores of every kind
type Stores struct {
	Facilities RecordStore[*types.Facility]
	Rooms      RecordStore[*types.Room]
	Residents  RecordStore[*types.Resident]
}

// BackendRepository is the lifecycle surface shared by the store backends
type BackendRepository interface {
	Stores() Stores
	Ping(ctx context.Context) error
	Close() error
}

// SQLBackendRepository is a BackendRepository on a relational database
type SQLBackendRepository interface {
	BackendRepository
	RunMigrations() error
}
