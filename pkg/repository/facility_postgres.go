package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/facilityhub/facility/pkg/types"
)

var facilitySortColumns = map[string]string{
	"id":   "id",
	"name": "name",
}

// FacilityPostgresRepository stores facilities in the facility table
type FacilityPostgresRepository struct {
	backend *PostgresBackend
}

func NewFacilityPostgresRepository(backend *PostgresBackend) *FacilityPostgresRepository {
	return &FacilityPostgresRepository{backend: backend}
}

// Save inserts or updates a facility
func (r *FacilityPostgresRepository) Save(ctx context.Context, facility *types.Facility) (*types.Facility, error) {
	saved := facility.BareParent()

	if saved.ID == nil {
		query := `
			INSERT INTO facility (name)
			VALUES ($1)
			RETURNING id
		`

		var id int64
		if err := r.backend.db.QueryRowContext(ctx, query, saved.Name).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to create facility: %w", translateError(types.KindFacility, err))
		}
		saved.SetID(id)
		return saved, nil
	}

	query := `UPDATE facility SET name = $1 WHERE id = $2`

	result, err := r.backend.db.ExecContext(ctx, query, saved.Name, *saved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update facility: %w", translateError(types.KindFacility, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, &types.ErrRecordNotFound{Kind: types.KindFacility, ID: *saved.ID}
	}

	return saved, nil
}

// FindByID retrieves a facility by id
func (r *FacilityPostgresRepository) FindByID(ctx context.Context, id int64) (*types.Facility, error) {
	query := `
		SELECT id, name
		FROM facility
		WHERE id = $1
	`

	facility, err := scanFacility(r.backend.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.ErrRecordNotFound{Kind: types.KindFacility, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}

	return facility, nil
}

// FindOneWithParent is FindByID; facilities have no parent
func (r *FacilityPostgresRepository) FindOneWithParent(ctx context.Context, id int64) (*types.Facility, error) {
	return r.FindByID(ctx, id)
}

func (r *FacilityPostgresRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.backend.exists(ctx, "facility", id)
}

func (r *FacilityPostgresRepository) DeleteByID(ctx context.Context, id int64) error {
	return r.backend.deleteByID(ctx, types.KindFacility, id)
}

// FindAll returns a page of facilities
func (r *FacilityPostgresRepository) FindAll(ctx context.Context, pageable types.Pageable) (*types.Page[*types.Facility], error) {
	order, err := orderBy(types.KindFacility, pageable, facilitySortColumns, "id")
	if err != nil {
		return nil, err
	}

	total, err := r.backend.count(ctx, `SELECT COUNT(*) FROM facility`)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, name
		FROM facility
		%s
		LIMIT $1 OFFSET $2
	`, order)

	rows, err := r.backend.db.QueryContext(ctx, query, pageable.Size, pageable.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	defer rows.Close()

	var facilities []*types.Facility
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		facilities = append(facilities, facility)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facilities: %w", err)
	}

	return types.NewPage(facilities, total, pageable), nil
}

// FindAllWithParent is FindAll; facilities have no parent
func (r *FacilityPostgresRepository) FindAllWithParent(ctx context.Context, pageable types.Pageable) (*types.Page[*types.Facility], error) {
	return r.FindAll(ctx, pageable)
}

func (r *FacilityPostgresRepository) FindByParentID(ctx context.Context, parentID int64, pageable types.Pageable) (*types.Page[*types.Facility], error) {
	return nil, fmt.Errorf("facilities have no parent")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFacility(row rowScanner) (*types.Facility, error) {
	var (
		id   int64
		name string
	)
	if err := row.Scan(&id, &name); err != nil {
		return nil, err
	}
	return &types.Facility{ID: &id, Name: &name}, nil
}
