package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/facilityhub/facility/pkg/types"
)

var residentSortColumns = map[string]string{
	"id":           "p.id",
	"name":         "p.name",
	"phone_number": "p.phone_number",
	"email":        "p.email",
}

const (
	residentBareColumns  = `p.id, p.name, p.phone_number, p.email, p.room_id`
	residentEagerColumns = `p.id, p.name, p.phone_number, p.email, r.id, r.room_number`
	residentEagerFrom    = `resident p JOIN room r ON r.id = p.room_id`
)

// ResidentPostgresRepository stores residents in the resident table. An
// eagerly loaded resident embeds its room but not the room's facility.
type ResidentPostgresRepository struct {
	backend *PostgresBackend
}

func NewResidentPostgresRepository(backend *PostgresBackend) *ResidentPostgresRepository {
	return &ResidentPostgresRepository{backend: backend}
}

// Save inserts or updates a resident and returns it with its room resolved
func (r *ResidentPostgresRepository) Save(ctx context.Context, resident *types.Resident) (*types.Resident, error) {
	var saved *types.Resident

	err := r.backend.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		if resident.ID == nil {
			query := `
				INSERT INTO resident (name, phone_number, email, room_id)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`
			err := tx.QueryRowContext(ctx, query, resident.Name, resident.PhoneNumber, resident.Email, resident.ParentID()).Scan(&id)
			if err != nil {
				return fmt.Errorf("failed to create resident: %w", translateError(types.KindResident, err))
			}
		} else {
			id = *resident.ID
			query := `
				UPDATE resident
				SET name = $1, phone_number = $2, email = $3, room_id = $4
				WHERE id = $5
			`

			result, err := tx.ExecContext(ctx, query, resident.Name, resident.PhoneNumber, resident.Email, resident.ParentID(), id)
			if err != nil {
				return fmt.Errorf("failed to update resident: %w", translateError(types.KindResident, err))
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				return &types.ErrRecordNotFound{Kind: types.KindResident, ID: id}
			}
		}

		var err error
		saved, err = r.findOneWithParent(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// FindByID retrieves a resident with a bare room reference
func (r *ResidentPostgresRepository) FindByID(ctx context.Context, id int64) (*types.Resident, error) {
	query := fmt.Sprintf(`SELECT %s FROM resident p WHERE p.id = $1`, residentBareColumns)

	resident, err := scanResident(r.backend.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.ErrRecordNotFound{Kind: types.KindResident, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resident: %w", err)
	}

	return resident, nil
}

// FindOneWithParent retrieves a resident joined with its room
func (r *ResidentPostgresRepository) FindOneWithParent(ctx context.Context, id int64) (*types.Resident, error) {
	return r.findOneWithParent(ctx, r.backend.db, id)
}

func (r *ResidentPostgresRepository) findOneWithParent(ctx context.Context, q queryer, id int64) (*types.Resident, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE p.id = $1`, residentEagerColumns, residentEagerFrom)

	resident, err := scanResidentWithRoom(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.ErrRecordNotFound{Kind: types.KindResident, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resident: %w", err)
	}

	return resident, nil
}

func (r *ResidentPostgresRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.backend.exists(ctx, "resident", id)
}

func (r *ResidentPostgresRepository) DeleteByID(ctx context.Context, id int64) error {
	return r.backend.deleteByID(ctx, types.KindResident, id)
}

func (r *ResidentPostgresRepository) FindAll(ctx context.Context, pageable types.Pageable) (*types.Page[*types.Resident], error) {
	return r.list(ctx, pageable, false, "", nil)
}

func (r *ResidentPostgresRepository) FindAllWithParent(ctx context.Context, pageable types.Pageable) (*types.Page[*types.Resident], error) {
	return r.list(ctx, pageable, true, "", nil)
}

// FindByParentID returns the residents of one room
func (r *ResidentPostgresRepository) FindByParentID(ctx context.Context, roomID int64, pageable types.Pageable) (*types.Page[*types.Resident], error) {
	return r.list(ctx, pageable, true, "WHERE p.room_id = $1", []any{roomID})
}

func (r *ResidentPostgresRepository) list(ctx context.Context, pageable types.Pageable, eager bool, where string, args []any) (*types.Page[*types.Resident], error) {
	order, err := orderBy(types.KindResident, pageable, residentSortColumns, "p.id")
	if err != nil {
		return nil, err
	}

	total, err := r.backend.count(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM resident p %s`, where), args...)
	if err != nil {
		return nil, err
	}

	columns, from, scan := residentBareColumns, "resident p", scanResident
	if eager {
		columns, from, scan = residentEagerColumns, residentEagerFrom, scanResidentWithRoom
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM %s %s %s LIMIT $%d OFFSET $%d`, columns, from, where, order, n+1, n+2)
	args = append(args, pageable.Size, pageable.Offset())

	rows, err := r.backend.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list residents: %w", err)
	}
	defer rows.Close()

	var residents []*types.Resident
	for rows.Next() {
		resident, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resident: %w", err)
		}
		residents = append(residents, resident)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating residents: %w", err)
	}

	return types.NewPage(residents, total, pageable), nil
}

func scanResident(row rowScanner) (*types.Resident, error) {
	var (
		id, phone, roomID int64
		name              string
		email             sql.NullString
	)
	if err := row.Scan(&id, &name, &phone, &email, &roomID); err != nil {
		return nil, err
	}

	resident := &types.Resident{
		ID:          &id,
		Name:        &name,
		PhoneNumber: &phone,
		Room:        &types.Room{ID: &roomID},
	}
	if email.Valid {
		resident.Email = &email.String
	}
	return resident, nil
}

func scanResidentWithRoom(row rowScanner) (*types.Resident, error) {
	var (
		id, phone, roomID int64
		name              string
		email             sql.NullString
		roomNumber        int
	)
	if err := row.Scan(&id, &name, &phone, &email, &roomID, &roomNumber); err != nil {
		return nil, err
	}

	resident := &types.Resident{
		ID:          &id,
		Name:        &name,
		PhoneNumber: &phone,
		Room:        &types.Room{ID: &roomID, RoomNumber: &roomNumber},
	}
	if email.Valid {
		resident.Email = &email.String
	}
	return resident, nil
}
