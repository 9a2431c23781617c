package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/facilityhub/facility/pkg/types"
)

var roomSortColumns = map[string]string{
	"id":          "r.id",
	"room_number": "r.room_number",
}

const (
	roomBareColumns  = `r.id, r.room_number, r.facility_id`
	roomEagerColumns = `r.id, r.room_number, f.id, f.name`
	roomEagerFrom    = `room r JOIN facility f ON f.id = r.facility_id`
)

// RoomPostgresRepository stores rooms in the room table
type RoomPostgresRepository struct {
	backend *PostgresBackend
}

func NewRoomPostgresRepository(backend *PostgresBackend) *RoomPostgresRepository {
	return &RoomPostgresRepository{backend: backend}
}

// Save inserts or updates a room and returns it with its facility resolved.
// The write and the reload share one transaction.
func (r *RoomPostgresRepository) Save(ctx context.Context, room *types.Room) (*types.Room, error) {
	var saved *types.Room

	err := r.backend.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		if room.ID == nil {
			query := `
				INSERT INTO room (room_number, facility_id)
				VALUES ($1, $2)
				RETURNING id
			`
			if err := tx.QueryRowContext(ctx, query, room.RoomNumber, room.ParentID()).Scan(&id); err != nil {
				return fmt.Errorf("failed to create room: %w", translateError(types.KindRoom, err))
			}
		} else {
			id = *room.ID
			query := `UPDATE room SET room_number = $1, facility_id = $2 WHERE id = $3`

			result, err := tx.ExecContext(ctx, query, room.RoomNumber, room.ParentID(), id)
			if err != nil {
				return fmt.Errorf("failed to update room: %w", translateError(types.KindRoom, err))
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				return &types.ErrRecordNotFound{Kind: types.KindRoom, ID: id}
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

// FindByID retrieves a room with a bare facility reference
func (r *RoomPostgresRepository) FindByID(ctx context.Context, id int64) (*types.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM room r WHERE r.id = $1`, roomBareColumns)

	room, err := scanRoom(r.backend.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.ErrRecordNotFound{Kind: types.KindRoom, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

// FindOneWithParent retrieves a room joined with its facility
func (r *RoomPostgresRepository) FindOneWithParent(ctx context.Context, id int64) (*types.Room, error) {
	return r.findOneWithParent(ctx, r.backend.db, id)
}

func (r *RoomPostgresRepository) findOneWithParent(ctx context.Context, q queryer, id int64) (*types.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE r.id = $1`, roomEagerColumns, roomEagerFrom)

	room, err := scanRoomWithFacility(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.ErrRecordNotFound{Kind: types.KindRoom, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

func (r *RoomPostgresRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.backend.exists(ctx, "room", id)
}

func (r *RoomPostgresRepository) DeleteByID(ctx context.Context, id int64) error {
	return r.backend.deleteByID(ctx, types.KindRoom, id)
}

// FindAll returns a page of rooms with bare facility references
func (r *RoomPostgresRepository) FindAll(ctx context.Context, pageable types.Pageable) (*types.Page[*types.Room], error) {
	return r.list(ctx, pageable, false, "", nil)
}

// FindAllWithParent returns a page of rooms joined with their facilities
func (r *RoomPostgresRepository) FindAllWithParent(ctx context.Context, pageable types.Pageable) (*types.Page[*types.Room], error) {
	return r.list(ctx, pageable, true, "", nil)
}

// FindByParentID returns the rooms of one facility
func (r *RoomPostgresRepository) FindByParentID(ctx context.Context, facilityID int64, pageable types.Pageable) (*types.Page[*types.Room], error) {
	return r.list(ctx, pageable, true, "WHERE r.facility_id = $1", []any{facilityID})
}

func (r *RoomPostgresRepository) list(ctx context.Context, pageable types.Pageable, eager bool, where string, args []any) (*types.Page[*types.Room], error) {
	order, err := orderBy(types.KindRoom, pageable, roomSortColumns, "r.id")
	if err != nil {
		return nil, err
	}

	total, err := r.backend.count(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM room r %s`, where), args...)
	if err != nil {
		return nil, err
	}

	columns, from, scan := roomBareColumns, "room r", scanRoom
	if eager {
		columns, from, scan = roomEagerColumns, roomEagerFrom, scanRoomWithFacility
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM %s %s %s LIMIT $%d OFFSET $%d`, columns, from, where, order, n+1, n+2)
	args = append(args, pageable.Size, pageable.Offset())

	rows, err := r.backend.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*types.Room
	for rows.Next() {
		room, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}

	return types.NewPage(rooms, total, pageable), nil
}

func scanRoom(row rowScanner) (*types.Room, error) {
	var id, facilityID int64
	var roomNumber int
	if err := row.Scan(&id, &roomNumber, &facilityID); err != nil {
		return nil, err
	}
	return &types.Room{
		ID:         &id,
		RoomNumber: &roomNumber,
		Facility:   &types.Facility{ID: &facilityID},
	}, nil
}

func scanRoomWithFacility(row rowScanner) (*types.Room, error) {
	var id, facilityID int64
	var roomNumber int
	var facilityName string
	if err := row.Scan(&id, &roomNumber, &facilityID, &facilityName); err != nil {
		return nil, err
	}
	return &types.Room{
		ID:         &id,
		RoomNumber: &roomNumber,
		Facility:   &types.Facility{ID: &facilityID, Name: &facilityName},
	}, nil
}
