package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facilityhub/facility/pkg/types"
)

func setupMockBackend(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresBackend) {
	backend, mock, db, err := NewPostgresBackendForTest()
	require.NoError(t, err)
	return db, mock, backend
}

func TestFacilityPostgres_Create(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO facility`).
		WithArgs("AAAAAAAAAA").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	repo := NewFacilityPostgresRepository(backend)
	facility, err := repo.Save(context.Background(), &types.Facility{Name: types.String("AAAAAAAAAA")})

	require.NoError(t, err)
	assert.Equal(t, int64(1), *facility.ID)
	assert.Equal(t, "AAAAAAAAAA", *facility.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityPostgres_CreateDuplicateName(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO facility`).
		WithArgs("AAAAAAAAAA").
		WillReturnError(&pq.Error{Code: "23505", Table: "facility", Constraint: "ux_facility__name"})

	repo := NewFacilityPostgresRepository(backend)
	_, err := repo.Save(context.Background(), &types.Facility{Name: types.String("AAAAAAAAAA")})

	var constraintErr *types.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, types.ConstraintUnique, constraintErr.Reason)
	assert.Equal(t, "ux_facility__name", constraintErr.Constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityPostgres_UpdateMissing(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE facility SET name`).
		WithArgs("BBBBBBBBBB", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewFacilityPostgresRepository(backend)
	_, err := repo.Save(context.Background(), &types.Facility{ID: types.Int64(5), Name: types.String("BBBBBBBBBB")})

	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityPostgres_FindByIDMissing(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, name`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	repo := NewFacilityPostgresRepository(backend)
	_, err := repo.FindByID(context.Background(), 9)

	var notFound *types.ErrRecordNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, types.KindFacility, notFound.Kind)
	assert.Equal(t, int64(9), notFound.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityPostgres_FindAllSorted(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM facility`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY name DESC, id ASC`)).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(2, "BBBBBBBBBB").
			AddRow(1, "AAAAAAAAAA"))

	repo := NewFacilityPostgresRepository(backend)
	page, err := repo.FindAll(context.Background(), types.Pageable{
		Size: 20,
		Sort: []types.SortOrder{{Field: "name", Direction: types.SortDesc}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "BBBBBBBBBB", *page.Content[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityPostgres_FindAllRejectsUnknownSort(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	repo := NewFacilityPostgresRepository(backend)
	_, err := repo.FindAll(context.Background(), types.Pageable{
		Size: 20,
		Sort: []types.SortOrder{{Field: "name; DROP TABLE facility", Direction: types.SortAsc}},
	})

	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, types.ErrKeySortInvalid, validationErr.Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityPostgres_DeleteWithDependents(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM facility WHERE id`).
		WithArgs(int64(1)).
		WillReturnError(&pq.Error{Code: "23503", Table: "room", Constraint: "fk_room__facility_id"})

	repo := NewFacilityPostgresRepository(backend)
	err := repo.DeleteByID(context.Background(), 1)

	var constraintErr *types.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, types.ConstraintDependents, constraintErr.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityPostgres_DeleteMissingIsNotAnError(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM facility WHERE id`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewFacilityPostgresRepository(backend)
	assert.NoError(t, repo.DeleteByID(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomPostgres_CreateReloadsWithFacility(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO room`).
		WithArgs(10000, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM room r JOIN facility f ON f.id = r.facility_id WHERE r.id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_number", "id", "name"}).
			AddRow(1, 10000, 1, "AAAAAAAAAA"))
	mock.ExpectCommit()

	repo := NewRoomPostgresRepository(backend)
	room, err := repo.Save(context.Background(), &types.Room{
		RoomNumber: types.Int(10000),
		Facility:   &types.Facility{ID: types.Int64(1)},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), *room.ID)
	assert.Equal(t, 10000, *room.RoomNumber)
	assert.Equal(t, "AAAAAAAAAA", *room.Facility.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomPostgres_CreateMissingFacility(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO room`).
		WithArgs(1, int64(42)).
		WillReturnError(&pq.Error{Code: "23503", Table: "room", Constraint: "fk_room__facility_id"})
	mock.ExpectRollback()

	repo := NewRoomPostgresRepository(backend)
	_, err := repo.Save(context.Background(), &types.Room{
		RoomNumber: types.Int(1),
		Facility:   &types.Facility{ID: types.Int64(42)},
	})

	var constraintErr *types.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, types.ConstraintParent, constraintErr.Reason)
	assert.Equal(t, types.ErrKeyParentNotFound, constraintErr.Key())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomPostgres_UpdateMissingRollsBack(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE room SET room_number`).
		WithArgs(5, int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewRoomPostgresRepository(backend)
	_, err := repo.Save(context.Background(), &types.Room{
		ID:         types.Int64(3),
		RoomNumber: types.Int(5),
		Facility:   &types.Facility{ID: types.Int64(1)},
	})

	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomPostgres_FindAllBare(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM room r`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT r.id, r.room_number, r.facility_id FROM room r`)).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_number", "facility_id"}).AddRow(1, 10000, 1))

	repo := NewRoomPostgresRepository(backend)
	page, err := repo.FindAll(context.Background(), types.DefaultPageable())

	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, int64(1), *page.Content[0].Facility.ID)
	assert.Nil(t, page.Content[0].Facility.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResidentPostgres_FindByParentID(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM resident p WHERE p.room_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM resident p JOIN room r ON r.id = p.room_id WHERE p.room_id = $1 ORDER BY p.id ASC LIMIT $2 OFFSET $3`)).
		WithArgs(int64(1), 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone_number", "email", "id", "room_number"}).
			AddRow(1, "AAAAAAAAAA", int64(9999999999999), nil, 1, 10000))

	repo := NewResidentPostgresRepository(backend)
	page, err := repo.FindByParentID(context.Background(), 1, types.DefaultPageable())

	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Content, 1)

	resident := page.Content[0]
	assert.Equal(t, "AAAAAAAAAA", *resident.Name)
	assert.Equal(t, types.MaxPhoneNumber, *resident.PhoneNumber)
	assert.Nil(t, resident.Email)
	assert.Equal(t, 10000, *resident.Room.RoomNumber)
	assert.Nil(t, resident.Room.Facility)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResidentPostgres_CreateDuplicatePhone(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO resident`).
		WithArgs("AAAAAAAAAA", types.MaxPhoneNumber, nil, int64(1)).
		WillReturnError(&pq.Error{Code: "23505", Table: "resident", Constraint: "ux_resident__phone_number"})
	mock.ExpectRollback()

	repo := NewResidentPostgresRepository(backend)
	_, err := repo.Save(context.Background(), &types.Resident{
		Name:        types.String("AAAAAAAAAA"),
		PhoneNumber: types.Int64(types.MaxPhoneNumber),
		Room:        &types.Room{ID: types.Int64(1)},
	})

	var constraintErr *types.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, types.ConstraintUnique, constraintErr.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResidentPostgres_NameTooLongIsCheckViolation(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO resident`).
		WithArgs("AAAAAAAAAA", int64(5551234), nil, int64(1)).
		WillReturnError(&pq.Error{Code: "22001", Table: "resident"})
	mock.ExpectRollback()

	repo := NewResidentPostgresRepository(backend)
	_, err := repo.Save(context.Background(), &types.Resident{
		Name:        types.String("AAAAAAAAAA"),
		PhoneNumber: types.Int64(5551234),
		Room:        &types.Room{ID: types.Int64(1)},
	})

	var constraintErr *types.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, types.ConstraintCheck, constraintErr.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResidentPostgres_ExistsByID(t *testing.T) {
	db, mock, backend := setupMockBackend(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM resident WHERE id = $1)`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewResidentPostgresRepository(backend)
	exists, err := repo.ExistsByID(context.Background(), 3)

	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
