package repository

import (
	"database/sql"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/facilityhub/facility/pkg/types"
)

// NewPostgresBackendForTest returns a PostgresBackend on a sqlmock connection
func NewPostgresBackendForTest() (*PostgresBackend, sqlmock.Sqlmock, *sql.DB, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, nil, err
	}
	return NewPostgresBackendWithDB(db, types.PostgresConfig{}), mock, db, nil
}

// NewMemoryStoresForTest returns empty in-memory stores for every kind
func NewMemoryStoresForTest() Stores {
	return NewMemoryBackend().Stores()
}
