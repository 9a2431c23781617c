package backend_postgres_migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInitial, downInitial)
}

func upInitial(tx *sql.Tx) error {
	createStatements := []string{
		`CREATE TABLE IF NOT EXISTS facility (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			CONSTRAINT ux_facility__name UNIQUE (name)
		);`,

		// Parents cannot be deleted while children reference them
		`CREATE TABLE IF NOT EXISTS room (
			id BIGSERIAL PRIMARY KEY,
			room_number INTEGER NOT NULL,
			facility_id BIGINT NOT NULL,
			CONSTRAINT ck_room__room_number CHECK (room_number <= 10000),
			CONSTRAINT fk_room__facility_id FOREIGN KEY (facility_id) REFERENCES facility(id) ON DELETE RESTRICT
		);`,

		`CREATE TABLE IF NOT EXISTS resident (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			phone_number BIGINT NOT NULL,
			email VARCHAR(255),
			room_id BIGINT NOT NULL,
			CONSTRAINT ux_resident__phone_number UNIQUE (phone_number),
			CONSTRAINT ck_resident__name CHECK (char_length(name) > 0),
			CONSTRAINT ck_resident__phone_number CHECK (phone_number <= 9999999999999),
			CONSTRAINT fk_resident__room_id FOREIGN KEY (room_id) REFERENCES room(id) ON DELETE RESTRICT
		);`,

		// Indexes for parent-scoped listing
		`CREATE INDEX IF NOT EXISTS idx_room_facility_id ON room(facility_id);`,
		`CREATE INDEX IF NOT EXISTS idx_resident_room_id ON resident(room_id);`,
	}

	for _, stmt := range createStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

func downInitial(tx *sql.Tx) error {
	dropStatements := []string{
		"DROP TABLE IF EXISTS resident;",
		"DROP TABLE IF EXISTS room;",
		"DROP TABLE IF EXISTS facility;",
	}

	for _, stmt := range dropStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
