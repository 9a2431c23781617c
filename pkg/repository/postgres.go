package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/facilityhub/facility/pkg/types"

	// Import migrations to register them with goose
	_ "github.com/facilityhub/facility/pkg/repository/backend_postgres_migrations"
)

// PostgresBackend implements SQLBackendRepository using Postgres
type PostgresBackend struct {
	db     *sql.DB
	config types.PostgresConfig
}

// NewPostgresBackend creates a new Postgres backend
func NewPostgresBackend(cfg types.PostgresConfig) (*PostgresBackend, error) {
	// Apply defaults
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.Database == "" {
		cfg.Database = "facility"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to postgres")

	return NewPostgresBackendWithDB(db, cfg), nil
}

// NewPostgresBackendWithDB wraps an already opened connection pool
func NewPostgresBackendWithDB(db *sql.DB, cfg types.PostgresConfig) *PostgresBackend {
	return &PostgresBackend{
		db:     db,
		config: cfg,
	}
}

// Close closes the database connection
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

// Ping checks the database connection
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Stores returns the per-kind repositories sharing this connection pool
func (b *PostgresBackend) Stores() Stores {
	return Stores{
		Facilities: NewFacilityPostgresRepository(b),
		Rooms:      NewRoomPostgresRepository(b),
		Residents:  NewResidentPostgresRepository(b),
	}
}

// RunMigrations runs database migrations using goose
func (b *PostgresBackend) RunMigrations() error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	// Run migrations (goose uses registered migrations from init())
	if err := goose.Up(b.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(b.db)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Info().Int64("version", version).Msg("migrations complete")
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn inside a transaction, rolling back when it fails
func (b *PostgresBackend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn().Err(rbErr).Msg("failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *PostgresBackend) exists(ctx context.Context, table string, id int64) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := b.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	return exists, nil
}

func (b *PostgresBackend) deleteByID(ctx context.Context, kind types.Kind, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, kind)
	if _, err := b.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, translateError(kind, err))
	}
	return nil
}

func (b *PostgresBackend) count(ctx context.Context, query string, args ...any) (int64, error) {
	var total int64
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return total, nil
}

// orderBy renders an ORDER BY clause from whitelisted sort fields. columns maps
// api field names to qualified column names; ties are broken by id.
func orderBy(kind types.Kind, pageable types.Pageable, columns map[string]string, idColumn string) (string, error) {
	if err := pageable.Validate(kind); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(pageable.Sort)+1)
	sortedByID := false
	for _, o := range pageable.Sort {
		col, ok := columns[o.Field]
		if !ok {
			return "", types.NewValidationError(kind, types.ErrKeySortInvalid, fmt.Sprintf("cannot sort by %q", o.Field))
		}
		dir := "ASC"
		if o.Direction == types.SortDesc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
		if col == idColumn {
			sortedByID = true
		}
	}
	if !sortedByID {
		parts = append(parts, idColumn+" ASC")
	}

	return "ORDER BY " + strings.Join(parts, ", "), nil
}

// translateError maps Postgres integrity violations onto ConstraintError.
// A foreign key violation raised on the record's own table means the parent
// is missing; one raised on another table means dependents still exist.
func translateError(kind types.Kind, err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	var reason types.ConstraintReason
	switch pqErr.Code {
	case "23505": // unique_violation
		reason = types.ConstraintUnique
	case "23503": // foreign_key_violation
		reason = types.ConstraintParent
		if pqErr.Table != "" && pqErr.Table != string(kind) {
			reason = types.ConstraintDependents
		}
	case "23514", "23502", "22001", "22003": // check, not_null, string too long, numeric out of range
		reason = types.ConstraintCheck
	default:
		return err
	}

	return &types.ConstraintError{
		Kind:       kind,
		Constraint: pqErr.Constraint,
		Reason:     reason,
		Err:        err,
	}
}
