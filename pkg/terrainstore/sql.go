package terrainstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/simwire/simwire/pkg/terrain"
)

// SQLStore keeps patches in a SQL table. It works with any database/sql
// driver for the supported dialects. Migrate creates the table:
//
//	CREATE TABLE simwire_terrain (
//	    x INTEGER NOT NULL,
//	    y INTEGER NOT NULL,
//	    heights BYTEA NOT NULL,
//	    PRIMARY KEY (x, y)
//	);
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	closed    atomic.Bool
}

// SQLDialect selects placeholder and column type syntax.
type SQLDialect int

const (
	// DialectSQLite uses ? placeholders and BLOB columns.
	DialectSQLite SQLDialect = iota
	// DialectPostgreSQL uses $n placeholders and BYTEA columns.
	DialectPostgreSQL
)

// ParseDialect maps a database/sql driver name to its dialect.
func ParseDialect(driver string) (SQLDialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "pgx":
		return DialectPostgreSQL, nil
	default:
		return 0, fmt.Errorf("terrainstore: unsupported sql driver %q", driver)
	}
}

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*SQLStore)

// WithSQLTableName sets the table name.
// Default: "simwire_terrain".
func WithSQLTableName(name string) SQLStoreOption {
	return func(s *SQLStore) {
		s.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect.
// Default: DialectSQLite.
func WithSQLDialect(dialect SQLDialect) SQLStoreOption {
	return func(s *SQLStore) {
		s.dialect = dialect
	}
}

// NewSQLStore creates a store over db.
func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	s := &SQLStore{
		db:        db,
		tableName: "simwire_terrain",
		dialect:   DialectSQLite,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Migrate creates the patch table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	blob := "BLOB"
	if s.dialect == DialectPostgreSQL {
		blob = "BYTEA"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			heights %s NOT NULL,
			PRIMARY KEY (x, y)
		)`, s.tableName, blob)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// GetPatch returns the patch at (x, y).
func (s *SQLStore) GetPatch(ctx context.Context, x, y int) (terrain.Patch, error) {
	if err := checkCoords(x, y); err != nil {
		return terrain.Patch{}, err
	}
	if s.closed.Load() {
		return terrain.Patch{}, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT heights FROM %s WHERE x = %s AND y = %s`,
		s.tableName, s.placeholder(1), s.placeholder(2))
	var data []byte
	err := s.db.QueryRowContext(ctx, query, x, y).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return terrain.Patch{}, ErrNotFound
	}
	if err != nil {
		return terrain.Patch{}, err
	}
	return decodePatch(data)
}

// SetPatch upserts p at (x, y).
func (s *SQLStore) SetPatch(ctx context.Context, x, y int, p terrain.Patch) error {
	if err := checkCoords(x, y); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	data, err := encodePatch(x, y, &p)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (x, y, heights) VALUES (%s, %s, %s)
		ON CONFLICT (x, y) DO UPDATE SET heights = excluded.heights`,
		s.tableName, s.placeholder(1), s.placeholder(2), s.placeholder(3))
	_, err = s.db.ExecContext(ctx, query, x, y, data)
	return err
}

// Close marks the store closed. The caller owns db.
func (s *SQLStore) Close() error {
	s.closed.Store(true)
	return nil
}
