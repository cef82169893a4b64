package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"draftmark/internal/database/migrations"
	"draftmark/internal/review"
)

// SQLDatabase implements review.Database on database/sql for both SQLite
// and PostgreSQL. Queries are written with ? placeholders and rebound for
// PostgreSQL.
type SQLDatabase struct {
	db      *sql.DB
	dialect string
	path    string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLDatabase{db: db, dialect: migrations.SQLite, path: path}, nil
}

// NewPostgresDatabase connects to PostgreSQL at url.
func NewPostgresDatabase(ctx context.Context, url string) (*SQLDatabase, error) {
	db, err := OpenPostgres(ctx, url)
	if err != nil {
		return nil, err
	}
	return &SQLDatabase{db: db, dialect: migrations.Postgres}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing SQLite connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLDatabase {
	return &SQLDatabase{db: db, dialect: migrations.SQLite}
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer. A single connection serializes transactions
	// and keeps ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// sqliteDSN adds the connection options every pooled connection needs.
// _txlock=immediate takes the write lock at BEGIN, so transactions from
// separate processes queue on _busy_timeout instead of failing on upgrade.
func sqliteDSN(path string) string {
	return path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
}

// OpenPostgres opens a pooled PostgreSQL connection through the pgx driver.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Update runs fn inside a read-write transaction.
func (s *SQLDatabase) Update(ctx context.Context, fn func(tx review.Tx) error) error {
	return s.run(ctx, nil, fn)
}

// View runs fn inside a read-only transaction.
func (s *SQLDatabase) View(ctx context.Context, fn func(tx review.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *SQLDatabase) run(ctx context.Context, opts *sql.TxOptions, fn func(tx review.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Operation tracking

func (s *SQLDatabase) CreateOperation(ctx context.Context, operation, parameters string, startedAt time.Time) (*review.Operation, error) {
	op := &review.Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  startedAt,
	}
	query := rebind(s.dialect, `INSERT INTO operations (operation, parameters, status, started_at)
		VALUES (?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRowContext(ctx, query, operation, parameters, op.Status, startedAt).Scan(&op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return op, nil
}

func (s *SQLDatabase) FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	query := rebind(s.dialect, `UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, status, finishedAt, id); err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLDatabase) ListOperations(ctx context.Context, limit int) ([]*review.Operation, error) {
	query := rebind(s.dialect, `SELECT id, operation, parameters, status, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*review.Operation
	for rows.Next() {
		var (
			op       review.Operation
			finished sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// MigrateUp brings the schema to the latest version.
func (s *SQLDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db, s.dialect)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db, s.dialect)
}

// Path returns the database file path (or ":memory:" for in-memory databases).
// It is empty for PostgreSQL.
func (s *SQLDatabase) Path() string {
	return s.path
}

// Dialect returns "sqlite" or "postgres".
func (s *SQLDatabase) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *SQLDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
// Queries in this package never contain a literal question mark.
func rebind(dialect, query string) string {
	if dialect != migrations.Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// Compile-time check that SQLDatabase implements review.Database
var _ review.Database = (*SQLDatabase)(nil)
