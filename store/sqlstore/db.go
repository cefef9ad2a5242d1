/*
Package sqlstore provides SQL-backed implementations of the leave and
attendance stores, plus the employee directory and holiday calendar.

PURPOSE:
  One schema, two dialects. SQLite is the default for development and
  single-node deployments; PostgreSQL (through pgx's database/sql driver) is
  used in production. Queries are written with ? placeholders and rebound to
  $n for PostgreSQL.

KEY TABLES:
  leave_types:        Policy definitions
  leave_balances:     One row per (employee, leave type, year), versioned
  leave_requests:     Filed requests with both approval stages, versioned
  attendance_rules:   Attendance policies, at most one default
  attendance_records: One row per (employee, date), versioned
  employees:          Slice of master data the engine needs
  holidays:           Branch-specific and global holidays

CONCURRENCY:
  Every Update* is an optimistic compare-and-swap on the version column.
  PostgreSQL deadlocks and serialization failures surface as
  core.ErrConcurrentModification.
  Lock* reads take FOR UPDATE row locks on PostgreSQL. SQLite runs with a
  single connection, so a transaction excludes every other statement.

USAGE:
  db, err := sqlstore.NewSQLite("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

  leaves := leave.NewService(db.Leave(), db.Directory(), db.Directory())

SEE ALSO:
  - leave/store.go, attendance/store.go: Interface contracts
  - store/memory: In-memory implementation for tests
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/core"
)

type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
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

func (d Dialect) forUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// DB owns the connection pool and hands out the individual stores.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLite opens (and migrates) a SQLite database at path.
// Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and makes a
	// transaction exclusive.
	db.SetMaxOpenConns(1)
	return open(db, SQLite)
}

// NewPostgres opens (and migrates) a PostgreSQL database through pgx.
func NewPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return open(db, Postgres)
}

// FromDB wraps an existing handle without migrating it.
func FromDB(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

func open(db *sql.DB, dialect Dialect) (*DB, error) {
	d := &DB{db: db, dialect: dialect}
	if err := d.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Dialect() Dialect { return d.dialect }

// Migrate creates the schema if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Leave() *LeaveStore {
	return &LeaveStore{leaveRepo: leaveRepo{c: d.conn()}, db: d}
}

func (d *DB) Attendance() *AttendanceStore {
	return &AttendanceStore{attendanceRepo: attendanceRepo{c: d.conn()}, db: d}
}

func (d *DB) Directory() *Directory {
	return &Directory{c: d.conn()}
}

func (d *DB) conn() conn { return conn{q: d.db, dialect: d.dialect} }

// withTx runs fn in a database transaction, rolling back on error or panic.
func (d *DB) withTx(ctx context.Context, fn func(conn) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(conn{q: tx, dialect: d.dialect}); err != nil {
		return retryable(err)
	}
	return retryable(tx.Commit())
}

// retryable reports PostgreSQL deadlocks and serialization failures as
// concurrent modifications; the database already aborted the transaction.
func retryable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40P01" || pgErr.Code == "40001") {
		return fmt.Errorf("%w: %s", core.ErrConcurrentModification, pgErr.Message)
	}
	return err
}

// =============================================================================
// CONN - *sql.DB or *sql.Tx plus the dialect
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q       querier
	dialect Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.dialect.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.dialect.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.dialect.rebind(query), args...)
}

// exists reports whether any row matches. query must select a single column.
func (c conn) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := c.queryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
