// Package db provides the SQL storage for taskflow: tasks, project
// membership, the audit trail and the directory tables they reference.
//
// Two drivers are supported. SQLite (the default) is stored at
// ~/.taskflow/taskflow.db; Postgres is reached through pgx. Use Open or
// OpenConfig to connect and Init to create the schema.
//
// Timestamps are stored as Unix milliseconds so both drivers can aggregate
// them with plain integer arithmetic.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/baiirun/taskflow/internal/apperr"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// DefaultLockTimeout bounds how long a transaction waits for a contended lock
// before failing with a conflict.
const DefaultLockTimeout = 5 * time.Second

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'Member',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS project_members (
	project_id TEXT NOT NULL REFERENCES projects(id),
	user_id TEXT NOT NULL REFERENCES users(id),
	created_at INTEGER NOT NULL,
	PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	project_id TEXT NOT NULL REFERENCES projects(id),
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'todo',
	assignee_id TEXT REFERENCES users(id),
	due_date INTEGER NOT NULL,
	completed_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS audit_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	details TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
` + commonIndexes

const postgresSchema = `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'Member',
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	name TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_members (
	project_id TEXT NOT NULL REFERENCES projects(id),
	user_id TEXT NOT NULL REFERENCES users(id),
	created_at BIGINT NOT NULL,
	PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	project_id TEXT NOT NULL REFERENCES projects(id),
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'todo',
	assignee_id TEXT REFERENCES users(id),
	due_date BIGINT NOT NULL,
	completed_at BIGINT,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	deleted_at BIGINT
);

CREATE TABLE IF NOT EXISTS audit_entries (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	details TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
` + commonIndexes

const commonIndexes = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_org_name ON projects(organization_id, lower(name));
CREATE INDEX IF NOT EXISTS idx_members_user ON project_members(user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_entries(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_entries(actor_id);
`

// Config selects and parameterizes a driver.
type Config struct {
	Driver      Driver
	Path        string // sqlite file
	DSN         string // postgres connection string
	LockTimeout time.Duration
}

// DB wraps a SQL database connection with taskflow-specific operations.
// Read operations are promoted from conn; writes that must be atomic with an
// audit entry live on Tx.
type DB struct {
	*sql.DB
	conn
	lockTimeout time.Duration
}

// DefaultPath returns the default database path (~/.taskflow/taskflow.db)
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".taskflow", "taskflow.db"), nil
}

// Open opens or creates the SQLite database at the given path
func Open(path string) (*DB, error) {
	return OpenConfig(Config{Driver: DriverSQLite, Path: path})
}

// OpenConfig connects using the configured driver.
func OpenConfig(cfg Config) (*DB, error) {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		cfg.Driver = DriverSQLite
		sqlDB, err = openSQLite(cfg)
	case DriverPostgres:
		sqlDB, err = sql.Open("pgx", cfg.DSN)
		if err == nil {
			err = sqlDB.Ping()
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DB{
		DB:          sqlDB,
		conn:        conn{q: sqlDB, driver: cfg.Driver},
		lockTimeout: cfg.LockTimeout,
	}, nil
}

func openSQLite(cfg Config) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection, not just the first.
	dsn := cfg.Path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(" + strconv.FormatInt(cfg.LockTimeout.Milliseconds(), 10) + ")"

	return sql.Open("sqlite", dsn)
}

// Dialect reports which backend this DB talks to.
func (db *DB) Dialect() Driver {
	return db.driver
}

// Init creates the schema.
func (db *DB) Init() error {
	schema := sqliteSchema
	if db.driver == DriverPostgres {
		schema = postgresSchema
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Tx is one atomic unit. Every lifecycle mutation, its invariant checks and
// its audit entry run on the same Tx.
type Tx struct {
	conn
}

// WithTx runs fn inside a write transaction and commits if fn returns nil.
// Any error rolls everything back. Lock waits that exceed the configured
// timeout surface as apperr.KindConflict.
//
// On SQLite the transaction starts with BEGIN IMMEDIATE, which takes the
// database write lock up front: reads inside fn are therefore locking reads
// and concurrent writers are serialized. On Postgres the row locks are taken
// by the FOR UPDATE reads inside fn.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	if db.driver == DriverPostgres {
		return classify(db.withSQLTx(ctx, fn))
	}
	return classify(db.withImmediateTx(ctx, fn))
}

func (db *DB) withImmediateTx(ctx context.Context, fn func(tx *Tx) error) error {
	c, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = c.Close() }()

	if _, err := c.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			rollbackConn(c)
		}
	}()

	if err := fn(&Tx{conn: conn{q: c, driver: db.driver}}); err != nil {
		return err
	}

	if _, err := c.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// rollbackConn aborts the open transaction on c. A connection that cannot be
// rolled back is discarded so it never returns to the pool mid-transaction.
func rollbackConn(c *sql.Conn) {
	if _, err := c.ExecContext(context.Background(), "ROLLBACK"); err != nil {
		_ = c.Raw(func(any) error { return driver.ErrBadConn })
	}
}

func (db *DB) withSQLTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if _, err := sqlTx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL lock_timeout = %d", db.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if err := fn(&Tx{conn: conn{q: sqlTx, driver: db.driver}}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// classify maps driver lock failures to apperr.KindConflict. Errors that are
// already classified pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return apperr.Conflict(err)
		}
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "55P03", "40001", "40P01": // lock_not_available, serialization_failure, deadlock_detected
			return apperr.Conflict(err)
		}
	}
	return err
}

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505" // unique_violation
	}
	return false
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs queries written with '?' placeholders against either driver.
type conn struct {
	q      queryer
	driver Driver
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// forUpdate is appended to locking reads. SQLite has no row locks; its
// transactions already hold the write lock (see WithTx).
func (c conn) forUpdate() string {
	if c.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// rebind rewrites '?' placeholders as $1, $2, ... for Postgres.
func (c conn) rebind(query string) string {
	if c.driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}
