// Package database provides SQLite and PostgreSQL persistence for accounts and
// character progression snapshots.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package globals.
var migrateMu sync.Mutex

// Database wraps the SQL connection and provides persistence operations.
type Database struct {
	db         *sql.DB
	dialect    Dialect
	qb         *QueryBuilder
	bcryptCost int
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the database described by cfg and applies pending migrations.
func OpenWithConfig(cfg Config) (*Database, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var dsn string
	switch dialect.(type) {
	case *PostgresDialect:
		dsn = cfg.Postgres.DSN()
	default:
		// Ensure directory exists
		dir := filepath.Dir(cfg.SQLitePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = sqliteDSN(cfg.SQLitePath)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, ok := dialect.(*PostgresDialect); ok {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w\nSQL: %s", err, stmt)
		}
	}

	d := &Database{
		db:         db,
		dialect:    dialect,
		qb:         NewQueryBuilder(dialect),
		bcryptCost: bcrypt.DefaultCost + 2,
	}

	if err := d.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return d, nil
}

// sqliteDSN applies the pragmas on every pooled connection, not just the first.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// migrate applies the embedded goose migrations for the active dialect.
func (d *Database) migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(d.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.db, d.dialect.MigrationsDir()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the latest applied migration version.
func (d *Database) SchemaVersion() (int64, error) {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if err := goose.SetDialect(d.dialect.GooseDialect()); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}
	return goose.GetDBVersion(d.db)
}

// SetPasswordCost overrides the bcrypt cost used for new password hashes.
func (d *Database) SetPasswordCost(cost int) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	d.bcryptCost = cost
}

// Dialect returns the active SQL dialect.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// DB returns the underlying sql.DB for advanced operations.
func (d *Database) DB() *sql.DB {
	return d.db
}

// insertReturningID runs an INSERT and returns the generated id for either dialect.
func (d *Database) insertReturningID(q queryer, query string, args ...any) (int64, error) {
	if d.dialect.SupportsLastInsertID() {
		result, err := q.Exec(d.qb.Build(query), args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	var id int64
	if err := q.QueryRow(d.qb.BuildWithReturning(query, "id"), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
