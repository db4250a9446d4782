package database

import "strings"

// Dialect captures the SQL differences between the SQLite and PostgreSQL
// backends. Queries are written once with ? placeholders and rebound through
// a QueryBuilder.
type Dialect interface {
	// DriverName is the database/sql driver registered for this backend.
	DriverName() string

	// GooseDialect names the dialect for the migration runner.
	GooseDialect() string

	// MigrationsDir is the embedded directory holding this backend's migrations.
	MigrationsDir() string

	// Placeholder renders the bind parameter at the 1-based position.
	Placeholder(position int) string

	// SupportsLastInsertID reports whether sql.Result.LastInsertId works.
	// Backends that return false get a RETURNING clause instead.
	SupportsLastInsertID() bool

	ReturningClause(column string) string

	// InitStatements run on a fresh connection before migrations.
	InitStatements() []string

	// IsDuplicateKeyError reports a unique or primary key violation.
	IsDuplicateKeyError(err error) bool

	// Upsert renders the ON CONFLICT tail that overwrites cols when a row
	// with the same conflict key already exists.
	Upsert(conflict []string, cols []string) string
}

// DialectType is the configured driver name.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect returns the Dialect for t. Anything unrecognised is SQLite.
func NewDialect(t DialectType) Dialect {
	if t == DialectPostgres {
		return &PostgresDialect{}
	}
	return &SQLiteDialect{}
}

// upsertClause is the ON CONFLICT form both backends understand.
func upsertClause(conflict []string, cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = excluded." + c
	}
	return " ON CONFLICT (" + strings.Join(conflict, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}
