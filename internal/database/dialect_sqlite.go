package database

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteDialect targets the pure-Go modernc.org/sqlite driver.
type SQLiteDialect struct{}

func (*SQLiteDialect) DriverName() string    { return "sqlite" }
func (*SQLiteDialect) GooseDialect() string  { return "sqlite3" }
func (*SQLiteDialect) MigrationsDir() string { return "migrations/sqlite" }

// Placeholder is always ?; SQLite binds by order.
func (*SQLiteDialect) Placeholder(int) string { return "?" }

func (*SQLiteDialect) SupportsLastInsertID() bool { return true }

func (*SQLiteDialect) ReturningClause(string) string { return "" }

// InitStatements is empty. Pragmas are set in the DSN so each pooled
// connection carries them.
func (*SQLiteDialect) InitStatements() []string { return nil }

// IsDuplicateKeyError matches the extended UNIQUE and PRIMARY KEY result codes.
func (*SQLiteDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (*SQLiteDialect) Upsert(conflict []string, cols []string) string {
	return upsertClause(conflict, cols)
}
