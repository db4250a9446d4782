package database

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for duplicate keys.
const uniqueViolation pq.ErrorCode = "23505"

// PostgresDialect targets PostgreSQL through lib/pq.
type PostgresDialect struct{}

func (*PostgresDialect) DriverName() string    { return "postgres" }
func (*PostgresDialect) GooseDialect() string  { return "postgres" }
func (*PostgresDialect) MigrationsDir() string { return "migrations/postgres" }

// Placeholder renders $N.
func (*PostgresDialect) Placeholder(position int) string {
	return "$" + strconv.Itoa(position)
}

// SupportsLastInsertID is false; lib/pq does not implement LastInsertId.
func (*PostgresDialect) SupportsLastInsertID() bool { return false }

func (*PostgresDialect) ReturningClause(column string) string {
	return " RETURNING " + column
}

// InitStatements enables citext for the case-insensitive name columns.
func (*PostgresDialect) InitStatements() []string {
	return []string{"CREATE EXTENSION IF NOT EXISTS citext"}
}

// IsDuplicateKeyError matches *pq.Error by SQLSTATE, falling back to the
// message text for errors that were wrapped as strings.
func (*PostgresDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, string(uniqueViolation)) ||
		strings.Contains(msg, "unique constraint")
}

func (*PostgresDialect) Upsert(conflict []string, cols []string) string {
	return upsertClause(conflict, cols)
}
