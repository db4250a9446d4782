package database

import (
	"strings"
	"sync"
)

// QueryBuilder rebinds queries written with ? placeholders into the
// dialect's own form. Rebound text is cached per input query; the set of
// distinct queries in this package is small and fixed.
type QueryBuilder struct {
	dialect  Dialect
	numbered bool
	cache    sync.Map // string -> string
}

// NewQueryBuilder returns a builder for dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{
		dialect:  dialect,
		numbered: dialect.Placeholder(1) != dialect.Placeholder(2),
	}
}

// Build rebinds query. On SQLite the query is returned as is; on PostgreSQL
// each ? outside a quoted literal becomes $1, $2, ... in order.
func (qb *QueryBuilder) Build(query string) string {
	if !qb.numbered || strings.IndexByte(query, '?') < 0 {
		return query
	}
	if cached, ok := qb.cache.Load(query); ok {
		return cached.(string)
	}
	rebound := qb.rebind(query)
	qb.cache.Store(query, rebound)
	return rebound
}

func (qb *QueryBuilder) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteString(qb.dialect.Placeholder(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// BuildWithReturning rebinds an INSERT and, where LastInsertId is not
// available, asks for column back with RETURNING.
func (qb *QueryBuilder) BuildWithReturning(query string, column string) string {
	built := qb.Build(query)
	if qb.dialect.SupportsLastInsertID() {
		return built
	}
	return built + qb.dialect.ReturningClause(column)
}
