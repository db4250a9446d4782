package database

import (
	"database/sql"
	"fmt"
)

// CopyStats counts the rows a copy wrote, per table.
type CopyStats struct {
	Accounts   int64
	Characters int64
	Stats      int64
}

// Total returns the number of rows across all tables.
func (s CopyStats) Total() int64 {
	return s.Accounts + s.Characters + s.Stats
}

// copyTable describes how to move one table. Columns are listed in the order
// they are scanned and inserted.
type copyTable struct {
	name     string
	columns  string
	conflict string
	scan     func(*sql.Rows) ([]any, error)
}

var copyTables = []copyTable{
	{
		name:     "accounts",
		columns:  accountColumns,
		conflict: "id",
		scan: func(rows *sql.Rows) ([]any, error) {
			var id int64
			var username, hash string
			var createdAt, lastLogin sql.NullTime
			var lastIP sql.NullString
			var banned int
			err := rows.Scan(&id, &username, &hash, &createdAt, &lastLogin, &lastIP, &banned)
			return []any{id, username, hash, createdAt, lastLogin, lastIP, banned}, err
		},
	},
	{
		name:     "characters",
		columns:  characterColumns,
		conflict: "id",
		scan: func(rows *sql.Rows) ([]any, error) {
			var id, accountID, experience, revision int64
			var name, paragon string
			var level, prestige, points int
			var createdAt, lastPlayed sql.NullTime
			err := rows.Scan(&id, &accountID, &name, &level, &experience, &prestige, &points,
				&paragon, &revision, &createdAt, &lastPlayed)
			return []any{id, accountID, name, level, experience, prestige, points,
				paragon, revision, createdAt, lastPlayed}, err
		},
	},
	{
		name:     "character_stats",
		columns:  "character_id, stat, base, tier, bonus, paragon",
		conflict: "character_id, stat",
		scan: func(rows *sql.Rows) ([]any, error) {
			var characterID int64
			var stat, bonus, paragon string
			var base, tier int
			err := rows.Scan(&characterID, &stat, &base, &tier, &bonus, &paragon)
			return []any{characterID, stat, base, tier, bonus, paragon}, err
		},
	},
}

// CopyTo copies every account, character and stat row into dst, keeping IDs
// so references stay intact. Rows whose key already exists in dst are left
// untouched, which makes repeated copies safe. With dryRun nothing is written
// and the stats count the source rows.
func (d *Database) CopyTo(dst *Database, dryRun bool) (CopyStats, error) {
	var result CopyStats
	counters := map[string]*int64{
		"accounts":        &result.Accounts,
		"characters":      &result.Characters,
		"character_stats": &result.Stats,
	}

	var tx *sql.Tx
	if !dryRun {
		var err error
		tx, err = dst.db.Begin()
		if err != nil {
			return result, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()
	}

	for _, table := range copyTables {
		n, err := d.copyTable(dst, tx, table)
		if err != nil {
			return result, fmt.Errorf("copy %s: %w", table.name, err)
		}
		*counters[table.name] = n
	}

	if dryRun {
		return result, nil
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit copy: %w", err)
	}

	if _, ok := dst.dialect.(*PostgresDialect); ok {
		for _, table := range []string{"accounts", "characters"} {
			_, err := dst.db.Exec(fmt.Sprintf(
				"SELECT setval('%s_id_seq', COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)", table, table))
			if err != nil {
				return result, fmt.Errorf("failed to reset %s sequence: %w", table, err)
			}
		}
	}
	return result, nil
}

// copyTable streams one table into tx. A nil tx only counts rows.
func (d *Database) copyTable(dst *Database, tx *sql.Tx, table copyTable) (int64, error) {
	rows, err := d.db.Query("SELECT " + table.columns + " FROM " + table.name)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var insert *sql.Stmt
	if tx != nil {
		cols, err := rows.Columns()
		if err != nil {
			return 0, err
		}
		marks := "?"
		for i := 1; i < len(cols); i++ {
			marks += ", ?"
		}
		insert, err = tx.Prepare(dst.qb.Build(fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
			table.name, table.columns, marks, table.conflict)))
		if err != nil {
			return 0, err
		}
		defer insert.Close()
	}

	var count int64
	for rows.Next() {
		values, err := table.scan(rows)
		if err != nil {
			return count, err
		}
		if insert == nil {
			count++
			continue
		}

		res, err := insert.Exec(values...)
		if err != nil {
			return count, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, rows.Err()
}
