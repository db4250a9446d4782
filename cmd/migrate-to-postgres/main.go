// migrate-to-postgres copies accounts and characters from SQLite to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/ascend.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user ascend \
//	    -pg-password ascend \
//	    -pg-database ascend
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lawnchairsociety/ascend/server/internal/database"
	"github.com/lawnchairsociety/ascend/server/internal/logger"
)

func main() {
	sqlitePath := flag.String("sqlite", "data/ascend.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "ascend", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "ascend", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "ascend", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	if err := logger.Initialize(logger.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(*sqlitePath); err != nil {
		logger.Error("SQLite database not found", "path", *sqlitePath, "error", err)
		os.Exit(1)
	}

	logger.Info("Opening SQLite database", "path", *sqlitePath)
	src, err := database.Open(*sqlitePath)
	if err != nil {
		logger.Error("Failed to open SQLite database", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	pg := database.DefaultPostgresConfig()
	pg.Host = *pgHost
	pg.Port = *pgPort
	pg.User = *pgUser
	pg.Password = *pgPassword
	pg.Database = *pgDatabase
	pg.SSLMode = *pgSSLMode

	// Opening runs the PostgreSQL migrations, so the schema is ready before any copy.
	logger.Info("Opening PostgreSQL database", "user", pg.User, "host", pg.Host, "port", pg.Port, "database", pg.Database)
	dst, err := database.OpenWithConfig(database.Config{Driver: "postgres", Postgres: pg})
	if err != nil {
		logger.Error("Failed to open PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dst.Close()

	if *dryRun {
		logger.Info("DRY RUN MODE - no changes will be made")
	}

	result, err := src.CopyTo(dst, *dryRun)
	if err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Migration complete",
		"accounts", result.Accounts,
		"characters", result.Characters,
		"stat_rows", result.Stats,
		"total", result.Total(),
		"dry_run", *dryRun)
}
