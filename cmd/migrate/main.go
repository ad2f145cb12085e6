package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blagoySimandov/proaccount/internal/config"
	"github.com/blagoySimandov/proaccount/internal/db"
	"github.com/blagoySimandov/proaccount/internal/logger"
	"github.com/blagoySimandov/proaccount/migrations"
	"github.com/uptrace/bun/migrate"
)

func main() {
	logger.Init()
	log := logger.Log

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	bunDB := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer bunDB.Close()

	migrator := migrate.NewMigrator(bunDB, migrations.Migrations)

	ctx := context.Background()

	if err := migrator.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize migrator")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := migrator.Lock(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to acquire migration lock")
		}
		defer migrator.Unlock(ctx) //nolint:errcheck

		group, err := migrator.Migrate(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		if group.IsZero() {
			fmt.Println("No new migrations to run (database is up to date)")
			return
		}
		fmt.Printf("Migrated to %s\n", group)

	case "down":
		group, err := migrator.Rollback(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Rollback failed")
		}
		if group.IsZero() {
			fmt.Println("No migrations to rollback")
			return
		}
		fmt.Printf("Rolled back %s\n", group)

	case "status":
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to get migration status")
		}
		fmt.Printf("Migrations:\n")
		for _, m := range ms {
			status := "pending"
			if m.IsApplied() {
				status = "applied"
			}
			fmt.Printf("  %s: %s\n", m.Name, status)
		}

	case "create":
		name := "migration"
		if len(os.Args) > 2 {
			name = strings.Join(os.Args[2:], "_")
		}
		files, err := migrator.CreateTxSQLMigrations(ctx, name)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create migration")
		}
		for _, f := range files {
			fmt.Printf("Created migration: %s\n", f.Path)
		}

	default:
		fmt.Println("Usage: migrate [up|down|status|create <name>]")
		fmt.Println("  up     - Run all pending migrations")
		fmt.Println("  down   - Rollback the last migration group")
		fmt.Println("  status - Show migration status")
		fmt.Println("  create - Create new migration files")
		os.Exit(1)
	}
}
