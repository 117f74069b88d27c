package main

// Run database migrations:
//   go run ./cmd/migrate            apply pending migrations
//   go run ./cmd/migrate -down      roll back the latest migration
//   go run ./cmd/migrate -version   print the current version

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/iammrherb/authensi-smart-sub008/internal/shared/config"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/db"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/telemetry"
)

func main() {
	down := flag.Bool("down", false, "roll back the latest migration")
	version := flag.Bool("version", false, "print the current migration version")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	switch {
	case *version:
		v, err := db.MigrationVersion(ctx, sqlDB)
		if err != nil {
			telemetry.Error("migrate.version_failed", map[string]any{"error": err})
			os.Exit(1)
		}
		fmt.Println(v)
	case *down:
		if err := db.RollbackMigration(ctx, sqlDB); err != nil {
			telemetry.Error("migrate.down_failed", map[string]any{"error": err})
			os.Exit(1)
		}
	default:
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			telemetry.Error("migrate.up_failed", map[string]any{"error": err})
			os.Exit(1)
		}
	}
}
