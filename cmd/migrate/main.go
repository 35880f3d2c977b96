// Package main 提供库存账本数据库的迁移命令行工具，
// 基于 go-migrate，支持向上/向下迁移、指定版本和脏状态修复。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/MorseWayne/stock_ledger/internal/config"
	"github.com/MorseWayne/stock_ledger/internal/database"
	"github.com/MorseWayne/stock_ledger/internal/logger"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version, force")
		steps  = flag.Int("steps", 1, "Number of steps for down migration")
		target = flag.Uint("target", 0, "Target version for version or force migration")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "migrate", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	db, err := database.New(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database", "error", err)
		}
	}()

	migrationsDir := cfg.Migrations.Dir

	switch *action {
	case "up":
		lg.Info("running up migrations...")
		if err := db.RunMigrations(migrationsDir); err != nil {
			lg.Sugar().Fatalw("failed to run up migrations", "error", err)
		}
		lg.Info("up migrations completed successfully")

	case "down":
		lg.Sugar().Infow("running down migrations", "steps", *steps)
		if err := db.MigrateDown(migrationsDir, *steps); err != nil {
			lg.Sugar().Fatalw("failed to run down migrations", "error", err)
		}
		lg.Info("down migrations completed successfully")

	case "version":
		if *target == 0 {
			lg.Fatal("target version must be specified for version migration")
		}
		lg.Sugar().Infow("migrating to version", "target", *target)
		if err := db.MigrateToVersion(migrationsDir, *target); err != nil {
			lg.Sugar().Fatalw("failed to migrate to version", "error", err)
		}
		lg.Info("version migration completed successfully")

	case "force":
		// force 允许版本0，用于把脏库重置到未迁移状态
		lg.Sugar().Warnw("forcing migration version - this will clear dirty state", "target", *target)
		if err := db.ForceMigrationVersion(migrationsDir, *target); err != nil {
			lg.Sugar().Fatalw("failed to force migration version", "error", err)
		}
		lg.Info("migration version forced successfully")

	default:
		fmt.Printf("Usage: %s -action=[up|down|version|force] [options]\n\n", os.Args[0])
		fmt.Println("Examples:")
		fmt.Println("  # Apply all pending migrations")
		fmt.Println("  ./migrate -action=up")
		fmt.Println("  # Roll back the last migration")
		fmt.Println("  ./migrate -action=down -steps=1")
		fmt.Println("  # Migrate to a specific schema version")
		fmt.Println("  ./migrate -action=version -target=3")
		fmt.Println("  # Clear dirty state after a failed migration")
		fmt.Println("  ./migrate -action=force -target=0")
		os.Exit(1)
	}
}
