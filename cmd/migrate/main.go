package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/cartsync/internal/cart"
	"github.com/angelmondragon/cartsync/pkg/config"
	"github.com/angelmondragon/cartsync/pkg/db"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"github.com/angelmondragon/cartsync/pkg/migrate"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// goose commands passed through unchanged.
var gooseCommands = map[string]bool{
	"up":     true,
	"down":   true,
	"status": true,
	"redo":   true,
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "command: up|down|status|redo|version|create|validate|purge")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory (empty uses the set compiled into the binary)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	switch *cmd {
	case "create":
		if *name == "" {
			exit(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exit(ctx, logg, "create migration failed", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exit(ctx, logg, "migration validation failed", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit(ctx, logg, "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit(ctx, logg, "failed to bootstrap database", err)
	}
	defer dbClient.Close()

	if err := run(ctx, logg, cfg, dbClient, *cmd, *dir, *version); err != nil {
		exit(ctx, logg, *cmd+" failed", err)
	}
	logg.Info(ctx, "migrate finished")
}

func run(ctx context.Context, logg *logger.Logger, cfg *config.Config, dbClient *db.Client, cmd, dir, version string) error {
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}

	switch {
	case gooseCommands[cmd]:
		if cmd == "up" {
			if err := migrate.ValidateDir(dir); err != nil {
				return err
			}
		}
		return migrate.Run(ctx, sqlDB, dbClient.Dialect(), dir, cmd)

	case cmd == "version":
		if version == "" {
			return fmt.Errorf("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dbClient.Dialect(), dir, version)

	case cmd == "purge":
		repo := cart.NewRepository(dbClient.DB(), cfg.Cart.TTL)
		var purged int64
		err := dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := repo.WithTx(tx).PurgeExpired(ctx)
			purged = n
			return err
		})
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "purged", purged), "expired cart snapshots purged")
		return nil
	}
	return fmt.Errorf("unknown -cmd value %q", cmd)
}

func exit(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
