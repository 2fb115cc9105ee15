package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/db"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/migrate"
)

type dbCommand func(ctx context.Context, m *migrate.Migrator, logg *logger.Logger) error

// Commands that need a live database.
var dbCommands = map[string]dbCommand{
	"up": func(ctx context.Context, m *migrate.Migrator, logg *logger.Logger) error {
		applied, err := m.Up(ctx)
		logg.Info(logg.WithField(ctx, "applied", applied), "up finished")
		return err
	},
	"down": func(ctx context.Context, m *migrate.Migrator, logg *logger.Logger) error {
		version, err := m.Down(ctx)
		logg.Info(logg.WithField(ctx, "rolled_back", version), "down finished")
		return err
	},
	"status": func(ctx context.Context, m *migrate.Migrator, _ *logger.Logger) error {
		entries, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			state := "pending"
			if e.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %d %s\n", state, e.Version, e.Path)
		}
		return nil
	},
}

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory on disk (empty uses embedded migrations; create/validate default to "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(*cmd, *dir, *name, *version); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func run(cmd, dir, name, version string) error {
	switch cmd {
	case "create":
		if name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(diskDir(dir), name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		var err error
		if dir == "" {
			err = migrate.ValidateFS(migrate.Embedded())
		} else {
			err = migrate.ValidateDir(dir)
		}
		if err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	command, ok := dbCommands[cmd]
	if cmd == "version" {
		target, err := migrate.ParseVersion(version)
		if err != nil {
			return err
		}
		command = func(ctx context.Context, m *migrate.Migrator, logg *logger.Logger) error {
			moved, err := m.To(ctx, target)
			logg.Info(logg.WithFields(ctx, map[string]any{"target": target, "moved": moved}), "version finished")
			return err
		}
		ok = true
	}
	if !ok {
		return fmt.Errorf("unknown -cmd value %q", cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"cmd": cmd,
		"dir": dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return multierr.Append(fmt.Errorf("sql handle: %w", err), dbClient.Close())
	}

	migrator, err := migrate.New(sqlDB, dir)
	if err != nil {
		return multierr.Append(err, dbClient.Close())
	}
	if err := command(ctx, migrator, logg); err != nil {
		return multierr.Append(err, dbClient.Close())
	}
	logg.Info(ctx, "migrate finished")
	return dbClient.Close()
}

func diskDir(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}
