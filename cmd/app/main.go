// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"codeberg.org/oliverandrich/donations/internal/config"
	"codeberg.org/oliverandrich/donations/internal/database"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/seed"
	"codeberg.org/oliverandrich/donations/internal/server"
	"codeberg.org/oliverandrich/donations/internal/services/auth"
	"codeberg.org/oliverandrich/donations/internal/services/email"
	"codeberg.org/oliverandrich/donations/internal/services/token"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Donation management API",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			seedCommand(),
			migrateCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create the admin account and sample campaigns",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Value: seed.DefaultFile,
				Usage: "Seed file (built-in samples if missing)",
			},
			&cli.StringFlag{
				Name:    "admin-email",
				Usage:   "Admin e-mail, overrides the seed file",
				Sources: cli.EnvVars("SEED_ADMIN_EMAIL"),
			},
			&cli.StringFlag{
				Name:    "admin-password",
				Usage:   "Admin password, overrides the seed file",
				Sources: cli.EnvVars("SEED_ADMIN_PASSWORD"),
			},
		},
		Action: runSeed,
	}
}

func runSeed(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)

	f, err := seed.Load(cmd.String("file"))
	if err != nil {
		return err
	}
	if v := cmd.String("admin-email"); v != "" {
		f.Admin.Email = v
	}
	if v := cmd.String("admin-password"); v != "" {
		f.Admin.Password = v
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := repository.New(db)
	links := email.Links{BaseURL: cfg.Server.BaseURL, ClientURL: cfg.Auth.ClientURL}
	users := auth.NewService(repo, token.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer), email.LogMailer{Links: links}, &cfg.Auth)

	res, err := seed.New(repo, users).Run(ctx, f)
	if err != nil {
		return err
	}

	if res.Admin != nil {
		slog.Info("seed_admin_ready", "user_id", res.Admin.ID, "email", res.Admin.Email)
	}
	slog.Info("seed_complete", "campaigns_created", res.Campaigns)
	return nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withSchema(func(dsn string) error {
					db, err := database.Open(dsn)
					if err != nil {
						return err
					}
					return db.Close()
				}),
			},
			{
				Name:   "down",
				Usage:  "Roll back the last migration",
				Action: withConnection(database.MigrateDown),
			},
			{
				Name:   "reset",
				Usage:  "Roll back all migrations",
				Action: withConnection(database.MigrateReset),
			},
			{
				Name:  "status",
				Usage: "Print the current schema version",
				Action: withSchema(func(dsn string) error {
					db, err := database.Connect(dsn)
					if err != nil {
						return err
					}
					defer db.Close()
					v, err := database.Version(db.DB)
					if err != nil {
						return err
					}
					fmt.Printf("schema version %d\n", v)
					return nil
				}),
			},
		},
	}
}

// withSchema runs fn against the configured DSN.
func withSchema(fn func(dsn string) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		if err := fn(cfg.Database.DSN); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		slog.Info("migrate_done", "command", cmd.Name, "dsn", cfg.Database.DSN)
		return nil
	}
}

// withConnection runs a schema operation on a connection that was not
// migrated first.
func withConnection(op func(db *sql.DB) error) cli.ActionFunc {
	return withSchema(func(dsn string) error {
		db, err := database.Connect(dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		return op(db.DB)
	})
}
