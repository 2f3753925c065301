package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/jawher/mow.cli"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/contacts/internal/admin"
	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/logging"
	"github.com/JonMunkholm/contacts/internal/store"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	app := cli.App("contacts-admin", "Maintenance tasks for the contacts database")
	driver := app.String(cli.StringOpt{
		Name:   "driver",
		Value:  store.DriverPostgres,
		Desc:   "Store backend: postgres or sqlite",
		EnvVar: "DATABASE_DRIVER",
	})
	dbURL := app.String(cli.StringOpt{
		Name:   "database-url",
		Desc:   "Database connection string",
		EnvVar: "DATABASE_URL",
	})
	logLevel := app.String(cli.StringOpt{
		Name:   "log-level",
		Value:  "info",
		Desc:   "Log level: debug, info, warn, error",
		EnvVar: "LOG_LEVEL",
	})

	app.Before = func() {
		logging.Setup(*logLevel, "text")
	}

	// withStore opens the database for the duration of one command.
	withStore := func(run func(ctx context.Context, db *store.DB) error) func() {
		return func() {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if *dbURL == "" {
				fail(errors.New("--database-url or DATABASE_URL is required"))
			}
			db, err := store.Open(ctx, config.DatabaseConfig{
				Driver:   *driver,
				URL:      *dbURL,
				MaxConns: 4,
				MinConns: 1,
			}, slog.Default())
			if err != nil {
				fail(err)
			}
			defer db.Close()

			if err := run(ctx, db); err != nil {
				fail(err)
			}
		}
	}

	app.Command("migrate", "Create or update the schema", func(cmd *cli.Cmd) {
		cmd.Action = withStore(func(ctx context.Context, db *store.DB) error {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			slog.Info("schema migrated", "driver", db.Driver())
			return nil
		})
	})

	app.Command("seed", "Load the bundled sample countries and persons", func(cmd *cli.Cmd) {
		cmd.Action = withStore(func(ctx context.Context, db *store.DB) error {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			res, err := db.Seed(ctx)
			if err != nil {
				return err
			}
			slog.Info("seed complete", "countries", res.Countries, "persons", res.Persons)
			return nil
		})
	})

	app.Command("reset", "Delete all persons, countries and accounts", func(cmd *cli.Cmd) {
		confirm := cmd.BoolOpt("yes", false, "Confirm the destructive reset")
		cmd.Action = withStore(func(ctx context.Context, db *store.DB) error {
			if !*confirm {
				return fmt.Errorf("refusing to reset without --yes")
			}
			if err := admin.Reset(ctx, db); err != nil {
				return err
			}
			slog.Warn("database reset")
			return nil
		})
	})

	app.Command("import-countries", "Import country names from an xlsx or csv file", func(cmd *cli.Cmd) {
		cmd.Spec = "FILE"
		file := cmd.StringArg("FILE", "", "Spreadsheet with a Name column")
		cmd.Action = withStore(func(ctx context.Context, db *store.DB) error {
			svc := core.NewCountriesService(store.NewCountriesRepository(db), core.WithLogger(slog.Default()))
			n, err := admin.ImportCountriesFile(core.ContextWithActor(ctx, "contacts-admin"), svc, *file)
			if err != nil {
				return errors.New(core.FormatUserError(err))
			}
			slog.Info("countries imported", "file", *file, "inserted", n)
			return nil
		})
	})

	app.Command("export-persons", "Write all persons to a .csv, .xlsx or .pdf file", func(cmd *cli.Cmd) {
		cmd.Spec = "FILE"
		file := cmd.StringArg("FILE", "", "Output path; the extension selects the format")
		cmd.Action = withStore(func(ctx context.Context, db *store.DB) error {
			countries := store.NewCountriesRepository(db)
			svc := core.NewPersonsService(store.NewPersonsRepository(db), countries, core.WithLogger(slog.Default()))
			if err := admin.ExportPersonsFile(ctx, svc, *file); err != nil {
				return err
			}
			slog.Info("persons exported", "file", *file)
			return nil
		})
	})

	if err := app.Run(os.Args); err != nil {
		fail(err)
	}
}

func fail(err error) {
	slog.Error("command failed", "error", err)
	cli.Exit(1)
}
