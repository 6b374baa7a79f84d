package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/platinummonkey/mesauthz/pkg/authz"
	"github.com/platinummonkey/mesauthz/pkg/snapshot"
)

// sourceFlags selects a snapshot file or a database
type sourceFlags struct {
	file   *string
	driver *string
	dsn    *string
}

func addSourceFlags(flags *pflag.FlagSet) *sourceFlags {
	return &sourceFlags{
		file:   flags.StringP("file", "f", "", "Snapshot YAML file"),
		driver: flags.String("driver", "sqlite3", "Database driver (sqlite3 or postgres)"),
		dsn:    flags.String("dsn", "", "Database DSN; used when --file is not set"),
	}
}

func cliLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	return log
}

func openDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("--dsn is required")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// open returns the selected source and a function releasing it
func (s *sourceFlags) open() (snapshot.Source, func(), error) {
	if *s.file != "" {
		src, err := snapshot.NewFileSource(*s.file, cliLogger())
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	if *s.dsn == "" {
		return nil, nil, fmt.Errorf("one of --file or --dsn is required")
	}

	db, err := openDB(*s.driver, *s.dsn)
	if err != nil {
		return nil, nil, err
	}
	return snapshot.NewSQLSource(db), func() { db.Close() }, nil
}

// authorizer builds a one-shot Authorizer over the selected source
func (s *sourceFlags) authorizer() (*authz.Authorizer, func(), error) {
	src, closeFn, err := s.open()
	if err != nil {
		return nil, nil, err
	}
	a, err := authz.NewAuthorizer(src, authz.WithLogger(cliLogger()))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return a, closeFn, nil
}

func newMigrateCommand() *Command {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	driver := flags.String("driver", "sqlite3", "Database driver (sqlite3 or postgres)")
	dsn := flags.String("dsn", "", "Database DSN")
	seed := flags.Bool("seed", true, "Upsert the preset roles after migrating")

	return &Command{
		Name:        "migrate",
		Description: "Create the snapshot tables and seed preset roles",
		Flags:       flags,
		Run: func(args []string) error {
			if err := flags.Parse(args); err != nil {
				return err
			}

			db, err := openDB(*driver, *dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			if err := snapshot.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "migrations applied (%d known)\n", len(snapshot.GetMigrations()))

			if *seed {
				if err := snapshot.NewSQLSource(db).SeedPresets(ctx); err != nil {
					return err
				}
				fmt.Fprintln(stdout, "preset roles seeded")
			}
			return nil
		},
	}
}
