package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"teamsched/database"
	"teamsched/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
)

func main() {
	verbose := flag.Bool("v", false, "verbose migration output")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, ServiceName: "teamsched-migrate", Pretty: true})

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable is required")
	}

	m, err := database.NewMigrator(dbURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("migration init failed")
	}
	defer m.Close()
	m.Log = logger.NewMigrateLogger(log, *verbose)

	if err := run(m, args, log); err != nil {
		log.Error().Err(err).Str("command", args[0]).Msg("migration failed")
		m.Close()
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, args []string, log zerolog.Logger) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		log.Info().Msg("migrations: up completed")

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("down: invalid steps argument %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		log.Info().Int("steps", steps).Msg("migrations: down completed")

	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return err
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			return errors.New("force: version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("force: invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			return err
		}
		log.Info().Int("version", v).Msg("migrations: forced")

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [-v] <command> [args]

Commands:
  up           Apply all pending migrations
  down [N]     Rollback N migrations (default: 1)
  version      Print current migration version
  force <V>    Force set migration version (bypass dirty state)

Environment:
  DATABASE_URL  Required. Postgres DSN.`)
}
