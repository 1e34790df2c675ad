package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/kevin07696/membership-service/internal/adapters/postgres"
	"github.com/kevin07696/membership-service/internal/config"
)

var (
	flags   = flag.NewFlagSet("migrate", flag.ExitOnError)
	envFile = flags.String("env-file", ".env", "optional dotenv file read before the environment")
)

func main() {
	flags.Usage = usage
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}
	dbConfig := config.DatabaseFromEnv()

	m, err := postgres.NewMigrator(dbConfig.ConnectionString())
	if err != nil {
		log.Fatalf("failed to open migrator: %v", err)
	}
	defer m.Close()

	if err := runCommand(m, args[0], args[1:]); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("migrate %s: no change", args[0])
			return
		}
		log.Fatalf("migrate %s: %v", args[0], err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Printf("migrate %s: database is empty", args[0])
	case err != nil:
		log.Fatalf("failed to read version: %v", err)
	default:
		log.Printf("migrate %s: version %d (dirty=%t)", args[0], version, dirty)
	}
}

func runCommand(m *migrate.Migrate, command string, args []string) error {
	switch command {
	case "up":
		return m.Up()
	case "up-by-one":
		return m.Steps(1)
	case "down":
		return m.Steps(-1)
	case "reset":
		return m.Down()
	case "version", "status":
		return nil
	case "goto", "force":
		if len(args) != 1 {
			return fmt.Errorf("%s requires a VERSION argument", command)
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid VERSION %q: %w", args[0], err)
		}
		if command == "force" {
			return m.Force(version)
		}
		return m.Migrate(uint(version))
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Print(`Usage: migrate [-env-file FILE] COMMAND

Commands:
    up                   Migrate the DB to the most recent version available
    up-by-one            Migrate the DB up by 1
    down                 Roll back the version by 1
    reset                Roll back all migrations
    goto VERSION         Migrate the DB to a specific VERSION
    force VERSION        Set VERSION without running migrations, clearing the dirty flag
    version              Print the current version of the database
`)
}
