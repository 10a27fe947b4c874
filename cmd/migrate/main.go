// Command migrate manages the content store schema. The upstream store is
// crawler-owned, so this tool never touches it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/truecontent/content-review-service/internal/config"
	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/observability"
)

const connectTimeout = 30 * time.Second

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: migrate [-path DIR] COMMAND

Commands:
  up          apply every pending migration
  down        roll back every migration
  steps N     migrate N versions forward (negative rolls back)
  version     print the current schema version
  force V     overwrite the schema version record with V
  drop        drop every object in the content store schema

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	pathFlag := flag.String("path", "", "override the migrations directory")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	migrationsDir := cfg.Content.MigrationPath
	if *pathFlag != "" {
		migrationsDir = *pathFlag
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	contentDB, err := database.New(ctx, "content", &cfg.Content, logger)
	if err != nil {
		return fmt.Errorf("connect to content store: %w", err)
	}
	defer contentDB.Close()

	migrator, err := database.NewMigrator(contentDB, migrationsDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := dispatch(migrator, args); err != nil {
		return err
	}

	reportVersion(migrator, logger)
	return nil
}

func dispatch(migrator *database.Migrator, args []string) error {
	switch cmd := args[0]; cmd {
	case "up":
		return migrator.Up()

	case "down":
		return migrator.Down()

	case "steps":
		if len(args) < 2 {
			return fmt.Errorf("steps needs a count, e.g. steps 1 or steps -1")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n == 0 {
			return fmt.Errorf("steps count must be a non-zero integer, got %q", args[1])
		}
		return migrator.Steps(n)

	case "version":
		return nil

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force needs a version number")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("force version must be a non-negative integer, got %q", args[1])
		}
		return migrator.Force(v)

	case "drop":
		return migrator.DropAll()

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// reportVersion logs the schema version the command left behind. A fresh or
// dropped store has no version record, which is only worth a warning here.
func reportVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("content store schema version")
}
