package main

import (
	"database/sql"
	"errors"
	"flag"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-taxcalc/internal/app"
	"github.com/noah-isme/backend-taxcalc/internal/obs"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "migrations", "directory holding the migration files")
	down := flag.Bool("down", false, "roll back a single migration instead of applying all")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "migrate").Logger()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("create migrate driver")
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+*dir, "postgres", driver)
	if err != nil {
		logger.Fatal().Err(err).Msg("create migrate instance")
	}

	if *down {
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			err = nil
		}
	} else {
		err = app.RunMigrations(m)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	report(logger, m)
}

func report(logger zerolog.Logger, m *migrate.Migrate) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info().Msg("no migrations applied")
	case err != nil:
		logger.Error().Err(err).Msg("read migration version")
	default:
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	}
}
