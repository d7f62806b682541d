package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var fs embed.FS

func newMigrate(database string) (*migrate.Migrate, error) {
	// Create a new source instance using the embedded migrations
	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return nil, err
	}

	url := database
	if !isPostgres(database) {
		url = "sqlite://" + database
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, url)
	if err != nil {
		return nil, fmt.Errorf("error creating migrate instance: %w", err)
	}
	return m, nil
}

// Migrate applies all pending migrations, creating the database if needed
func Migrate(database string) error {
	log.Info("Running migrations...")
	m, err := newMigrate(database)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// Rollback reverts the last applied migration
func Rollback(database string) error {
	log.Info("Rolling back last migration...")
	m, err := newMigrate(database)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Steps(-1)
}
