// Package dbmigrate runs the SQL schema migrations under ./migrations
// against an already-open *sql.DB, mirroring the teacher's
// internal/db/store.go Store.Migrate.
package dbmigrate

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"ecommerce-core/internal/apperror"
)

// Up applies every pending migration file under dir to db. migrate.ErrNoChange
// (schema already current) is not an error.
func Up(db *sql.DB, dir string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return apperror.Wrap(apperror.MissingDataStore, "migrate: postgres driver", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return apperror.Wrap(apperror.MissingDataStore, "migrate: init", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return apperror.Wrap(apperror.MissingDataStore, "migrate: up", err)
	}
	return nil
}
