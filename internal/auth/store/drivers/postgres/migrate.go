package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/farmportal/internal/auth/store/drivers/postgres/migrations"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

var errNoDSN = errors.New("postgres: migrations need a dsn")

// ApplyMigrations applies pending embedded migrations. The migrate driver
// pins a connection for its advisory lock, so it gets a short-lived pool of
// its own and the store pool is left untouched.
func (s *Store) ApplyMigrations() error {
	if s.dsn == "" {
		return errNoDSN
	}

	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return err
	}

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("postgres: migrate driver: %w", err)
	}

	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		_ = driver.Close()
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
