package store

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsFS is embedded so the service can self-bootstrap the sink schema.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigratePostgres applies the embedded migrations. Safe to run repeatedly.
// dsn must be in URL form (postgres://...).
func MigratePostgres(dsn, password string) error {
	dbURL, err := withPassword(dsn, password)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// withPassword injects password into a URL-form DSN.
func withPassword(dsn, password string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse sink url: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("sink url must be in postgres://user@host/db form")
	}
	if password == "" {
		return dsn, nil
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}
