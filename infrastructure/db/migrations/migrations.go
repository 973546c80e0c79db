// Package migrations embeds the schema SQL and runs it opportunistically at
// startup via golang-migrate. The migration runner CLI itself stays an
// external collaborator per spec §1's Non-goals; this package only applies
// migrations already present on disk/embedded, it does not generate them.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Run applies all pending migrations against dsn. It is safe to call on
// every process startup: a fully migrated database is a no-op.
func Run(dsn string) error {
	source, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return fmt.Errorf("migrations: load embedded source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("migrations: init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: apply: %w", err)
	}
	return nil
}
