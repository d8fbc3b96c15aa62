package postgres

import (
	"context"
	"embed"
	"errors"
	"net"
	"net/url"
	"strconv"

	"courier-dispatch/internal/general/config"
	"courier-dispatch/internal/general/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // register pgx5:// database driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations. Running it on every start
// is safe; an up-to-date schema is a no-op.
func Migrate(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	u := &url.URL{
		Scheme: "pgx5",
		Host:   net.JoinHostPort(cfg.Database.Host, strconv.Itoa(cfg.Database.Port)),
		Path:   "/" + cfg.Database.Name,
		User:   url.UserPassword(cfg.Database.User, cfg.Database.Password),
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()

	m, err := migrate.NewWithSourceInstance("iofs", src, u.String())
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Error(ctx, "migrate_close_failed", "Failed to close migration source", srcErr, nil)
		}
		if dbErr != nil {
			log.Error(ctx, "migrate_close_failed", "Failed to close migration database handle", dbErr, nil)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info(ctx, "migrations_current", "Database schema is up to date", nil)
			return nil
		}
		return err
	}

	log.Info(ctx, "migrations_applied", "Database schema migrated", nil)
	return nil
}
