package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"redirector/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Database struct {
	db *sqlx.DB
}

func ConnectPostgres(ctx context.Context, url string) (*Database, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, err
	}

	pg := &Database{db: db}

	if err := pg.RunMigrations(); err != nil {
		return nil, err
	}

	return pg, nil
}

func (db *Database) RunMigrations() error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db.db.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("Database migrations applied successfully")
	return nil
}

// FindLinkByCodeOrAlias looks a record up by its short code or its
// custom alias in a single query. The schema enforces uniqueness of a
// value across both columns (per-column UNIQUE constraints plus the
// links_key_uniqueness trigger), so at most one row matches; the query
// still prefers the short_code match and limits to one row so a write
// that slipped past the trigger cannot make the answer arbitrary.
// Absence surfaces as sql.ErrNoRows.
func (db *Database) FindLinkByCodeOrAlias(ctx context.Context, code string) (*types.LinkRecord, error) {
	var link types.LinkRecord
	err := db.db.GetContext(ctx, &link, `
		SELECT id, short_code, COALESCE(custom_alias, '') AS custom_alias, long_url, expires_at
		FROM links
		WHERE short_code = $1 OR custom_alias = $1
		ORDER BY short_code = $1 DESC, id
		LIMIT 1`, code)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// IncrementClicks bumps the aggregate counter for a link. The single
// UPDATE is atomic, so concurrent increments for the same link never
// lose updates.
func (db *Database) IncrementClicks(ctx context.Context, linkID int64) error {
	res, err := db.db.ExecContext(ctx, `UPDATE links SET clicks = clicks + 1 WHERE id = $1`, linkID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *Database) Close() error {
	return db.db.Close()
}
