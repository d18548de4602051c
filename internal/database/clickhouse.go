package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang-migrate/migrate/v4"
	clickmigrations "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"redirector/internal/types"
)

//go:embed migrations/clickhouse/*.sql
var migrationsClickHouseFS embed.FS

const (
	clickBatchSize     = 100
	clickFlushInterval = 5 * time.Second
	clickBufferSize    = 1000
)

// Analytics appends ClickEvents to ClickHouse through a buffered
// channel. Writes are batched by the worker; a full buffer drops
// events instead of blocking the caller.
type Analytics struct {
	db     *sql.DB
	clicks chan types.ClickEvent
}

func ConnectClickHouse(addr, user, pass, dbName string) (*Analytics, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
			Username: user,
			Password: pass,
		},
		DialTimeout: time.Second * 30,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	a := &Analytics{
		db:     conn,
		clicks: make(chan types.ClickEvent, clickBufferSize),
	}

	if err := a.runMigrations(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Analytics) runMigrations() error {
	d, err := iofs.New(migrationsClickHouseFS, "migrations/clickhouse")
	if err != nil {
		return err
	}

	driver, err := clickmigrations.WithInstance(a.db, &clickmigrations.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"clickhouse", driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("ClickHouse migrations applied successfully")
	return nil
}

// Start launches the batching worker. It runs until ctx is cancelled;
// on shutdown whatever is already queued is flushed best-effort, and
// anything still in flight elsewhere is abandoned.
func (a *Analytics) Start(ctx context.Context) {
	go a.worker(ctx)
}

func (a *Analytics) worker(ctx context.Context) {
	var buffer []types.ClickEvent
	ticker := time.NewTicker(clickFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-a.clicks:
			buffer = append(buffer, ev)
			if len(buffer) >= clickBatchSize {
				a.flush(buffer)
				buffer = nil
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				a.flush(buffer)
				buffer = nil
			}
		case <-ctx.Done():
			for {
				select {
				case ev := <-a.clicks:
					buffer = append(buffer, ev)
				default:
					if len(buffer) > 0 {
						a.flush(buffer)
					}
					return
				}
			}
		}
	}
}

func (a *Analytics) flush(clicks []types.ClickEvent) {
	if err := a.recordClicks(clicks); err != nil {
		slog.Warn("recordClicks error", "error", err, "events", len(clicks))
	}
}

func (a *Analytics) recordClicks(clicks []types.ClickEvent) error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO clicks (link_id, country, city, browser_name, os_name, device_type, clicked_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ev := range clicks {
		_, err = stmt.Exec(ev.LinkID, ev.Country, ev.City, ev.Browser, ev.OS, ev.DeviceType, ev.ClickedAt)
		if err != nil {
			slog.Error("failed to exec insert for click", "error", err, "link_id", ev.LinkID)
			continue
		}
	}
	return tx.Commit()
}

// PushClick queues one event. It never blocks the redirect path.
func (a *Analytics) PushClick(ev types.ClickEvent) {
	select {
	case a.clicks <- ev:
	default:
		slog.Warn("Analytics buffer full, dropping click data", "link_id", ev.LinkID)
	}
}

func (a *Analytics) Close() error {
	return a.db.Close()
}
