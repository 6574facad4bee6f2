package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sardine-ai/go-widget-config/model"
	_ "modernc.org/sqlite" // Pure Go driver
)

const sqliteBusyTimeout = 5 * time.Second

const sqliteSchema = `CREATE TABLE IF NOT EXISTS widget_configuration (
	channel    TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteRepository stores channel blobs as rows of a SQLite table.
type SQLiteRepository struct {
	Name string // Name of the configuration source
	db   *sql.DB
}

// OpenSQLiteRepository opens (or creates) the database file at dbPath with
// WAL journaling and a busy timeout applied to every pooled connection.
func OpenSQLiteRepository(ctx context.Context, name, dbPath string) (*SQLiteRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		dbPath, sqliteBusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &SQLiteRepository{Name: name, db: db}, nil
}

// GetName returns the name of the configuration source.
func (s *SQLiteRepository) GetName() string {
	return s.Name
}

func (s *SQLiteRepository) Read(ctx context.Context, channel model.Channel) (string, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM widget_configuration WHERE channel = ?`, channel.Key()).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return blob, err
}

func (s *SQLiteRepository) Write(ctx context.Context, channel model.Channel, blob string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO widget_configuration (channel, blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(channel) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		channel.Key(), blob, time.Now().Unix())
	return err
}

func (s *SQLiteRepository) Delete(ctx context.Context, channel model.Channel) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM widget_configuration WHERE channel = ?`, channel.Key())
	return err
}

func (s *SQLiteRepository) Close() error { return s.db.Close() }
