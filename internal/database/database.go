package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leihlokal/internal/domain"
	"leihlokal/internal/events"
	"leihlokal/internal/models"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// DB is the SQLite implementation of domain.RecordStore.
type DB struct {
	*sql.DB
	logger    *zerolog.Logger
	publisher domain.EventPublisher
}

var _ domain.RecordStore = (*DB)(nil)

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// каждое соединение :memory: это отдельная база
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: sqlDB, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS items (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            sort_key INTEGER NOT NULL DEFAULT 0,
            copies INTEGER NOT NULL DEFAULT 1,
            protected BOOLEAN NOT NULL DEFAULT 0,
            deleted BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            item_id TEXT NOT NULL,
            customer_name TEXT NOT NULL,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'reserved',
            rental_id TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_items_sort ON items(sort_key, name)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_item_id ON bookings(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_range ON bookings(start_date, end_date)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetPublisher enables record change notifications.
func (db *DB) SetPublisher(p domain.EventPublisher) {
	db.publisher = p
}

func (db *DB) publish(ctx context.Context, kind models.EventKind, collection, id string, record any) {
	if db.publisher == nil {
		return
	}
	ev, err := events.NewRecordEvent(kind, collection, id, record)
	if err != nil {
		db.logger.Warn().Err(err).Str("collection", collection).Msg("encode record event")
		return
	}
	db.publisher.Publish(ctx, ev)
}

// mapError translates driver errors into domain errors.
func mapError(collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", collection, domain.ErrNotFound)
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		switch {
		case sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w", collection, domain.ErrConflict)
		// у "no such table" нет отдельного кода, только SQLITE_ERROR
		case sqlErr.Code == sqlite3.ErrError && strings.Contains(sqlErr.Error(), "no such table"):
			return fmt.Errorf("%s: %w", collection, domain.ErrCollectionNotFound)
		}
	}
	return fmt.Errorf("%s: %w", collection, err)
}

func (db *DB) Close() error {
	return db.DB.Close()
}
