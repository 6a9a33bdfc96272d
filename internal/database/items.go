package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/models"

	"github.com/google/uuid"
)

const itemColumns = `id, name, sort_key, copies, protected, deleted, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	if err := row.Scan(
		&item.ID, &item.Name, &item.SortKey, &item.Copies,
		&item.Protected, &item.Deleted, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *DB) ListItems(ctx context.Context, filter domain.Filter) ([]models.Item, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProtectedOnly {
		where = append(where, "protected = 1")
	}
	if !filter.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	if filter.ItemID != "" {
		where = append(where, "id = ?")
		args = append(args, filter.ItemID)
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sort_key, name, id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(models.CollectionItems, err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (db *DB) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		return nil, mapError(models.CollectionItems, err)
	}
	return item, nil
}

func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Copies < 1 {
		item.Copies = 1
	}
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now

	_, err := db.ExecContext(ctx, `INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.SortKey, item.Copies, item.Protected, item.Deleted, now, now)
	if err != nil {
		return mapError(models.CollectionItems, err)
	}

	db.publish(ctx, models.EventCreated, models.CollectionItems, item.ID, item)
	return nil
}

func (db *DB) UpdateItem(ctx context.Context, item *models.Item) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, sort_key = ?, copies = ?, protected = ?, deleted = ?, updated_at = ? WHERE id = ?`,
		item.Name, item.SortKey, item.CopyCount(), item.Protected, item.Deleted, item.UpdatedAt, item.ID)
	if err != nil {
		return mapError(models.CollectionItems, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", item.ID, domain.ErrNotFound)
	}

	db.publish(ctx, models.EventUpdated, models.CollectionItems, item.ID, item)
	return nil
}

// DeleteItem marks an item deleted. Its bookings stay and show up as orphans.
func (db *DB) DeleteItem(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `UPDATE items SET deleted = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return mapError(models.CollectionItems, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}

	db.publish(ctx, models.EventDeleted, models.CollectionItems, id, nil)
	return nil
}

// SeedItems inserts items that do not exist yet.
func (db *DB) SeedItems(ctx context.Context, items []models.Item) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	inserted := 0
	for _, item := range items {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Name, item.SortKey, item.CopyCount(), item.Protected, item.Deleted, now, now)
		if err != nil {
			return 0, mapError(models.CollectionItems, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return inserted, nil
}
