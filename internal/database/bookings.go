package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/google/uuid"
)

const bookingColumns = `id, item_id, customer_name, start_date, end_date, status, rental_id, created_at, updated_at`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b          models.Booking
		start, end string
	)
	if err := row.Scan(
		&b.ID, &b.ItemID, &b.CustomerName, &start, &end,
		&b.Status, &b.RentalID, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if b.StartDate, err = schedule.ParseDate(start); err != nil {
		return nil, fmt.Errorf("booking %s start: %w", b.ID, err)
	}
	if b.EndDate, err = schedule.ParseDate(end); err != nil {
		return nil, fmt.Errorf("booking %s end: %w", b.ID, err)
	}
	return &b, nil
}

func (db *DB) ListBookings(ctx context.Context, filter domain.Filter) ([]*models.Booking, error) {
	var (
		where []string
		args  []any
	)
	if filter.ItemID != "" {
		where = append(where, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	// даты хранятся как YYYY-MM-DD, строковое сравнение корректно
	if !filter.To.IsZero() {
		where = append(where, "start_date <= ?")
		args = append(args, filter.To.Format(dateLayout))
	}
	if !filter.From.IsZero() {
		where = append(where, "end_date >= ?")
		args = append(args, filter.From.Format(dateLayout))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date, id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(models.CollectionBookings, err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, mapError(models.CollectionBookings, err)
	}
	return b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.Validate(); err != nil {
		return err
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusReserved
	}
	now := time.Now().UTC()
	booking.CreatedAt, booking.UpdatedAt = now, now

	_, err := db.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.ItemID, booking.CustomerName,
		booking.StartDate.Format(dateLayout), booking.EndDate.Format(dateLayout),
		booking.Status, booking.RentalID, now, now)
	if err != nil {
		return mapError(models.CollectionBookings, err)
	}

	db.publish(ctx, models.EventCreated, models.CollectionBookings, booking.ID, booking)
	return nil
}

// CreateBookings inserts a batch in one transaction, e.g. a multi-copy drag.
func (db *DB) CreateBookings(ctx context.Context, bookings []*models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, b := range bookings {
		if err := b.Validate(); err != nil {
			return err
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if b.Status == "" {
			b.Status = models.StatusReserved
		}
		b.CreatedAt, b.UpdatedAt = now, now
		if _, err := tx.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.ItemID, b.CustomerName,
			b.StartDate.Format(dateLayout), b.EndDate.Format(dateLayout),
			b.Status, b.RentalID, now, now); err != nil {
			return mapError(models.CollectionBookings, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bookings: %w", err)
	}

	for _, b := range bookings {
		db.publish(ctx, models.EventCreated, models.CollectionBookings, b.ID, b)
	}
	return nil
}

func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.Validate(); err != nil {
		return err
	}
	booking.UpdatedAt = time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET item_id = ?, customer_name = ?, start_date = ?, end_date = ?, status = ?, rental_id = ?, updated_at = ?
         WHERE id = ?`,
		booking.ItemID, booking.CustomerName,
		booking.StartDate.Format(dateLayout), booking.EndDate.Format(dateLayout),
		booking.Status, booking.RentalID, booking.UpdatedAt, booking.ID)
	if err != nil {
		return mapError(models.CollectionBookings, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %s: %w", booking.ID, domain.ErrNotFound)
	}

	db.publish(ctx, models.EventUpdated, models.CollectionBookings, booking.ID, booking)
	return nil
}

func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return mapError(models.CollectionBookings, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}

	db.publish(ctx, models.EventDeleted, models.CollectionBookings, id, nil)
	return nil
}
