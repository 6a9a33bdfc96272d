// Package pgstore implements the record store on Postgres through gorm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leihlokal/internal/config"
	"leihlokal/internal/domain"
	"leihlokal/internal/events"
	"leihlokal/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type itemRow struct {
	ID        string `gorm:"primaryKey;type:text"`
	Name      string `gorm:"not null"`
	SortKey   int64  `gorm:"not null;default:0;index:idx_items_sort"`
	Copies    int    `gorm:"not null;default:1"`
	Protected bool   `gorm:"not null;default:false"`
	Deleted   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (itemRow) TableName() string { return models.CollectionItems }

type bookingRow struct {
	ID           string    `gorm:"primaryKey;type:text"`
	ItemID       string    `gorm:"not null;index"`
	CustomerName string    `gorm:"not null"`
	StartDate    time.Time `gorm:"type:date;not null;index:idx_bookings_range"`
	EndDate      time.Time `gorm:"type:date;not null;index:idx_bookings_range"`
	Status       string    `gorm:"not null;default:reserved"`
	RentalID     string    `gorm:"not null;default:''"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (bookingRow) TableName() string { return models.CollectionBookings }

// Store is the Postgres implementation of domain.RecordStore.
type Store struct {
	db        *gorm.DB
	logger    *zerolog.Logger
	publisher domain.EventPublisher
}

var _ domain.RecordStore = (*Store)(nil)

func Open(cfg config.PostgresConfig, log *zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	maxConns := cfg.MaxConnections
	if maxConns == 0 {
		maxConns = 25
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.AutoMigrate(&itemRow{}, &bookingRow{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("postgres store ready")
	return New(db, log), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *zerolog.Logger) *Store {
	return &Store{db: db, logger: log}
}

func (s *Store) SetPublisher(p domain.EventPublisher) {
	s.publisher = p
}

func (s *Store) publish(ctx context.Context, kind models.EventKind, collection, id string, record any) {
	if s.publisher == nil {
		return
	}
	ev, err := events.NewRecordEvent(kind, collection, id, record)
	if err != nil {
		s.logger.Warn().Err(err).Msg("encode record event")
		return
	}
	s.publisher.Publish(ctx, ev)
}

const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

func mapError(collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", collection, domain.ErrNotFound)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", collection, domain.ErrConflict)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", collection, domain.ErrConflict)
		case pgUndefinedTable:
			return fmt.Errorf("%s: %w", collection, domain.ErrCollectionNotFound)
		}
	}
	return fmt.Errorf("%s: %w", collection, err)
}

func itemQuery(db *gorm.DB, filter domain.Filter) *gorm.DB {
	q := db.Model(&itemRow{})
	if filter.ProtectedOnly {
		q = q.Where("protected = ?", true)
	}
	if !filter.IncludeDeleted {
		q = q.Where("deleted = ?", false)
	}
	if filter.ItemID != "" {
		q = q.Where("id = ?", filter.ItemID)
	}
	return q.Order("sort_key, name, id")
}

func bookingQuery(db *gorm.DB, filter domain.Filter) *gorm.DB {
	q := db.Model(&bookingRow{})
	if filter.ItemID != "" {
		q = q.Where("item_id = ?", filter.ItemID)
	}
	if !filter.To.IsZero() {
		q = q.Where("start_date <= ?", filter.To)
	}
	if !filter.From.IsZero() {
		q = q.Where("end_date >= ?", filter.From)
	}
	return q.Order("start_date, id")
}

func toItem(r itemRow) models.Item {
	return models.Item{
		ID: r.ID, Name: r.Name, SortKey: r.SortKey, Copies: r.Copies,
		Protected: r.Protected, Deleted: r.Deleted,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func fromItem(i *models.Item) itemRow {
	return itemRow{
		ID: i.ID, Name: i.Name, SortKey: i.SortKey, Copies: i.CopyCount(),
		Protected: i.Protected, Deleted: i.Deleted,
		CreatedAt: i.CreatedAt, UpdatedAt: i.UpdatedAt,
	}
}

func toBooking(r bookingRow) *models.Booking {
	return &models.Booking{
		ID: r.ID, ItemID: r.ItemID, CustomerName: r.CustomerName,
		StartDate: dateOnly(r.StartDate), EndDate: dateOnly(r.EndDate),
		Status: r.Status, RentalID: r.RentalID,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func fromBooking(b *models.Booking) bookingRow {
	return bookingRow{
		ID: b.ID, ItemID: b.ItemID, CustomerName: b.CustomerName,
		StartDate: b.StartDate, EndDate: b.EndDate,
		Status: b.Status, RentalID: b.RentalID,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Store) ListItems(ctx context.Context, filter domain.Filter) ([]models.Item, error) {
	var rows []itemRow
	if err := itemQuery(s.db.WithContext(ctx), filter).Find(&rows).Error; err != nil {
		return nil, mapError(models.CollectionItems, err)
	}
	items := make([]models.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, toItem(r))
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var row itemRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(models.CollectionItems, err)
	}
	item := toItem(row)
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	row := fromItem(item)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return mapError(models.CollectionItems, err)
	}
	*item = toItem(row)
	s.publish(ctx, models.EventCreated, models.CollectionItems, item.ID, item)
	return nil
}

func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	res := s.db.WithContext(ctx).Model(&itemRow{ID: item.ID}).Updates(map[string]any{
		"name": item.Name, "sort_key": item.SortKey, "copies": item.CopyCount(),
		"protected": item.Protected, "deleted": item.Deleted,
	})
	if res.Error != nil {
		return mapError(models.CollectionItems, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("item %s: %w", item.ID, domain.ErrNotFound)
	}
	s.publish(ctx, models.EventUpdated, models.CollectionItems, item.ID, item)
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&itemRow{ID: id}).Update("deleted", true)
	if res.Error != nil {
		return mapError(models.CollectionItems, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	s.publish(ctx, models.EventDeleted, models.CollectionItems, id, nil)
	return nil
}

func (s *Store) ListBookings(ctx context.Context, filter domain.Filter) ([]*models.Booking, error) {
	var rows []bookingRow
	if err := bookingQuery(s.db.WithContext(ctx), filter).Find(&rows).Error; err != nil {
		return nil, mapError(models.CollectionBookings, err)
	}
	out := make([]*models.Booking, 0, len(rows))
	for _, r := range rows {
		out = append(out, toBooking(r))
	}
	return out, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var row bookingRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(models.CollectionBookings, err)
	}
	return toBooking(row), nil
}

func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.Validate(); err != nil {
		return err
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusReserved
	}
	row := fromBooking(booking)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return mapError(models.CollectionBookings, err)
	}
	booking.CreatedAt, booking.UpdatedAt = row.CreatedAt, row.UpdatedAt
	s.publish(ctx, models.EventCreated, models.CollectionBookings, booking.ID, booking)
	return nil
}

func (s *Store) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.Validate(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&bookingRow{ID: booking.ID}).Updates(map[string]any{
		"item_id": booking.ItemID, "customer_name": booking.CustomerName,
		"start_date": booking.StartDate, "end_date": booking.EndDate,
		"status": booking.Status, "rental_id": booking.RentalID,
	})
	if res.Error != nil {
		return mapError(models.CollectionBookings, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("booking %s: %w", booking.ID, domain.ErrNotFound)
	}
	s.publish(ctx, models.EventUpdated, models.CollectionBookings, booking.ID, booking)
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&bookingRow{}, "id = ?", id)
	if res.Error != nil {
		return mapError(models.CollectionBookings, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	s.publish(ctx, models.EventDeleted, models.CollectionBookings, id, nil)
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
