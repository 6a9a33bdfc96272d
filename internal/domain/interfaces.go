package domain

import (
	"context"
	"errors"
	"time"

	"leihlokal/internal/models"
)

var (
	// ErrCollectionNotFound means the backing store has no such collection.
	// The month view treats it as "feature unsupported", not as a failure.
	ErrCollectionNotFound = errors.New("collection not found")
	ErrNotFound           = errors.New("record not found")
	ErrConflict           = errors.New("record conflict")
)

// Filter narrows a listing. Zero values mean "no restriction".
type Filter struct {
	ProtectedOnly  bool
	IncludeDeleted bool
	ItemID         string
	// From and To select bookings overlapping [From, To].
	From time.Time
	To   time.Time
}

// Overlaps reports whether an inclusive date range passes the From/To bounds.
func (f Filter) Overlaps(start, end time.Time) bool {
	if !f.To.IsZero() && start.After(f.To) {
		return false
	}
	if !f.From.IsZero() && end.Before(f.From) {
		return false
	}
	return true
}

// RecordStore is the abstract store holding the items and bookings collections.
type RecordStore interface {
	ListItems(ctx context.Context, filter Filter) ([]models.Item, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, id string) error

	ListBookings(ctx context.Context, filter Filter) ([]*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id string) error

	Close() error
}

// EventPublisher receives record change notifications.
type EventPublisher interface {
	Publish(ctx context.Context, event models.RecordEvent)
}

// EventSubscriber lets consumers follow record changes.
type EventSubscriber interface {
	Subscribe(collection string, handler func(ctx context.Context, event models.RecordEvent)) (unsubscribe func())
}

// StateRepository persists drag-to-create sessions.
type StateRepository interface {
	GetDragState(ctx context.Context, sessionID string) (*models.DragState, error)
	SetDragState(ctx context.Context, state *models.DragState) error
	ClearDragState(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ScheduleWriter mirrors a month grid into an external spreadsheet.
type ScheduleWriter interface {
	WriteMonth(ctx context.Context, month time.Time, header []string, rows [][]string) error
}

// SyncWorker accepts background sync jobs.
type SyncWorker interface {
	EnqueueMonth(ctx context.Context, month time.Time) error
}

// Notifier sends operator alerts.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
