package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/metrics"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/rs/zerolog"
)

// MonthView is the dataset currently shown for the grid.
type MonthView struct {
	// Month is the month the Items and Bookings belong to.
	Month time.Time `json:"month"`
	// Requested is the month of the latest navigation.
	Requested   time.Time         `json:"requested"`
	Items       []models.Item     `json:"items"`
	Bookings    []*models.Booking `json:"bookings"`
	Loading     bool              `json:"loading"`
	Unsupported bool              `json:"unsupported"`
	Err         error             `json:"-"`
}

// MonthLoader fetches items and bookings for a month. A newer Load supersedes
// older in-flight ones: their results are dropped on arrival.
type MonthLoader struct {
	store  domain.RecordStore
	logger *zerolog.Logger

	mu   sync.Mutex
	gen  uint64
	view MonthView
}

func NewMonthLoader(store domain.RecordStore, logger *zerolog.Logger) *MonthLoader {
	return &MonthLoader{store: store, logger: logger}
}

// View returns a snapshot of the current state.
func (l *MonthLoader) View() MonthView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view
}

func (l *MonthLoader) begin(month time.Time) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.view.Requested = month
	l.view.Loading = true
	return l.gen
}

// Load fetches month and returns the resulting view. On failure the view keeps
// the previously loaded data and carries the error. Retrying is up to the caller.
func (l *MonthLoader) Load(ctx context.Context, month time.Time) MonthView {
	month = schedule.Day(time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC))
	gen := l.begin(month)

	window := schedule.MonthWindow(month)
	var (
		wg                sync.WaitGroup
		items             []models.Item
		bookings          []*models.Booking
		itemsErr, bookErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		items, itemsErr = l.store.ListItems(ctx, domain.Filter{ProtectedOnly: true})
	}()
	go func() {
		defer wg.Done()
		bookings, bookErr = l.store.ListBookings(ctx, domain.Filter{
			From: window[0],
			To:   window[len(window)-1],
		})
	}()
	wg.Wait()

	return l.finish(gen, month, items, bookings, itemsErr, bookErr)
}

func (l *MonthLoader) finish(gen uint64, month time.Time, items []models.Item, bookings []*models.Booking, itemsErr, bookErr error) MonthView {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		metrics.IncMonthLoad("stale")
		l.logger.Debug().
			Str("month", month.Format("2006-01")).
			Str("current", l.view.Requested.Format("2006-01")).
			Msg("Dropping stale month response")
		return l.view
	}

	l.view.Loading = false

	// бронирования не настроены на бэкенде: скрываем функцию
	if errors.Is(bookErr, domain.ErrCollectionNotFound) {
		metrics.IncMonthLoad("unsupported")
		l.view.Unsupported = true
		l.view.Err = nil
		l.view.Month = month
		l.view.Bookings = nil
		// Month уже новый, старые товары к нему не относятся
		l.view.Items = items
		if itemsErr != nil {
			l.logger.Warn().Err(itemsErr).Str("month", month.Format("2006-01")).Msg("Failed to load items")
			l.view.Items = nil
		}
		return l.view
	}

	if err := errors.Join(itemsErr, bookErr); err != nil {
		metrics.IncMonthLoad("error")
		l.logger.Error().Err(err).Str("month", month.Format("2006-01")).Msg("Failed to load month")
		l.view.Err = err
		return l.view
	}

	metrics.IncMonthLoad("ok")
	l.view.Month = month
	l.view.Items = items
	l.view.Bookings = bookings
	l.view.Unsupported = false
	l.view.Err = nil
	return l.view
}
