package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/metrics"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/rs/zerolog"
)

// MonthGrid is the month view together with its layout.
type MonthGrid struct {
	Month       time.Time       `json:"month"`
	Requested   time.Time       `json:"requested"`
	Loading     bool            `json:"loading"`
	Unsupported bool            `json:"unsupported"`
	Error       string          `json:"error,omitempty"`
	Layout      schedule.Layout `json:"layout"`
}

type GridService struct {
	loader   *MonthLoader
	store    domain.RecordStore
	opts     schedule.Options
	notifier domain.Notifier
	logger   *zerolog.Logger

	mu        sync.Mutex
	lastAlert string
}

// NewGridService builds a grid service. notifier may be nil.
func NewGridService(store domain.RecordStore, loader *MonthLoader, opts schedule.Options, notifier domain.Notifier, logger *zerolog.Logger) *GridService {
	return &GridService{
		loader:   loader,
		store:    store,
		opts:     opts,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *GridService) Options() schedule.Options {
	return s.opts
}

// Month loads month and lays it out.
func (s *GridService) Month(ctx context.Context, month time.Time) MonthGrid {
	view := s.loader.Load(ctx, month)
	return s.Layout(ctx, view)
}

// Layout projects an already loaded view.
func (s *GridService) Layout(ctx context.Context, view MonthView) MonthGrid {
	grid := MonthGrid{
		Month:       view.Month,
		Requested:   view.Requested,
		Loading:     view.Loading,
		Unsupported: view.Unsupported,
	}
	if view.Err != nil {
		grid.Error = view.Err.Error()
	}
	if view.Month.IsZero() {
		return grid
	}

	grid.Layout = schedule.Build(schedule.MonthWindow(view.Month), view.Items, view.Bookings, s.opts)

	overflow := make(map[string]int)
	for _, b := range grid.Layout.Overflow {
		overflow[b.ItemID]++
	}
	metrics.ObserveLayout(overflow)
	if len(grid.Layout.Orphans) > 0 {
		s.logger.Warn().Int("count", len(grid.Layout.Orphans)).Msg("Bookings reference unknown items")
	}
	if len(overflow) > 0 {
		s.alertOverflow(ctx, view.Month, view.Items, overflow)
	}
	return grid
}

func (s *GridService) alertOverflow(ctx context.Context, month time.Time, items []models.Item, overflow map[string]int) {
	names := make(map[string]string, len(items))
	for _, it := range items {
		names[it.ID] = it.Name
	}
	ids := make([]string, 0, len(overflow))
	for id := range overflow {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Überbuchung %s:\n", month.Format("01/2006"))
	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = id
		}
		fmt.Fprintf(&sb, "- %s: %d ohne Platz\n", name, overflow[id])
	}
	text := sb.String()

	s.logger.Warn().Interface("overflow", overflow).Str("month", month.Format("2006-01")).Msg("Bookings exceed item copies")

	s.mu.Lock()
	if text == s.lastAlert {
		s.mu.Unlock()
		return
	}
	s.lastAlert = text
	s.mu.Unlock()

	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.Error().Err(err).Msg("Failed to send overflow alert")
	}
}

// Availability reports booked and free copies of one item for every day of month.
func (s *GridService) Availability(ctx context.Context, itemID string, month time.Time) ([]models.Availability, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	window := schedule.MonthWindow(month)
	bookings, err := s.store.ListBookings(ctx, domain.Filter{
		ItemID: itemID,
		From:   window[0],
		To:     window[len(window)-1],
	})
	if err != nil {
		return nil, err
	}
	return schedule.AvailabilityFor(*item, bookings, window), nil
}
