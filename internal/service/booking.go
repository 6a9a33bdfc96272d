package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"
	"leihlokal/internal/validation"

	"github.com/rs/zerolog"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

type CreateBookingRequest struct {
	ItemID       string `json:"item_id" validate:"required"`
	CustomerName string `json:"customer_name" validate:"required,max=200"`
	From         string `json:"from" validate:"required,isodate"`
	To           string `json:"to" validate:"required,isodate"`
	Copies       int    `json:"copies" validate:"omitempty,min=1,max=50"`
	RentalID     string `json:"rental_id" validate:"omitempty,max=64"`
}

type UpdateBookingRequest struct {
	CustomerName *string `json:"customer_name" validate:"omitempty,min=1,max=200"`
	From         *string `json:"from" validate:"omitempty,isodate"`
	To           *string `json:"to" validate:"omitempty,isodate"`
	Status       *string `json:"status" validate:"omitempty,oneof=reserved active returned overdue"`
	RentalID     *string `json:"rental_id" validate:"omitempty,max=64"`
}

// batchCreator is implemented by stores that can insert several bookings atomically.
type batchCreator interface {
	CreateBookings(ctx context.Context, bookings []*models.Booking) error
}

type BookingService struct {
	store     domain.RecordStore
	validator *validation.Validator
	worker    domain.SyncWorker
	notifier  domain.Notifier
	logger    *zerolog.Logger
	now       func() time.Time
}

// NewBookingService builds the service. worker and notifier may be nil.
func NewBookingService(store domain.RecordStore, worker domain.SyncWorker, notifier domain.Notifier, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:     store,
		validator: validation.New(),
		worker:    worker,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}

// List returns bookings matching filter with their display status refreshed.
func (s *BookingService) List(ctx context.Context, filter domain.Filter) ([]*models.Booking, error) {
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	today := schedule.Day(s.now())
	for _, b := range bookings {
		b.Status = models.DeriveStatus(b, b.Status == models.StatusReturned, today)
	}
	return bookings, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// Create books Copies copies (default one) of an item for the requested range.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) ([]*models.Booking, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if err := s.validator.Validate(req); err != nil {
		return nil, invalid(err)
	}
	from, _ := schedule.ParseDate(req.From)
	to, _ := schedule.ParseDate(req.To)

	item, err := s.store.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, fmt.Errorf("item %s: %w", item.ID, domain.ErrNotFound)
	}

	copies := req.Copies
	if copies == 0 {
		copies = 1
	}

	today := schedule.Day(s.now())
	bookings := make([]*models.Booking, 0, copies)
	for i := 0; i < copies; i++ {
		b := &models.Booking{
			ItemID:       item.ID,
			CustomerName: req.CustomerName,
			StartDate:    from,
			EndDate:      to,
			RentalID:     req.RentalID,
		}
		if err := b.Validate(); err != nil {
			return nil, invalid(err)
		}
		b.Status = models.DeriveStatus(b, false, today)
		bookings = append(bookings, b)
	}

	if err := s.insert(ctx, bookings); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item_id", item.ID).
		Int("copies", copies).
		Str("from", from.Format("2006-01-02")).
		Str("to", to.Format("2006-01-02")).
		Msg("Bookings created")

	s.checkCapacity(ctx, *item, from, to)
	s.enqueueSync(ctx, from, to)
	return bookings, nil
}

func (s *BookingService) insert(ctx context.Context, bookings []*models.Booking) error {
	if bc, ok := s.store.(batchCreator); ok && len(bookings) > 1 {
		return bc.CreateBookings(ctx, bookings)
	}
	for _, b := range bookings {
		if err := s.store.CreateBooking(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// CreateFromDrag turns a finished drag gesture into bookings, one per dragged
// column. The request arrives from the client, so the day count and the column
// keys are checked again here: every key must be a lane of ItemID, and the
// synthetic new-booking column stands for exactly one copy and only on its own.
func (s *BookingService) CreateFromDrag(ctx context.Context, req schedule.CreateRequest, customer, rentalID string) ([]*models.Booking, error) {
	if req.From.IsZero() || req.To.IsZero() {
		return nil, invalid(errors.New("drag range is missing"))
	}
	days := schedule.DaysBetween(req.From, req.To) + 1
	if days < models.MinDragDays {
		return nil, invalid(fmt.Errorf("booking must span at least %d days", models.MinDragDays))
	}
	if req.Days != 0 && req.Days != days {
		return nil, invalid(fmt.Errorf("days %d do not match range of %d days", req.Days, days))
	}
	copies, err := dragCopies(req.ItemID, req.ColumnKeys)
	if err != nil {
		return nil, invalid(err)
	}

	return s.Create(ctx, CreateBookingRequest{
		ItemID:       req.ItemID,
		CustomerName: customer,
		From:         req.From.Format("2006-01-02"),
		To:           req.To.Format("2006-01-02"),
		Copies:       copies,
		RentalID:     rentalID,
	})
}

func dragCopies(itemID string, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, errors.New("no columns selected")
	}
	seen := make(map[string]struct{}, len(keys))
	synthetic := false
	for _, key := range keys {
		id, lane, err := schedule.ParseColumnKey(key)
		if err != nil {
			return 0, err
		}
		if id != itemID {
			return 0, fmt.Errorf("column %s does not belong to item %s", key, itemID)
		}
		if _, dup := seen[key]; dup {
			return 0, fmt.Errorf("column %s selected twice", key)
		}
		seen[key] = struct{}{}
		if lane == schedule.NewBookingLane {
			synthetic = true
		}
	}
	if synthetic && len(keys) > 1 {
		return 0, errors.New("new-booking column cannot be combined with copy lanes")
	}
	return len(keys), nil
}

func (s *BookingService) Update(ctx context.Context, id string, req UpdateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, invalid(err)
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	oldFrom, oldTo := b.StartDate, b.EndDate

	if req.CustomerName != nil {
		b.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.From != nil {
		b.StartDate, _ = schedule.ParseDate(*req.From)
	}
	if req.To != nil {
		b.EndDate, _ = schedule.ParseDate(*req.To)
	}
	if req.RentalID != nil {
		b.RentalID = *req.RentalID
	}
	if req.Status != nil {
		b.Status = *req.Status
	}
	if err := b.Validate(); err != nil {
		return nil, invalid(err)
	}

	if err := s.store.UpdateBooking(ctx, b); err != nil {
		return nil, err
	}

	if item, err := s.store.GetItem(ctx, b.ItemID); err == nil {
		s.checkCapacity(ctx, *item, b.StartDate, b.EndDate)
	}
	s.enqueueSync(ctx, minTime(oldFrom, b.StartDate), maxTime(oldTo, b.EndDate))
	return b, nil
}

func (s *BookingService) Delete(ctx context.Context, id string) error {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.enqueueSync(ctx, b.StartDate, b.EndDate)
	return nil
}

// checkCapacity warns when item is booked beyond its copies within [from, to].
func (s *BookingService) checkCapacity(ctx context.Context, item models.Item, from, to time.Time) {
	bookings, err := s.store.ListBookings(ctx, domain.Filter{ItemID: item.ID, From: from, To: to})
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", item.ID).Msg("Failed to check capacity")
		return
	}
	var window []time.Time
	for d := schedule.Day(from); !d.After(schedule.Day(to)); d = d.AddDate(0, 0, 1) {
		window = append(window, d)
	}
	days := schedule.OverbookedDays(item, bookings, window)
	if len(days) == 0 {
		return
	}

	s.logger.Warn().
		Str("item_id", item.ID).
		Int("copies", item.CopyCount()).
		Int("days", len(days)).
		Msg("Item overbooked")
	if s.notifier == nil {
		return
	}
	text := fmt.Sprintf("%s ist überbucht (%d Exemplare) ab %s, %d Tag(e)",
		item.Name, item.CopyCount(), schedule.RowLabel(days[0]), len(days))
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.Error().Err(err).Msg("Failed to send overbooking alert")
	}
}

// enqueueSync schedules a spreadsheet sync for every month touched by [from, to].
func (s *BookingService) enqueueSync(ctx context.Context, from, to time.Time) {
	if s.worker == nil {
		return
	}
	for _, m := range monthsBetween(from, to) {
		if err := s.worker.EnqueueMonth(ctx, m); err != nil {
			s.logger.Error().Err(err).Str("month", m.Format("2006-01")).Msg("Failed to enqueue sheets sync")
		}
	}
}

func monthsBetween(from, to time.Time) []time.Time {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		out = append(out, m)
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
