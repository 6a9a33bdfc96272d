package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/rs/zerolog"
)

// BookingLister returns bookings with their display status derived.
type BookingLister interface {
	List(ctx context.Context, filter domain.Filter) ([]*models.Booking, error)
}

// Reminder sends a daily digest of tomorrow's returns and overdue rentals.
type Reminder struct {
	bookings BookingLister
	names    func() map[string]string
	notifier domain.Notifier
	hour     int
	minute   int
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewReminder parses at as "HH:MM". names resolves item ids for display.
func NewReminder(bookings BookingLister, names func() map[string]string, notifier domain.Notifier, at string, logger *zerolog.Logger) (*Reminder, error) {
	r := &Reminder{
		bookings: bookings,
		names:    names,
		notifier: notifier,
		hour:     9,
		logger:   logger,
		now:      time.Now,
	}
	if at != "" {
		if _, err := fmt.Sscanf(at, "%d:%d", &r.hour, &r.minute); err != nil {
			return nil, fmt.Errorf("invalid reminder time %q: %w", at, err)
		}
		if r.hour < 0 || r.hour > 23 || r.minute < 0 || r.minute > 59 {
			return nil, fmt.Errorf("invalid reminder time %q", at)
		}
	}
	return r, nil
}

// Start waits for the next reminder time, then sends once a day until ctx is done.
func (r *Reminder) Start(ctx context.Context) {
	timer := time.NewTimer(r.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.Send(ctx)
			timer.Reset(r.untilNext())
		}
	}
}

func (r *Reminder) untilNext() time.Duration {
	now := r.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), r.hour, r.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// Send builds the digest and delivers it. Empty digests are skipped.
func (r *Reminder) Send(ctx context.Context) {
	text, err := r.Digest(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("reminder: load bookings error")
		return
	}
	if text == "" {
		return
	}
	if err := r.notifier.Notify(ctx, text); err != nil {
		r.logger.Error().Err(err).Msg("reminder: send error")
	}
}

// Digest lists bookings ending tomorrow and overdue rentals, by item name.
func (r *Reminder) Digest(ctx context.Context) (string, error) {
	today := schedule.Day(r.now())
	tomorrow := today.AddDate(0, 0, 1)

	due, err := r.bookings.List(ctx, domain.Filter{From: tomorrow, To: tomorrow})
	if err != nil {
		return "", err
	}
	late, err := r.bookings.List(ctx, domain.Filter{To: today})
	if err != nil {
		return "", err
	}

	names := r.names()
	label := func(b *models.Booking) string {
		if n, ok := names[b.ItemID]; ok {
			return n
		}
		return b.ItemID
	}

	var returns, overdue []string
	for _, b := range due {
		if b.EndDate.Equal(tomorrow) && b.Status != models.StatusReturned {
			returns = append(returns, fmt.Sprintf("- %s: %s", label(b), b.CustomerName))
		}
	}
	for _, b := range late {
		if b.Status == models.StatusOverdue {
			overdue = append(overdue, fmt.Sprintf("- %s: %s (seit %s)", label(b), b.CustomerName, schedule.RowLabel(b.EndDate)))
		}
	}
	sort.Strings(returns)
	sort.Strings(overdue)

	var sb strings.Builder
	if len(returns) > 0 {
		fmt.Fprintf(&sb, "Rückgaben morgen (%s):\n%s\n", schedule.RowLabel(tomorrow), strings.Join(returns, "\n"))
	}
	if len(overdue) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Überfällig:\n%s\n", strings.Join(overdue, "\n"))
	}
	return sb.String(), nil
}
